// Command grant-credits is the operator tool for admin accounts and credits.
//
//	grant-credits seed-admin                 create/update the admin from ADMIN_PHONE / ADMIN_TOKEN
//	grant-credits grant -user U -amount N    add N paid-match credits to U
//	grant-credits token -user U [-role admin] mint a session token for local testing
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/almajlis/backend/internal/admin"
	"github.com/almajlis/backend/internal/api/handlers"
	"github.com/almajlis/backend/internal/config"
	"github.com/almajlis/backend/internal/database"
	"github.com/almajlis/backend/internal/game"
	"github.com/almajlis/backend/internal/store/pgstore"
	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// Initialize configuration (loads .env if present)
	cfg := config.Load()

	switch os.Args[1] {
	case "seed-admin":
		seedAdmin(cfg)
	case "grant":
		grant(cfg, os.Args[2:])
	case "token":
		token(cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: grant-credits seed-admin | grant -user ID -amount N [-reason TEXT] | token -user ID [-role admin] [-ttl 24h]")
}

func seedAdmin(cfg *config.Config) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	phone := os.Getenv("ADMIN_PHONE")
	if phone == "" {
		phone = "966500000000" // Default phone
		log.Printf("Using default admin phone: %s", phone)
	}

	adminToken := os.Getenv("ADMIN_TOKEN")
	if adminToken == "" {
		adminToken = "change-me-in-production" // Default token
		log.Printf("WARNING: Using default admin token. Set ADMIN_TOKEN env var in production!")
	}

	displayName := "Admin"
	roles := []string{admin.RoleSuperAdmin}

	if err := admin.CreateAdminAccount(db, phone, displayName, adminToken, roles); err != nil {
		log.Fatalf("Failed to create admin account: %v", err)
	}

	log.Printf("✓ Admin account created/updated successfully")
	log.Printf("  Phone: %s", phone)
	log.Printf("  Display Name: %s", displayName)
	log.Printf("  Roles: %v", roles)
	log.Println("Call /api/v1/admin/* with headers X-Admin-Phone and X-Admin-Token.")
}

func grant(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("grant", flag.ExitOnError)
	user := fs.String("user", "", "user id to credit")
	amount := fs.Int("amount", 0, "credits to add")
	reason := fs.String("reason", "Granted by operator", "ledger description")
	fs.Parse(args)

	if *user == "" || *amount <= 0 {
		fs.Usage()
		os.Exit(2)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	operator := os.Getenv("ADMIN_PHONE")
	if operator == "" {
		operator = "cli"
	}
	g := admin.CreditGrant{UserID: *user, Amount: *amount, Reason: *reason}
	entry := func(success bool) admin.AuditEntry {
		e := g.Entry(operator, "local", success)
		e.Route = "cli:grant-credits grant"
		return e
	}

	mgr := game.NewMatchManager(pgstore.New(db), nil, game.Options{})
	balance, err := mgr.GrantCredits(context.Background(), *user, *amount, *reason)
	if err != nil {
		admin.Record(db, entry(false))
		log.Fatalf("Failed to grant credits: %v", err)
	}
	g.Balance = &balance
	admin.Record(db, entry(true))
	log.Printf("✓ Granted %d credits to %s (balance %d)", *amount, *user, balance)
}

func token(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	user := fs.String("user", "", "user id (token subject)")
	role := fs.String("role", game.RoleUser, "user or admin")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	fs.Parse(args)

	if *user == "" {
		fs.Usage()
		os.Exit(2)
	}
	if cfg.Environment == "production" {
		log.Fatal("refusing to mint tokens in production")
	}

	signed, err := handlers.IssueToken(cfg.JWTSecret, *user, *role, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(signed)
}
