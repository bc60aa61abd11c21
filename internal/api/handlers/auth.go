package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/almajlis/backend/internal/config"
	"github.com/almajlis/backend/internal/game"
	"github.com/almajlis/backend/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
)

const sessionKey = "session"

// IssueToken signs an HS256 session token for userID
func IssueToken(secret, userID, role string, ttl time.Duration) (string, error) {
	if role == "" {
		role = game.RoleUser
	}
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseSession validates a bearer token and returns its identity
func parseSession(secret, token string) (game.Session, error) {
	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return game.Session{}, fmt.Errorf("invalid token: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return game.Session{}, fmt.Errorf("invalid claims")
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		userID, _ = claims["user_id"].(string)
	}
	if userID == "" {
		return game.Session{}, fmt.Errorf("token has no subject")
	}
	role, _ := claims["role"].(string)
	if role != game.RoleAdmin {
		role = game.RoleUser
	}
	return game.Session{UserID: userID, Role: role}, nil
}

// SessionMiddleware validates the bearer JWT and stores a game.Session in the
// context. The credit balance is read for display only.
func SessionMiddleware(cfg *config.Config, st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		sess, err := parseSession(cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			log.Debugf("[AUTH] rejected token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if credit, err := st.GetCredit(c.Request.Context(), sess.UserID); err == nil {
			sess.CreditBalance = credit.Remaining
		} else {
			log.Printf("[AUTH] balance lookup failed for %s: %v", sess.UserID, err)
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// sessionFrom returns the session set by SessionMiddleware
func sessionFrom(c *gin.Context) game.Session {
	if v, ok := c.Get(sessionKey); ok {
		if sess, ok := v.(game.Session); ok {
			return sess
		}
	}
	return game.Session{}
}
