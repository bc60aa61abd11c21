package admin

import (
	"fmt"
	"strconv"

	"github.com/almajlis/backend/internal/config"
	"github.com/almajlis/backend/internal/models"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// GetAllRuntimeConfig returns all runtime config entries
func GetAllRuntimeConfig(db *sqlx.DB) ([]models.RuntimeConfig, error) {
	var configs []models.RuntimeConfig
	err := db.Select(&configs, `
		SELECT key, value, value_type, description, updated_by, updated_at
		FROM runtime_config
		ORDER BY key
	`)
	return configs, err
}

// GetRuntimeConfigValue returns a single runtime config value
func GetRuntimeConfigValue(db *sqlx.DB, key string) (*models.RuntimeConfig, error) {
	var cfg models.RuntimeConfig
	err := db.Get(&cfg, `SELECT key, value, value_type, description, updated_by, updated_at FROM runtime_config WHERE key=$1`, key)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateRuntimeValue checks value against the declared value type
func ValidateRuntimeValue(valueType, value string) error {
	switch valueType {
	case "int":
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid boolean value: %s (must be 'true' or 'false')", value)
		}
	}
	return nil
}

// UpdateRuntimeConfigValue updates a single runtime config value
func UpdateRuntimeConfigValue(db *sqlx.DB, key, value, adminPhone string) error {
	// Get existing config to validate type
	existing, err := GetRuntimeConfigValue(db, key)
	if err != nil {
		return fmt.Errorf("config key not found: %s", key)
	}
	if err := ValidateRuntimeValue(existing.ValueType, value); err != nil {
		return err
	}

	_, err = db.Exec(`
		UPDATE runtime_config SET value=$1, updated_by=$2, updated_at=NOW() WHERE key=$3
	`, value, adminPhone, key)
	return err
}

// ApplyRuntimeConfig copies runtime overrides onto cfg in a single update.
// Unknown keys and unparsable values are skipped.
func ApplyRuntimeConfig(configs []models.RuntimeConfig, cfg *config.Config) int {
	applied := 0
	cfg.UpdateTunables(func(t *config.Tunables) {
		for _, c := range configs {
			switch c.Key {
			case "first_match_free":
				if v, err := strconv.ParseBool(c.Value); err == nil {
					t.FirstMatchFree = v
					applied++
				}
			case "sampler_candidate_limit":
				if v, err := strconv.Atoi(c.Value); err == nil {
					t.SamplerCandidateLimit = v
					applied++
				}
			case "create_match_rate_limit_seconds":
				if v, err := strconv.Atoi(c.Value); err == nil {
					t.CreateMatchRateLimitSeconds = v
					applied++
				}
			case "stale_match_hours":
				if v, err := strconv.Atoi(c.Value); err == nil {
					t.StaleMatchHours = v
					applied++
				}
			}
		}
	})
	return applied
}

// ApplyRuntimeConfigToConfig loads runtime config from DB and applies overrides to the Config struct
func ApplyRuntimeConfigToConfig(db *sqlx.DB, cfg *config.Config) error {
	configs, err := GetAllRuntimeConfig(db)
	if err != nil {
		return err
	}

	n := ApplyRuntimeConfig(configs, cfg)
	log.Printf("[CONFIG] Applied %d runtime config overrides from database", n)
	return nil
}
