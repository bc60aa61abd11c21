package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Category is a question category as stored in the catalog
type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	GroupTag  string    `db:"group_tag" json:"group_tag,omitempty"`
	ImageURL  string    `db:"image_url" json:"image_url,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Question is a single question in the bank. Value is one of 200, 400, 600.
type Question struct {
	ID             string    `db:"id" json:"id"`
	CategoryID     string    `db:"category_id" json:"category_id"`
	Value          int       `db:"value" json:"value"`
	Text           string    `db:"text" json:"text"`
	Answer         string    `db:"answer" json:"answer"`
	ImageURL       string    `db:"image_url" json:"image_url,omitempty"`
	AnswerImageURL string    `db:"answer_image_url" json:"answer_image_url,omitempty"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Match is one board session between two teams
type Match struct {
	ID         string       `db:"id" json:"id"`
	HostUserID string       `db:"host_user_id" json:"host_user_id"`
	TeamAName  string       `db:"team_a_name" json:"team_a_name"`
	TeamBName  string       `db:"team_b_name" json:"team_b_name"`
	TeamAScore int          `db:"team_a_score" json:"team_a_score"`
	TeamBScore int          `db:"team_b_score" json:"team_b_score"`
	Turn       string       `db:"turn" json:"turn"`
	Status     string       `db:"status" json:"status"`
	Free       bool         `db:"free" json:"free"`
	StartedAt  time.Time    `db:"started_at" json:"started_at"`
	EndedAt    sql.NullTime `db:"ended_at" json:"ended_at,omitempty"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
	Version    int64        `db:"version" json:"version"`
}

// BoardCategory places a category into a match column
type BoardCategory struct {
	MatchID    string `db:"match_id" json:"match_id"`
	Position   int    `db:"position" json:"position"`
	CategoryID string `db:"category_id" json:"category_id"`
}

// Tile is one board cell with the question content snapshotted at build time
type Tile struct {
	ID               string         `db:"id" json:"id"`
	MatchID          string         `db:"match_id" json:"match_id"`
	CategoryPosition int            `db:"category_position" json:"category_position"`
	RowIndex         int            `db:"row_index" json:"row_index"`
	Value            int            `db:"value" json:"value"`
	QuestionID       string         `db:"question_id" json:"question_id"`
	QuestionText     string         `db:"question_text" json:"question_text"`
	AnswerText       string         `db:"answer_text" json:"answer_text"`
	ImageURL         string         `db:"image_url" json:"image_url,omitempty"`
	AnswerImageURL   string         `db:"answer_image_url" json:"answer_image_url,omitempty"`
	Opened           bool           `db:"opened" json:"opened"`
	AssignedTeam     sql.NullString `db:"assigned_team" json:"assigned_team,omitempty"`
	Correct          sql.NullBool   `db:"correct" json:"correct,omitempty"`
	OpenedAt         sql.NullTime   `db:"opened_at" json:"opened_at,omitempty"`
}

// UserCredit is a user's remaining paid-match balance
type UserCredit struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Remaining int       `db:"remaining" json:"remaining"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CreditTransaction is one ledger movement on a user's credit balance
type CreditTransaction struct {
	ID           string         `db:"id" json:"id"`
	UserID       string         `db:"user_id" json:"user_id"`
	Delta        int            `db:"delta" json:"delta"`
	BalanceAfter int            `db:"balance_after" json:"balance_after"`
	Kind         string         `db:"kind" json:"kind"`
	MatchID      sql.NullString `db:"match_id" json:"match_id,omitempty"`
	Description  string         `db:"description" json:"description,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// AdminAccount is an operator allowed to grant credits
type AdminAccount struct {
	Phone       string         `db:"phone" json:"phone"`
	DisplayName string         `db:"display_name" json:"display_name"`
	TokenHash   string         `db:"token_hash" json:"-"`
	Roles       pq.StringArray `db:"roles" json:"roles"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// AdminAudit represents an admin audit log entry
type AdminAudit struct {
	ID         int       `db:"id" json:"id"`
	AdminPhone string    `db:"admin_phone" json:"admin_phone"`
	IP         string    `db:"ip" json:"ip"`
	Route      string    `db:"route" json:"route"`
	Action     string    `db:"action" json:"action"`
	Details    string    `db:"details" json:"details"`
	Success    bool      `db:"success" json:"success"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RuntimeConfig is an operator-editable setting that overrides the env default
type RuntimeConfig struct {
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	ValueType   string    `db:"value_type" json:"value_type"`
	Description string    `db:"description" json:"description"`
	UpdatedBy   string    `db:"updated_by" json:"updated_by"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
