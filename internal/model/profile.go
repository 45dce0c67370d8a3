// internal/model/profile.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a reusable template describing which token types a drive
// should carry. Read-only input to drive preparation.
type Profile struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	Name         string      `db:"name" json:"name"`
	Description  string      `db:"description" json:"description,omitempty"`
	ScenarioType string      `db:"scenario_type" json:"scenario_type"`
	Theme        string      `db:"theme" json:"theme,omitempty"`
	TokenTypes   []TokenType `db:"token_types" json:"token_types"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}
