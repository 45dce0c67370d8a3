// internal/model/token.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type TokenType string

const (
	TokenDNS    TokenType = "dns"
	TokenWord   TokenType = "word"
	TokenExcel  TokenType = "excel"
	TokenPDF    TokenType = "pdf"
	TokenFolder TokenType = "folder"
	TokenQR     TokenType = "qr"
)

func (t TokenType) Valid() bool {
	switch t {
	case TokenDNS, TokenWord, TokenExcel, TokenPDF, TokenFolder, TokenQR:
		return true
	}
	return false
}

// CanaryKind maps a token type to the kind string the honeytoken
// factory API expects.
func (t TokenType) CanaryKind() string {
	switch t {
	case TokenDNS:
		return "dns"
	case TokenWord:
		return "doc-msword"
	case TokenExcel:
		return "doc-msexcel"
	case TokenPDF:
		return "pdf-acrobat-reader"
	case TokenFolder:
		return "windows-dir"
	case TokenQR:
		return "qr-code"
	}
	return string(t)
}

// Token is one honeytoken planted on a drive. Created only during drive
// preparation; immutable afterwards except for the trigger counters,
// which are caches over the trigger log.
type Token struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	DriveID          uuid.UUID  `db:"drive_id" json:"drive_id"`
	TokenType        TokenType  `db:"token_type" json:"token_type"`
	CanaryTokenID    string     `db:"canary_token_id" json:"canary_token_id"`
	Filename         string     `db:"filename" json:"filename,omitempty"`
	Memo             string     `db:"memo" json:"memo,omitempty"`
	URL              string     `db:"url" json:"url,omitempty"`
	TriggerCount     int        `db:"trigger_count" json:"trigger_count"`
	FirstTriggeredAt *time.Time `db:"first_triggered_at" json:"first_triggered_at,omitempty"`
	LastTriggeredAt  *time.Time `db:"last_triggered_at" json:"last_triggered_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}
