package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dropsentry/campaign-backend/internal/apperrors"
	"github.com/dropsentry/campaign-backend/internal/model"
)

// RegisteredToken is a token joined with the drive context the ingestion
// path needs: one row per external identifier.
type RegisteredToken struct {
	TokenID       uuid.UUID
	DriveID       uuid.UUID
	CampaignID    uuid.UUID
	DriveCode     string
	TokenType     model.TokenType
	CanaryTokenID string
}

type TokenRepositoryInterface interface {
	Create(t *model.Token) error
	GetByDrive(driveID uuid.UUID) ([]*model.Token, error)
	GetByExternalID(canaryTokenID string) (*RegisteredToken, error)
	ListRegistered() ([]*RegisteredToken, error)
}

type TokenRepository struct {
	DB *sql.DB
}

const tokenColumns = `id, drive_id, token_type, canary_token_id, filename, memo, url, trigger_count, first_triggered_at, last_triggered_at, created_at`

func (r *TokenRepository) Create(t *model.Token) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now().UTC()
	query := `
        INSERT INTO tokens (id, drive_id, token_type, canary_token_id, filename, memo, url, trigger_count, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
    `
	_, err := r.DB.Exec(query, t.ID, t.DriveID, t.TokenType, t.CanaryTokenID, t.Filename, t.Memo, t.URL, t.CreatedAt)
	return err
}

func (r *TokenRepository) GetByDrive(driveID uuid.UUID) ([]*model.Token, error) {
	rows, err := r.DB.Query(`SELECT `+tokenColumns+` FROM tokens WHERE drive_id=$1 ORDER BY created_at`, driveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []*model.Token{}
	for rows.Next() {
		t := &model.Token{}
		if err := rows.Scan(&t.ID, &t.DriveID, &t.TokenType, &t.CanaryTokenID, &t.Filename, &t.Memo, &t.URL,
			&t.TriggerCount, &t.FirstTriggeredAt, &t.LastTriggeredAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

const registeredTokenQuery = `
        SELECT t.id, t.drive_id, d.campaign_id, d.code, t.token_type, t.canary_token_id
        FROM tokens t
        JOIN drives d ON d.id = t.drive_id`

func (r *TokenRepository) GetByExternalID(canaryTokenID string) (*RegisteredToken, error) {
	var rt RegisteredToken
	err := r.DB.QueryRow(registeredTokenQuery+` WHERE t.canary_token_id=$1`, canaryTokenID).Scan(
		&rt.TokenID, &rt.DriveID, &rt.CampaignID, &rt.DriveCode, &rt.TokenType, &rt.CanaryTokenID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFound("token", canaryTokenID)
		}
		return nil, err
	}
	return &rt, nil
}

// ListRegistered loads every token with its drive context. Used to warm
// the in-memory registry at startup.
func (r *TokenRepository) ListRegistered() ([]*RegisteredToken, error) {
	rows, err := r.DB.Query(registeredTokenQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*RegisteredToken{}
	for rows.Next() {
		rt := &RegisteredToken{}
		if err := rows.Scan(&rt.TokenID, &rt.DriveID, &rt.CampaignID, &rt.DriveCode, &rt.TokenType, &rt.CanaryTokenID); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

var _ TokenRepositoryInterface = (*TokenRepository)(nil)
