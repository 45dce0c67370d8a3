package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/dropsentry/campaign-backend/internal/apperrors"
	"github.com/dropsentry/campaign-backend/internal/model"
)

type ProfileRepositoryInterface interface {
	Create(p *model.Profile) error
	GetByID(id uuid.UUID) (*model.Profile, error)
	ListProfiles() ([]*model.Profile, error)
}

type ProfileRepository struct {
	DB *sql.DB
}

func (r *ProfileRepository) Create(p *model.Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()
	types := make([]string, len(p.TokenTypes))
	for i, t := range p.TokenTypes {
		types[i] = string(t)
	}
	query := `
        INSERT INTO profiles (id, name, description, scenario_type, theme, token_types, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.DB.Exec(query, p.ID, p.Name, p.Description, p.ScenarioType, p.Theme, pq.Array(types), p.CreatedAt)
	return err
}

func (r *ProfileRepository) GetByID(id uuid.UUID) (*model.Profile, error) {
	query := `
        SELECT id, name, description, scenario_type, theme, token_types, created_at
        FROM profiles WHERE id=$1
    `
	var p model.Profile
	var types []string
	err := r.DB.QueryRow(query, id).Scan(&p.ID, &p.Name, &p.Description, &p.ScenarioType, &p.Theme, pq.Array(&types), &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFound("profile", id.String())
		}
		return nil, err
	}
	for _, t := range types {
		p.TokenTypes = append(p.TokenTypes, model.TokenType(t))
	}
	return &p, nil
}

func (r *ProfileRepository) ListProfiles() ([]*model.Profile, error) {
	rows, err := r.DB.Query(`SELECT id, name, description, scenario_type, theme, token_types, created_at FROM profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []*model.Profile{}
	for rows.Next() {
		p := &model.Profile{}
		var types []string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.ScenarioType, &p.Theme, pq.Array(&types), &p.CreatedAt); err != nil {
			return nil, err
		}
		for _, t := range types {
			p.TokenTypes = append(p.TokenTypes, model.TokenType(t))
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

var _ ProfileRepositoryInterface = (*ProfileRepository)(nil)
