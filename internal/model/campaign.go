// internal/model/campaign.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
	CampaignArchived  CampaignStatus = "archived"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignActive, CampaignCompleted, CampaignArchived:
		return true
	}
	return false
}

// Campaign groups the drives for one client engagement. Status is
// operator-set, never derived.
type Campaign struct {
	ID               uuid.UUID      `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	ClientName       string         `db:"client_name" json:"client_name"`
	Description      string         `db:"description" json:"description,omitempty"`
	Status           CampaignStatus `db:"status" json:"status"`
	TargetDriveCount int            `db:"target_drive_count" json:"target_drive_count"`
	Notes            string         `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}
