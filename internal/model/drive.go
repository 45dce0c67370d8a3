// internal/model/drive.go
package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

type DriveStatus string

const (
	DriveCreated   DriveStatus = "created"   // record exists, no tokens yet
	DrivePrepared  DriveStatus = "prepared"  // all profile tokens issued
	DriveDeployed  DriveStatus = "deployed"  // physically placed in the field
	DriveTriggered DriveStatus = "triggered" // at least one token fired
	DriveRecovered DriveStatus = "recovered" // drive retrieved; terminal
)

// Reached reports whether s is at or past target in the lifecycle order.
func (s DriveStatus) Reached(target DriveStatus) bool {
	order := map[DriveStatus]int{
		DriveCreated:   0,
		DrivePrepared:  1,
		DriveDeployed:  2,
		DriveTriggered: 3,
		DriveRecovered: 4,
	}
	return order[s] >= order[target]
}

// NewDriveCode generates a code like USB-A1B2C3. Uniqueness is enforced
// by the drives table.
func NewDriveCode() string {
	b := make([]byte, 3)
	rand.Read(b)
	return "USB-" + strings.ToUpper(hex.EncodeToString(b))
}

// Drive is one physical storage medium tracked through the lifecycle.
// CampaignID and Code are immutable after creation.
type Drive struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	CampaignID  uuid.UUID   `db:"campaign_id" json:"campaign_id"`
	ProfileID   *uuid.UUID  `db:"profile_id" json:"profile_id,omitempty"`
	Code        string      `db:"code" json:"code"`
	Label       string      `db:"label" json:"label,omitempty"`
	Notes       string      `db:"notes" json:"notes,omitempty"`
	Status      DriveStatus `db:"status" json:"status"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	PreparedAt  *time.Time  `db:"prepared_at" json:"prepared_at,omitempty"`
	DeployedAt  *time.Time  `db:"deployed_at" json:"deployed_at,omitempty"`
	TriggeredAt *time.Time  `db:"triggered_at" json:"triggered_at,omitempty"`
	RecoveredAt *time.Time  `db:"recovered_at" json:"recovered_at,omitempty"`
}

// Deployment records where a drive was physically placed. Written exactly
// once, on the prepared -> deployed transition.
type Deployment struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	DriveID             uuid.UUID `db:"drive_id" json:"drive_id"`
	Latitude            float64   `db:"latitude" json:"latitude"`
	Longitude           float64   `db:"longitude" json:"longitude"`
	LocationName        string    `db:"location_name" json:"location_name,omitempty"`
	LocationDescription string    `db:"location_description" json:"location_description,omitempty"`
	DeployedBy          string    `db:"deployed_by" json:"deployed_by,omitempty"`
	DeployedAt          time.Time `db:"deployed_at" json:"deployed_at"`
}
