// internal/service/drive_service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dropsentry/campaign-backend/internal/aggregate"
	"github.com/dropsentry/campaign-backend/internal/apperrors"
	"github.com/dropsentry/campaign-backend/internal/canary"
	"github.com/dropsentry/campaign-backend/internal/model"
	"github.com/dropsentry/campaign-backend/internal/registry"
	"github.com/dropsentry/campaign-backend/internal/repository"
)

// DriveService owns the drive state machine. It is the only writer of
// drive status; everything else reads. Writes for one drive are
// serialized through a per-drive mutex so the first-trigger transition
// cannot race into double-firing.
type DriveService struct {
	DriveRepo    repository.DriveRepositoryInterface
	TokenRepo    repository.TokenRepositoryInterface
	TriggerRepo  repository.TriggerRepositoryInterface
	CampaignRepo repository.CampaignRepositoryInterface
	ProfileRepo  repository.ProfileRepositoryInterface
	Canary       canary.Client
	Registry     *registry.Registry
	Aggregate    *aggregate.Engine

	locks sync.Map // drive ID -> *sync.Mutex
}

func (s *DriveService) lockDrive(id uuid.UUID) func() {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (s *DriveService) applyTransition(campaignID uuid.UUID, from, to model.DriveStatus) {
	if s.Aggregate != nil {
		s.Aggregate.ApplyTransition(campaignID, from, to)
	}
}

// DeploymentInput carries the operator-supplied deployment record.
// Coordinates are pointers: absent is distinct from zero and rejected.
type DeploymentInput struct {
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	LocationName        string   `json:"location_name"`
	LocationDescription string   `json:"location_description"`
	DeployedBy          string   `json:"deployed_by"`
}

// CreateDrive registers a new drive record under a campaign.
func (s *DriveService) CreateDrive(campaignID uuid.UUID, profileID *uuid.UUID, label, notes string) (*model.Drive, error) {
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return nil, err
	}
	if profileID != nil {
		if _, err := s.ProfileRepo.GetByID(*profileID); err != nil {
			return nil, err
		}
	}

	d := &model.Drive{
		CampaignID: campaignID,
		ProfileID:  profileID,
		Label:      label,
		Notes:      notes,
	}
	if err := s.DriveRepo.Create(d); err != nil {
		return nil, err
	}
	if s.Aggregate != nil {
		s.Aggregate.TrackDrive(campaignID, d.Status)
	}
	return d, nil
}

// Prepare issues one honeytoken per type required by the drive's
// profile and moves the drive created -> prepared. All-or-nothing from
// the caller's perspective: a partial upstream failure leaves the drive
// in created, and a retry skips the token types that already succeeded.
func (s *DriveService) Prepare(ctx context.Context, driveID uuid.UUID) (*model.Drive, error) {
	unlock := s.lockDrive(driveID)
	defer unlock()

	drive, err := s.DriveRepo.GetByID(driveID)
	if err != nil {
		return nil, err
	}
	if drive.Status == model.DrivePrepared {
		return drive, nil // already prepared, idempotent
	}
	if drive.Status != model.DriveCreated {
		return nil, apperrors.NewInvalidTransition(driveID.String(), string(drive.Status), string(model.DrivePrepared),
			"drive is past preparation")
	}
	if drive.ProfileID == nil {
		return nil, apperrors.NewInvalidTransition(driveID.String(), string(drive.Status), string(model.DrivePrepared),
			"drive has no profile assigned")
	}

	profile, err := s.ProfileRepo.GetByID(*drive.ProfileID)
	if err != nil {
		return nil, err
	}
	if len(profile.TokenTypes) == 0 {
		return nil, apperrors.NewInvalidTransition(driveID.String(), string(drive.Status), string(model.DrivePrepared),
			"profile requires no token types")
	}

	existing, err := s.TokenRepo.GetByDrive(driveID)
	if err != nil {
		return nil, err
	}
	have := make(map[model.TokenType]bool, len(existing))
	for _, t := range existing {
		have[t.TokenType] = true
	}

	for _, tt := range profile.TokenTypes {
		if have[tt] {
			continue // issued on a previous attempt
		}

		memo := fmt.Sprintf("%s|%s", drive.Code, tt)
		result, err := s.Canary.CreateToken(ctx, tt.CanaryKind(), memo)
		if err != nil {
			// Drive stays in created; tokens issued so far are kept and
			// skipped on retry, so nothing is orphaned.
			return nil, err
		}

		url := result.URL
		if url == "" {
			url = result.Hostname
		}
		token := &model.Token{
			DriveID:       driveID,
			TokenType:     tt,
			CanaryTokenID: result.TokenID,
			Filename:      defaultFilename(tt),
			Memo:          memo,
			URL:           url,
		}
		if err := s.TokenRepo.Create(token); err != nil {
			return nil, err
		}
		if err := s.Registry.Register(&repository.RegisteredToken{
			TokenID:       token.ID,
			DriveID:       driveID,
			CampaignID:    drive.CampaignID,
			DriveCode:     drive.Code,
			TokenType:     tt,
			CanaryTokenID: result.TokenID,
		}); err != nil {
			return nil, err
		}
		have[tt] = true

		log.WithFields(log.Fields{
			"drive":      drive.Code,
			"token_type": tt,
		}).Info("token issued")
	}

	now := time.Now().UTC()
	moved, err := s.DriveRepo.MarkPrepared(driveID, now)
	if err != nil {
		return nil, err
	}
	if moved {
		drive.Status = model.DrivePrepared
		drive.PreparedAt = &now
		s.applyTransition(drive.CampaignID, model.DriveCreated, model.DrivePrepared)
	}
	return drive, nil
}

// RecordDeployment attaches the deployment record and moves the drive
// prepared -> deployed.
func (s *DriveService) RecordDeployment(driveID uuid.UUID, input DeploymentInput) (*model.Deployment, error) {
	unlock := s.lockDrive(driveID)
	defer unlock()

	drive, err := s.DriveRepo.GetByID(driveID)
	if err != nil {
		return nil, err
	}

	if input.Latitude == nil || input.Longitude == nil {
		return nil, apperrors.NewInvalidTransition(driveID.String(), string(drive.Status), string(model.DriveDeployed),
			"deployment requires latitude and longitude")
	}
	if !validLatLon(*input.Latitude, *input.Longitude) {
		return nil, apperrors.NewInvalidTransition(driveID.String(), string(drive.Status), string(model.DriveDeployed),
			"coordinates out of range")
	}
	if drive.Status != model.DrivePrepared {
		return nil, apperrors.NewInvalidTransition(driveID.String(), string(drive.Status), string(model.DriveDeployed),
			"drive must be prepared before deployment")
	}

	dep := &model.Deployment{
		DriveID:             driveID,
		Latitude:            *input.Latitude,
		Longitude:           *input.Longitude,
		LocationName:        input.LocationName,
		LocationDescription: input.LocationDescription,
		DeployedBy:          input.DeployedBy,
	}
	moved, err := s.DriveRepo.AttachDeployment(dep)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, apperrors.NewInvalidTransition(driveID.String(), string(drive.Status), string(model.DriveDeployed),
			"drive must be prepared before deployment")
	}

	s.applyTransition(drive.CampaignID, model.DrivePrepared, model.DriveDeployed)
	return dep, nil
}

// RecordTrigger appends a trigger event and, on the first accepted
// event for a deployed drive, moves it to triggered. Events against
// recovered drives are still accepted and counted: recovery stops
// deployment, not detection. Returns whether the drive transitioned.
func (s *DriveService) RecordTrigger(rt *repository.RegisteredToken, ev *model.TriggerEvent) (bool, error) {
	unlock := s.lockDrive(rt.DriveID)
	defer unlock()

	drive, err := s.DriveRepo.GetByID(rt.DriveID)
	if err != nil {
		return false, err
	}
	if !drive.Status.Reached(model.DriveDeployed) {
		return false, apperrors.NewInvalidTransition(rt.DriveID.String(), string(drive.Status), string(model.DriveTriggered),
			"drive has not been deployed")
	}

	markTriggered := drive.Status == model.DriveDeployed
	transitioned, err := s.TriggerRepo.AppendEvent(ev, rt.DriveID, markTriggered)
	if err != nil {
		return false, err
	}
	if transitioned {
		s.applyTransition(drive.CampaignID, model.DriveDeployed, model.DriveTriggered)
	}
	return transitioned, nil
}

// Recover marks a drive as physically retrieved. Legal from any state
// and idempotent: recovering a recovered drive is a no-op.
func (s *DriveService) Recover(driveID uuid.UUID) (*model.Drive, error) {
	unlock := s.lockDrive(driveID)
	defer unlock()

	drive, err := s.DriveRepo.GetByID(driveID)
	if err != nil {
		return nil, err
	}
	if drive.Status == model.DriveRecovered {
		return drive, nil
	}

	now := time.Now().UTC()
	moved, err := s.DriveRepo.MarkRecovered(driveID, now)
	if err != nil {
		return nil, err
	}
	if moved {
		s.applyTransition(drive.CampaignID, drive.Status, model.DriveRecovered)
		drive.Status = model.DriveRecovered
		drive.RecoveredAt = &now
	}
	return drive, nil
}

func validLatLon(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func defaultFilename(t model.TokenType) string {
	switch t {
	case model.TokenWord:
		return "Employee_Handbook.docx"
	case model.TokenExcel:
		return "Salary_Bands.xlsx"
	case model.TokenPDF:
		return "Org_Chart.pdf"
	case model.TokenFolder:
		return "desktop.ini"
	case model.TokenQR:
		return "WiFi_Password.png"
	}
	return ""
}
