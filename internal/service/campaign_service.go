// internal/service/campaign_service.go
package service

import (
	"github.com/google/uuid"

	"github.com/dropsentry/campaign-backend/internal/aggregate"
	"github.com/dropsentry/campaign-backend/internal/apperrors"
	"github.com/dropsentry/campaign-backend/internal/model"
	"github.com/dropsentry/campaign-backend/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	DriveRepo    repository.DriveRepositoryInterface
	TokenRepo    repository.TokenRepositoryInterface
	Aggregate    *aggregate.Engine
}

func (s *CampaignService) CreateCampaign(name, clientName, description string, targetDriveCount int) (*model.Campaign, error) {
	c := &model.Campaign{
		Name:             name,
		ClientName:       clientName,
		Description:      description,
		TargetDriveCount: targetDriveCount,
		Status:           model.CampaignDraft,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaign(id uuid.UUID) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(id)
}

func (s *CampaignService) UpdateStatus(id uuid.UUID, status model.CampaignStatus) error {
	if !status.Valid() {
		return apperrors.NewInvalidTransition(id.String(), "", string(status), "unknown campaign status")
	}
	return s.CampaignRepo.UpdateStatus(id, status)
}

// Stats returns the aggregate snapshot for a campaign.
func (s *CampaignService) Stats(campaignID uuid.UUID) (aggregate.Snapshot, error) {
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return aggregate.Snapshot{}, err
	}
	return s.Aggregate.Snapshot(campaignID), nil
}

// DriveReport is one drive row in a campaign report.
type DriveReport struct {
	Code         string            `json:"code"`
	Status       model.DriveStatus `json:"status"`
	Label        string            `json:"label,omitempty"`
	TokenCount   int               `json:"token_count"`
	TriggerCount int               `json:"trigger_count"`
	Deployment   *model.Deployment `json:"deployment,omitempty"`
}

type CampaignReport struct {
	Campaign *model.Campaign    `json:"campaign"`
	Stats    aggregate.Snapshot `json:"stats"`
	Drives   []DriveReport      `json:"drives"`
}

// Report assembles the detailed per-campaign view: aggregates plus one
// row per drive with its deployment.
func (s *CampaignService) Report(campaignID uuid.UUID) (*CampaignReport, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	drives, _, err := s.DriveRepo.ListDrives(&campaignID, "", 0, 1000)
	if err != nil {
		return nil, err
	}

	report := &CampaignReport{
		Campaign: campaign,
		Stats:    s.Aggregate.Snapshot(campaignID),
		Drives:   []DriveReport{},
	}

	for _, d := range drives {
		tokens, err := s.TokenRepo.GetByDrive(d.ID)
		if err != nil {
			return nil, err
		}
		triggerCount := 0
		for _, t := range tokens {
			triggerCount += t.TriggerCount
		}

		row := DriveReport{
			Code:         d.Code,
			Status:       d.Status,
			Label:        d.Label,
			TokenCount:   len(tokens),
			TriggerCount: triggerCount,
		}
		if d.Status.Reached(model.DriveDeployed) {
			if dep, err := s.DriveRepo.GetDeployment(d.ID); err == nil {
				row.Deployment = dep
			}
		}
		report.Drives = append(report.Drives, row)
	}

	return report, nil
}
