package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropsentry/campaign-backend/internal/apperrors"
	"github.com/dropsentry/campaign-backend/internal/model"
	"github.com/dropsentry/campaign-backend/internal/service"
)

func newCampaignService(f *driveFixture) *service.CampaignService {
	return &service.CampaignService{
		CampaignRepo: f.drives.CampaignRepo,
		DriveRepo:    f.drives.DriveRepo,
		TokenRepo:    f.drives.TokenRepo,
		Aggregate:    f.drives.Aggregate,
	}
}

func TestCreateCampaignStartsDraft(t *testing.T) {
	f := newDriveFixture(t, model.TokenDNS)
	svc := newCampaignService(f)

	c, err := svc.CreateCampaign("Q4 Assessment", "Initech", "parking lot drop", 25)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, model.CampaignDraft, c.Status)
	assert.Equal(t, 25, c.TargetDriveCount)
}

func TestListCampaignsPagination(t *testing.T) {
	f := newDriveFixture(t, model.TokenDNS)
	svc := newCampaignService(f)

	_, pagination, err := svc.ListCampaigns(0, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 1, pagination["page"])
	assert.Equal(t, 20, pagination["page_size"])
	assert.Equal(t, 1, pagination["total_count"])
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newDriveFixture(t, model.TokenDNS)
	svc := newCampaignService(f)

	err := svc.UpdateStatus(f.campaign.ID, model.CampaignStatus("paused"))
	var it *apperrors.InvalidTransitionError
	assert.ErrorAs(t, err, &it)

	require.NoError(t, svc.UpdateStatus(f.campaign.ID, model.CampaignCompleted))
	got, err := svc.GetCampaign(f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignCompleted, got.Status)
}

func TestStatsUnknownCampaign(t *testing.T) {
	f := newDriveFixture(t, model.TokenDNS)
	svc := newCampaignService(f)

	_, err := svc.Stats(uuid.New())
	var nf *apperrors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestReportCoversDrivesAndDeployments(t *testing.T) {
	f := newDriveFixture(t, model.TokenDNS, model.TokenWord)
	svc := newCampaignService(f)

	deployed := f.newDrive(t)
	_, err := f.drives.Prepare(context.Background(), deployed.ID)
	require.NoError(t, err)
	_, err = f.drives.RecordDeployment(deployed.ID, service.DeploymentInput{
		Latitude:     floatPtr(51.5074),
		Longitude:    floatPtr(-0.1278),
		LocationName: "reception desk",
	})
	require.NoError(t, err)

	idle := f.newDrive(t)

	report, err := svc.Report(f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, f.campaign.ID, report.Campaign.ID)
	require.Len(t, report.Drives, 2)

	byCode := map[string]service.DriveReport{}
	for _, row := range report.Drives {
		byCode[row.Code] = row
	}

	dep := byCode[deployed.Code]
	assert.Equal(t, model.DriveDeployed, dep.Status)
	assert.Equal(t, 2, dep.TokenCount)
	require.NotNil(t, dep.Deployment)
	assert.Equal(t, "reception desk", dep.Deployment.LocationName)

	rest := byCode[idle.Code]
	assert.Equal(t, model.DriveCreated, rest.Status)
	assert.Equal(t, 0, rest.TokenCount)
	assert.Nil(t, rest.Deployment)
}
