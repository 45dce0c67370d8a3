package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropsentry/campaign-backend/internal/model"
	"github.com/dropsentry/campaign-backend/internal/repository"
)

type fakeAlertDriveRepo struct {
	deployments []*repository.DeploymentRecord
	getByIDs    int
}

func (f *fakeAlertDriveRepo) Create(*model.Drive) error { panic("not used") }
func (f *fakeAlertDriveRepo) GetByID(uuid.UUID) (*model.Drive, error) {
	f.getByIDs++
	return &model.Drive{}, nil
}
func (f *fakeAlertDriveRepo) GetByCode(string) (*model.Drive, error) { panic("not used") }
func (f *fakeAlertDriveRepo) ListDrives(*uuid.UUID, string, int, int) ([]*model.Drive, int, error) {
	panic("not used")
}
func (f *fakeAlertDriveRepo) ListAll() ([]*model.Drive, error)                { panic("not used") }
func (f *fakeAlertDriveRepo) MarkPrepared(uuid.UUID, time.Time) (bool, error) { panic("not used") }
func (f *fakeAlertDriveRepo) MarkRecovered(uuid.UUID, time.Time) (bool, error) {
	panic("not used")
}
func (f *fakeAlertDriveRepo) AttachDeployment(*model.Deployment) (bool, error) { panic("not used") }
func (f *fakeAlertDriveRepo) GetDeployment(uuid.UUID) (*model.Deployment, error) {
	panic("not used")
}

func (f *fakeAlertDriveRepo) ListDeployments(*uuid.UUID) ([]*repository.DeploymentRecord, error) {
	return f.deployments, nil
}

type fakeAlertTriggerRepo struct {
	records []*repository.TriggerRecord
}

func (f *fakeAlertTriggerRepo) AppendEvent(*model.TriggerEvent, uuid.UUID, bool) (bool, error) {
	panic("not used")
}
func (f *fakeAlertTriggerRepo) ListAll() ([]*repository.TriggerRecord, error) { panic("not used") }
func (f *fakeAlertTriggerRepo) CountSince(time.Time) (int, error)             { panic("not used") }

func (f *fakeAlertTriggerRepo) ListRecent(time.Time, *uuid.UUID, int) ([]*repository.TriggerRecord, error) {
	return f.records, nil
}

func TestAlertMapBuildsPointsFromJoinedRows(t *testing.T) {
	lat, lon := 52.52, 13.405
	driveRepo := &fakeAlertDriveRepo{deployments: []*repository.DeploymentRecord{
		{
			Deployment: model.Deployment{
				DriveID:      uuid.New(),
				Latitude:     37.7749,
				Longitude:    -122.4194,
				LocationName: "HQ lobby",
				DeployedAt:   time.Now().UTC(),
			},
			DriveCode: "USB-AAAAAA",
		},
		{
			Deployment: model.Deployment{
				DriveID:    uuid.New(),
				Latitude:   40.7128,
				Longitude:  -74.006,
				DeployedAt: time.Now().UTC(),
			},
			DriveCode: "USB-BBBBBB",
		},
	}}
	triggerRepo := &fakeAlertTriggerRepo{records: []*repository.TriggerRecord{
		{
			Event: model.TriggerEvent{
				ID:           uuid.New(),
				GeoLatitude:  &lat,
				GeoLongitude: &lon,
				TriggeredAt:  time.Now().UTC(),
			},
			DriveCode: "USB-AAAAAA",
		},
		// no geo fields: must be skipped
		{
			Event:     model.TriggerEvent{ID: uuid.New(), TriggeredAt: time.Now().UTC()},
			DriveCode: "USB-BBBBBB",
		},
	}}

	c := &AlertController{TriggerRepo: triggerRepo, DriveRepo: driveRepo}
	rec := httptest.NewRecorder()
	c.AlertMap(rec, httptest.NewRequest(http.MethodGet, "/alerts/map", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var points []mapPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 3)

	byType := map[string][]mapPoint{}
	for _, p := range points {
		byType[p.Type] = append(byType[p.Type], p)
		assert.NotEmpty(t, p.DriveCode)
	}
	assert.Len(t, byType["deployment"], 2)
	assert.Len(t, byType["trigger"], 1)
	assert.Equal(t, "USB-AAAAAA", byType["trigger"][0].DriveCode)

	assert.Zero(t, driveRepo.getByIDs, "drive codes come from the deployment join, not per-row lookups")
}

func TestAlertMapRejectsBadCampaignID(t *testing.T) {
	c := &AlertController{
		TriggerRepo: &fakeAlertTriggerRepo{},
		DriveRepo:   &fakeAlertDriveRepo{},
	}
	rec := httptest.NewRecorder()
	c.AlertMap(rec, httptest.NewRequest(http.MethodGet, "/alerts/map?campaign_id=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
