package aggregate_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropsentry/campaign-backend/internal/aggregate"
	"github.com/dropsentry/campaign-backend/internal/model"
	"github.com/dropsentry/campaign-backend/internal/repository"
)

func TestSnapshotUnknownCampaignIsEmpty(t *testing.T) {
	e := aggregate.NewEngine()
	snap := e.Snapshot(uuid.New())

	assert.Equal(t, 0, snap.TotalDrives)
	assert.Equal(t, 0, snap.TotalTriggers)
	assert.Empty(t, snap.DrivesByStatus)
	assert.Empty(t, snap.TopDrives)
	assert.Nil(t, snap.FirstTrigger)
}

func TestApplyTransitionMovesStatusBuckets(t *testing.T) {
	e := aggregate.NewEngine()
	campaignID := uuid.New()

	e.TrackDrive(campaignID, model.DriveCreated)
	e.TrackDrive(campaignID, model.DriveCreated)
	e.ApplyTransition(campaignID, model.DriveCreated, model.DrivePrepared)

	snap := e.Snapshot(campaignID)
	assert.Equal(t, 2, snap.TotalDrives)
	assert.Equal(t, 1, snap.DrivesByStatus["created"])
	assert.Equal(t, 1, snap.DrivesByStatus["prepared"])
}

func TestApplyTriggerAccumulates(t *testing.T) {
	e := aggregate.NewEngine()
	campaignID := uuid.New()
	driveID := uuid.New()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	e.TrackDrive(campaignID, model.DriveDeployed)
	e.ApplyTrigger(aggregate.TriggerFact{
		CampaignID: campaignID, DriveID: driveID, DriveCode: "USB-AAAAAA",
		SourceIP: "198.51.100.1", TriggeredAt: base,
	})
	e.ApplyTrigger(aggregate.TriggerFact{
		CampaignID: campaignID, DriveID: driveID, DriveCode: "USB-AAAAAA",
		SourceIP: "198.51.100.1", TriggeredAt: base.Add(26 * time.Hour),
	})
	e.ApplyTrigger(aggregate.TriggerFact{
		CampaignID: campaignID, DriveID: driveID, DriveCode: "USB-AAAAAA",
		SourceIP: "203.0.113.5", TriggeredAt: base.Add(27 * time.Hour),
	})

	snap := e.Snapshot(campaignID)
	assert.Equal(t, 3, snap.TotalTriggers)
	assert.Equal(t, 2, snap.UniqueSourceIPs)
	require.NotNil(t, snap.FirstTrigger)
	require.NotNil(t, snap.LastTrigger)
	assert.Equal(t, base, *snap.FirstTrigger)
	assert.Equal(t, base.Add(27*time.Hour), *snap.LastTrigger)
	assert.Equal(t, 1, snap.DailyTriggers["2026-03-14"])
	assert.Equal(t, 2, snap.DailyTriggers["2026-03-15"])

	require.Len(t, snap.TopDrives, 1)
	assert.Equal(t, 3, snap.TopDrives[0].TriggerCount)
}

func TestTopDrivesOrderingAndLimit(t *testing.T) {
	e := aggregate.NewEngine()
	campaignID := uuid.New()
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// 12 drives: drive n fires n+1 times, plus one tie on count 2.
	for n := 0; n < 12; n++ {
		driveID := uuid.New()
		code := fmt.Sprintf("USB-%06X", n)
		for i := 0; i <= n; i++ {
			e.ApplyTrigger(aggregate.TriggerFact{
				CampaignID: campaignID, DriveID: driveID, DriveCode: code,
				SourceIP: "198.51.100.1", TriggeredAt: at,
			})
		}
	}
	tieID := uuid.New()
	for i := 0; i < 2; i++ {
		e.ApplyTrigger(aggregate.TriggerFact{
			CampaignID: campaignID, DriveID: tieID, DriveCode: "USB-000000-TIE",
			SourceIP: "198.51.100.1", TriggeredAt: at,
		})
	}

	snap := e.Snapshot(campaignID)
	require.Len(t, snap.TopDrives, 10)
	assert.Equal(t, 12, snap.TopDrives[0].TriggerCount)
	for i := 1; i < len(snap.TopDrives); i++ {
		prev, cur := snap.TopDrives[i-1], snap.TopDrives[i]
		if prev.TriggerCount == cur.TriggerCount {
			assert.Less(t, prev.DriveCode, cur.DriveCode, "ties break by code")
		} else {
			assert.Greater(t, prev.TriggerCount, cur.TriggerCount)
		}
	}
}

// Incremental application and a full replay of the same history must
// land on identical snapshots.
func TestReplayMatchesIncremental(t *testing.T) {
	campaignA := uuid.New()
	campaignB := uuid.New()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	drives := []*model.Drive{
		{ID: uuid.New(), CampaignID: campaignA, Code: "USB-000001", Status: model.DriveTriggered},
		{ID: uuid.New(), CampaignID: campaignA, Code: "USB-000002", Status: model.DriveDeployed},
		{ID: uuid.New(), CampaignID: campaignA, Code: "USB-000003", Status: model.DriveRecovered},
		{ID: uuid.New(), CampaignID: campaignB, Code: "USB-000004", Status: model.DriveCreated},
	}

	var records []*repository.TriggerRecord
	for i := 0; i < 20; i++ {
		d := drives[i%3]
		records = append(records, &repository.TriggerRecord{
			Event: model.TriggerEvent{
				ID:          uuid.New(),
				SourceIP:    fmt.Sprintf("198.51.100.%d", i%7),
				TriggeredAt: base.Add(time.Duration(i) * 3 * time.Hour),
			},
			DriveID:    d.ID,
			DriveCode:  d.Code,
			CampaignID: d.CampaignID,
		})
	}

	incremental := aggregate.NewEngine()
	for _, d := range drives {
		incremental.TrackDrive(d.CampaignID, d.Status)
	}
	for _, rec := range records {
		incremental.ApplyTrigger(aggregate.TriggerFact{
			CampaignID:  rec.CampaignID,
			DriveID:     rec.DriveID,
			DriveCode:   rec.DriveCode,
			SourceIP:    rec.Event.SourceIP,
			TriggeredAt: rec.Event.TriggeredAt,
		})
	}

	replayed := aggregate.Replay(drives, records)

	for _, campaignID := range []uuid.UUID{campaignA, campaignB} {
		assert.Equal(t, incremental.Snapshot(campaignID), replayed.Snapshot(campaignID))
	}
}
