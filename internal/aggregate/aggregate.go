// Package aggregate maintains the derived read models: per-campaign
// totals, per-drive trigger counts, daily histograms, and the
// top-triggered-drives ranking. These are caches over the trigger log
// and the drives table; Replay rebuilds them from scratch and must
// produce identical snapshots.
package aggregate

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropsentry/campaign-backend/internal/model"
	"github.com/dropsentry/campaign-backend/internal/repository"
)

// TriggerFact is the slice of a trigger event the engine cares about.
type TriggerFact struct {
	CampaignID  uuid.UUID
	DriveID     uuid.UUID
	DriveCode   string
	SourceIP    string
	TriggeredAt time.Time
}

// DriveStats is one row of the per-drive view.
type DriveStats struct {
	DriveID      uuid.UUID  `json:"drive_id"`
	DriveCode    string     `json:"drive_code"`
	TriggerCount int        `json:"trigger_count"`
	FirstTrigger *time.Time `json:"first_trigger,omitempty"`
	LastTrigger  *time.Time `json:"last_trigger,omitempty"`
}

// Snapshot is a point-in-time read of one campaign's aggregates.
type Snapshot struct {
	CampaignID      uuid.UUID      `json:"campaign_id"`
	TotalDrives     int            `json:"total_drives"`
	DrivesByStatus  map[string]int `json:"drives_by_status"`
	TotalTriggers   int            `json:"total_triggers"`
	UniqueSourceIPs int            `json:"unique_source_ips"`
	FirstTrigger    *time.Time     `json:"first_trigger,omitempty"`
	LastTrigger     *time.Time     `json:"last_trigger,omitempty"`
	DailyTriggers   map[string]int `json:"daily_triggers"`
	TopDrives       []DriveStats   `json:"top_drives"`
}

type campaignState struct {
	drivesByStatus map[model.DriveStatus]int
	totalTriggers  int
	uniqueIPs      map[string]struct{}
	firstTrigger   *time.Time
	lastTrigger    *time.Time
	daily          map[string]int
	drives         map[uuid.UUID]*DriveStats
}

func newCampaignState() *campaignState {
	return &campaignState{
		drivesByStatus: make(map[model.DriveStatus]int),
		uniqueIPs:      make(map[string]struct{}),
		daily:          make(map[string]int),
		drives:         make(map[uuid.UUID]*DriveStats),
	}
}

type Engine struct {
	mu        sync.RWMutex
	campaigns map[uuid.UUID]*campaignState
}

func NewEngine() *Engine {
	return &Engine{campaigns: make(map[uuid.UUID]*campaignState)}
}

func (e *Engine) state(campaignID uuid.UUID) *campaignState {
	st, ok := e.campaigns[campaignID]
	if !ok {
		st = newCampaignState()
		e.campaigns[campaignID] = st
	}
	return st
}

// TrackDrive registers a drive in its campaign's status counts. Called
// when a drive is created and during bootstrap.
func (e *Engine) TrackDrive(campaignID uuid.UUID, status model.DriveStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state(campaignID).drivesByStatus[status]++
}

// ApplyTransition moves one drive between status buckets.
func (e *Engine) ApplyTransition(campaignID uuid.UUID, from, to model.DriveStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state(campaignID)
	if st.drivesByStatus[from] > 0 {
		st.drivesByStatus[from]--
	}
	st.drivesByStatus[to]++
}

// ApplyTrigger folds one trigger event into the campaign's aggregates.
func (e *Engine) ApplyTrigger(f TriggerFact) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state(f.CampaignID)

	st.totalTriggers++
	if f.SourceIP != "" {
		st.uniqueIPs[f.SourceIP] = struct{}{}
	}
	at := f.TriggeredAt
	if st.firstTrigger == nil || at.Before(*st.firstTrigger) {
		t := at
		st.firstTrigger = &t
	}
	if st.lastTrigger == nil || at.After(*st.lastTrigger) {
		t := at
		st.lastTrigger = &t
	}
	st.daily[at.UTC().Format("2006-01-02")]++

	ds, ok := st.drives[f.DriveID]
	if !ok {
		ds = &DriveStats{DriveID: f.DriveID, DriveCode: f.DriveCode}
		st.drives[f.DriveID] = ds
	}
	ds.TriggerCount++
	if ds.FirstTrigger == nil || at.Before(*ds.FirstTrigger) {
		t := at
		ds.FirstTrigger = &t
	}
	if ds.LastTrigger == nil || at.After(*ds.LastTrigger) {
		t := at
		ds.LastTrigger = &t
	}
}

const topDrivesLimit = 10

// Snapshot returns a copy of one campaign's aggregates. Unknown
// campaigns yield an empty snapshot rather than an error.
func (e *Engine) Snapshot(campaignID uuid.UUID) Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		CampaignID:     campaignID,
		DrivesByStatus: make(map[string]int),
		DailyTriggers:  make(map[string]int),
		TopDrives:      []DriveStats{},
	}
	st, ok := e.campaigns[campaignID]
	if !ok {
		return snap
	}

	for status, n := range st.drivesByStatus {
		snap.DrivesByStatus[string(status)] = n
		snap.TotalDrives += n
	}
	snap.TotalTriggers = st.totalTriggers
	snap.UniqueSourceIPs = len(st.uniqueIPs)
	if st.firstTrigger != nil {
		t := *st.firstTrigger
		snap.FirstTrigger = &t
	}
	if st.lastTrigger != nil {
		t := *st.lastTrigger
		snap.LastTrigger = &t
	}
	for day, n := range st.daily {
		snap.DailyTriggers[day] = n
	}

	for _, ds := range st.drives {
		snap.TopDrives = append(snap.TopDrives, *ds)
	}
	sort.Slice(snap.TopDrives, func(i, j int) bool {
		if snap.TopDrives[i].TriggerCount != snap.TopDrives[j].TriggerCount {
			return snap.TopDrives[i].TriggerCount > snap.TopDrives[j].TriggerCount
		}
		return snap.TopDrives[i].DriveCode < snap.TopDrives[j].DriveCode
	})
	if len(snap.TopDrives) > topDrivesLimit {
		snap.TopDrives = snap.TopDrives[:topDrivesLimit]
	}
	return snap
}

// Replay rebuilds a fresh engine from the drives table and the full
// trigger log. Used at startup and as the repair path when incremental
// state is suspect.
func Replay(drives []*model.Drive, records []*repository.TriggerRecord) *Engine {
	e := NewEngine()
	for _, d := range drives {
		e.TrackDrive(d.CampaignID, d.Status)
	}
	for _, rec := range records {
		e.ApplyTrigger(TriggerFact{
			CampaignID:  rec.CampaignID,
			DriveID:     rec.DriveID,
			DriveCode:   rec.DriveCode,
			SourceIP:    rec.Event.SourceIP,
			TriggeredAt: rec.Event.TriggeredAt,
		})
	}
	return e
}
