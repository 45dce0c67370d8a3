package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropsentry/campaign-backend/internal/apperrors"
	"github.com/dropsentry/campaign-backend/internal/canary"
	"github.com/dropsentry/campaign-backend/internal/geo"
	"github.com/dropsentry/campaign-backend/internal/model"
	"github.com/dropsentry/campaign-backend/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres schema. The repo
// adapters below share it so cross-table operations (trigger append +
// drive transition) stay atomic under one mutex, like the real
// transaction.
type memStore struct {
	mu          sync.Mutex
	campaigns   map[uuid.UUID]*model.Campaign
	profiles    map[uuid.UUID]*model.Profile
	drives      map[uuid.UUID]*model.Drive
	deployments map[uuid.UUID]*model.Deployment // keyed by drive ID
	tokens      map[uuid.UUID]*model.Token
	triggers    []*model.TriggerEvent
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:   make(map[uuid.UUID]*model.Campaign),
		profiles:    make(map[uuid.UUID]*model.Profile),
		drives:      make(map[uuid.UUID]*model.Drive),
		deployments: make(map[uuid.UUID]*model.Deployment),
		tokens:      make(map[uuid.UUID]*model.Token),
	}
}

// ---------------- campaign repo ----------------

type memCampaignRepo struct{ s *memStore }

func (r *memCampaignRepo) Create(c *model.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	c.CreatedAt = time.Now().UTC()
	r.s.campaigns[c.ID] = c
	return nil
}

func (r *memCampaignRepo) GetByID(id uuid.UUID) (*model.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, apperrors.NewNotFound("campaign", id.String())
	}
	return c, nil
}

func (r *memCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range r.s.campaigns {
		if status == "" || string(c.Status) == status {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (r *memCampaignRepo) UpdateStatus(id uuid.UUID, status model.CampaignStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return apperrors.NewNotFound("campaign", id.String())
	}
	c.Status = status
	return nil
}

// ---------------- profile repo ----------------

type memProfileRepo struct{ s *memStore }

func (r *memProfileRepo) Create(p *model.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.s.profiles[p.ID] = p
	return nil
}

func (r *memProfileRepo) GetByID(id uuid.UUID) (*model.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, apperrors.NewNotFound("profile", id.String())
	}
	return p, nil
}

func (r *memProfileRepo) ListProfiles() ([]*model.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Profile{}
	for _, p := range r.s.profiles {
		out = append(out, p)
	}
	return out, nil
}

// ---------------- drive repo ----------------

type memDriveRepo struct{ s *memStore }

func (r *memDriveRepo) Create(d *model.Drive) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Code == "" {
		d.Code = model.NewDriveCode()
	}
	if d.Status == "" {
		d.Status = model.DriveCreated
	}
	d.CreatedAt = time.Now().UTC()
	r.s.drives[d.ID] = d
	return nil
}

func (r *memDriveRepo) GetByID(id uuid.UUID) (*model.Drive, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drives[id]
	if !ok {
		return nil, apperrors.NewNotFound("drive", id.String())
	}
	cp := *d
	return &cp, nil
}

func (r *memDriveRepo) GetByCode(code string) (*model.Drive, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.drives {
		if d.Code == code {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFound("drive", code)
}

func (r *memDriveRepo) ListDrives(campaignID *uuid.UUID, status string, offset, limit int) ([]*model.Drive, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Drive{}
	for _, d := range r.s.drives {
		if campaignID != nil && d.CampaignID != *campaignID {
			continue
		}
		if status != "" && string(d.Status) != status {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (r *memDriveRepo) ListAll() ([]*model.Drive, error) {
	drives, _, err := r.ListDrives(nil, "", 0, 0)
	return drives, err
}

func (r *memDriveRepo) MarkPrepared(id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drives[id]
	if !ok || d.Status != model.DriveCreated {
		return false, nil
	}
	d.Status = model.DrivePrepared
	d.PreparedAt = &at
	return true, nil
}

func (r *memDriveRepo) MarkRecovered(id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drives[id]
	if !ok || d.Status == model.DriveRecovered {
		return false, nil
	}
	d.Status = model.DriveRecovered
	d.RecoveredAt = &at
	return true, nil
}

func (r *memDriveRepo) AttachDeployment(dep *model.Deployment) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drives[dep.DriveID]
	if !ok || d.Status != model.DrivePrepared {
		return false, nil
	}
	if dep.ID == uuid.Nil {
		dep.ID = uuid.New()
	}
	if dep.DeployedAt.IsZero() {
		dep.DeployedAt = time.Now().UTC()
	}
	d.Status = model.DriveDeployed
	d.DeployedAt = &dep.DeployedAt
	r.s.deployments[dep.DriveID] = dep
	return true, nil
}

func (r *memDriveRepo) GetDeployment(driveID uuid.UUID) (*model.Deployment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	dep, ok := r.s.deployments[driveID]
	if !ok {
		return nil, apperrors.NewNotFound("deployment", driveID.String())
	}
	return dep, nil
}

func (r *memDriveRepo) ListDeployments(campaignID *uuid.UUID) ([]*repository.DeploymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*repository.DeploymentRecord{}
	for driveID, dep := range r.s.deployments {
		d, ok := r.s.drives[driveID]
		if !ok {
			continue
		}
		if campaignID != nil && d.CampaignID != *campaignID {
			continue
		}
		out = append(out, &repository.DeploymentRecord{Deployment: *dep, DriveCode: d.Code})
	}
	return out, nil
}

// ---------------- token repo ----------------

type memTokenRepo struct{ s *memStore }

func (r *memTokenRepo) Create(t *model.Token) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now().UTC()
	r.s.tokens[t.ID] = t
	return nil
}

func (r *memTokenRepo) GetByDrive(driveID uuid.UUID) ([]*model.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Token{}
	for _, t := range r.s.tokens {
		if t.DriveID == driveID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memTokenRepo) registered(t *model.Token) *repository.RegisteredToken {
	d := r.s.drives[t.DriveID]
	return &repository.RegisteredToken{
		TokenID:       t.ID,
		DriveID:       t.DriveID,
		CampaignID:    d.CampaignID,
		DriveCode:     d.Code,
		TokenType:     t.TokenType,
		CanaryTokenID: t.CanaryTokenID,
	}
}

func (r *memTokenRepo) GetByExternalID(canaryTokenID string) (*repository.RegisteredToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.CanaryTokenID == canaryTokenID {
			return r.registered(t), nil
		}
	}
	return nil, apperrors.NewNotFound("token", canaryTokenID)
}

func (r *memTokenRepo) ListRegistered() ([]*repository.RegisteredToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*repository.RegisteredToken{}
	for _, t := range r.s.tokens {
		out = append(out, r.registered(t))
	}
	return out, nil
}

// ---------------- trigger repo ----------------

type memTriggerRepo struct{ s *memStore }

func (r *memTriggerRepo) AppendEvent(ev *model.TriggerEvent, driveID uuid.UUID, markTriggered bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.TriggeredAt.IsZero() {
		ev.TriggeredAt = time.Now().UTC()
	}
	r.s.triggers = append(r.s.triggers, ev)

	if t, ok := r.s.tokens[ev.TokenID]; ok {
		t.TriggerCount++
		if t.FirstTriggeredAt == nil {
			at := ev.TriggeredAt
			t.FirstTriggeredAt = &at
		}
		at := ev.TriggeredAt
		t.LastTriggeredAt = &at
	}

	transitioned := false
	if markTriggered {
		if d, ok := r.s.drives[driveID]; ok && d.Status == model.DriveDeployed {
			d.Status = model.DriveTriggered
			at := ev.TriggeredAt
			d.TriggeredAt = &at
			transitioned = true
		}
	}
	return transitioned, nil
}

func (r *memTriggerRepo) record(ev *model.TriggerEvent) *repository.TriggerRecord {
	t := r.s.tokens[ev.TokenID]
	d := r.s.drives[t.DriveID]
	c := r.s.campaigns[d.CampaignID]
	name := ""
	if c != nil {
		name = c.Name
	}
	return &repository.TriggerRecord{
		Event:        *ev,
		TokenType:    t.TokenType,
		Filename:     t.Filename,
		DriveID:      d.ID,
		DriveCode:    d.Code,
		CampaignID:   d.CampaignID,
		CampaignName: name,
	}
}

func (r *memTriggerRepo) ListRecent(since time.Time, campaignID *uuid.UUID, limit int) ([]*repository.TriggerRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*repository.TriggerRecord{}
	for _, ev := range r.s.triggers {
		if ev.TriggeredAt.Before(since) {
			continue
		}
		rec := r.record(ev)
		if campaignID != nil && rec.CampaignID != *campaignID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *memTriggerRepo) ListAll() ([]*repository.TriggerRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*repository.TriggerRecord{}
	for _, ev := range r.s.triggers {
		out = append(out, r.record(ev))
	}
	return out, nil
}

func (r *memTriggerRepo) CountSince(since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, ev := range r.s.triggers {
		if !ev.TriggeredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// ---------------- fakes ----------------

// fakeCanary issues deterministic token IDs and can be told to fail
// for specific kinds.
type fakeCanary struct {
	mu        sync.Mutex
	calls     map[string]int
	failKinds map[string]bool
	seq       int
}

func newFakeCanary() *fakeCanary {
	return &fakeCanary{
		calls:     make(map[string]int),
		failKinds: make(map[string]bool),
	}
}

func (f *fakeCanary) CreateToken(_ context.Context, kind, memo string) (*canary.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind]++
	if f.failKinds[kind] {
		return nil, apperrors.NewUpstreamUnavailable("create token", errors.New("connection refused"))
	}
	f.seq++
	id := fmt.Sprintf("ct-%s-%d", kind, f.seq)
	return &canary.CreateResult{
		TokenID:  id,
		Hostname: id + ".canary.example.com",
	}, nil
}

// stubEnricher returns a fixed location, or nothing at all, after an
// optional delay standing in for lookup latency.
type stubEnricher struct {
	loc   geo.Location
	ok    bool
	delay time.Duration
}

func (e *stubEnricher) Lookup(context.Context, string) (geo.Location, bool) {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	return e.loc, e.ok
}
