// internal/service/ingest_service.go
package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dropsentry/campaign-backend/internal/aggregate"
	"github.com/dropsentry/campaign-backend/internal/apperrors"
	"github.com/dropsentry/campaign-backend/internal/dedup"
	"github.com/dropsentry/campaign-backend/internal/geo"
	"github.com/dropsentry/campaign-backend/internal/metrics"
	"github.com/dropsentry/campaign-backend/internal/model"
	"github.com/dropsentry/campaign-backend/internal/queue"
	"github.com/dropsentry/campaign-backend/internal/registry"
)

// IngestResult is what a webhook delivery produced.
type IngestResult struct {
	Status       string    `json:"status"` // received | ignored
	EventID      uuid.UUID `json:"event_id,omitempty"`
	DriveCode    string    `json:"drive_code,omitempty"`
	Duplicate    bool      `json:"duplicate,omitempty"`
	Transitioned bool      `json:"transitioned,omitempty"`
}

// TriggerIngestor is the webhook entry point the HTTP layer talks to.
type TriggerIngestor interface {
	Ingest(ctx context.Context, secret string, raw []byte) (IngestResult, error)
}

// IngestService turns an untrusted, possibly-duplicated webhook payload
// into a durable trigger event and a lifecycle transition. Step order:
// authenticate, resolve, dedupe, enrich, persist+transition, notify.
type IngestService struct {
	Secret    string
	Registry  *registry.Registry
	Geo       geo.Enricher
	Drives    *DriveService
	Dedup     *dedup.Window
	Queue     queue.Queue
	Aggregate *aggregate.Engine
	Metrics   *metrics.IngestMetrics
}

// webhookPayload covers the field aliases the honeytoken service uses
// across token kinds.
type webhookPayload struct {
	Token       string `json:"token"`
	CanaryToken string `json:"canarytoken"`
	Memo        string `json:"memo"`
	SrcIP       string `json:"src_ip"`
	IP          string `json:"ip"`
	SourceIP    string `json:"source_ip"`
	UserAgent   string `json:"useragent"`
	UserAgent2  string `json:"user_agent"`
	Time        string `json:"time"`
}

func (p *webhookPayload) externalID() string {
	switch {
	case p.Token != "":
		return p.Token
	case p.CanaryToken != "":
		return p.CanaryToken
	}
	return p.Memo
}

func (p *webhookPayload) sourceIP() string {
	switch {
	case p.SrcIP != "":
		return p.SrcIP
	case p.IP != "":
		return p.IP
	}
	return p.SourceIP
}

func (p *webhookPayload) userAgent() string {
	if p.UserAgent != "" {
		return p.UserAgent
	}
	return p.UserAgent2
}

func (s *IngestService) Ingest(ctx context.Context, secret string, raw []byte) (IngestResult, error) {
	start := time.Now()
	defer func() {
		s.Metrics.ObserveDuration(time.Since(start).Seconds())
	}()
	s.Metrics.Count(metrics.OutcomeReceived)

	// 1. Authenticate. No side effects on failure.
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.Secret)) != 1 {
		s.Metrics.Count(metrics.OutcomeUnauthorized)
		return IngestResult{}, apperrors.NewUnauthorized("webhook secret mismatch")
	}

	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.Metrics.Count(metrics.OutcomeUnknownToken)
		return IngestResult{}, apperrors.NewUnknownToken("")
	}
	externalID := payload.externalID()
	if externalID == "" {
		s.Metrics.Count(metrics.OutcomeUnknownToken)
		log.WithField("payload", string(raw)).Warn("webhook without token identifier")
		return IngestResult{}, apperrors.NewUnknownToken("")
	}
	sourceIP := payload.sourceIP()

	// 2. Resolve. An unresolvable token is a stale or foreign callback,
	// logged and dropped without retry.
	rt, err := s.Registry.Resolve(externalID)
	if err != nil {
		var nf *apperrors.NotFoundError
		if errors.As(err, &nf) {
			s.Metrics.Count(metrics.OutcomeUnknownToken)
			log.WithField("token", externalID).Warn("webhook for unknown token")
			return IngestResult{}, apperrors.NewUnknownToken(externalID)
		}
		return IngestResult{}, err
	}

	// 3. Deduplicate. The fingerprint is claimed before enrichment, so
	// a concurrent redelivery blocks on the claim and is answered with
	// the winner's result instead of running the pipeline again.
	fp := dedup.Fingerprint(externalID, sourceIP, payload.Time, string(raw))
	if prior, dup := s.Dedup.Claim(fp); dup {
		s.Metrics.Count(metrics.OutcomeDuplicate)
		result := prior.(IngestResult)
		result.Duplicate = true
		return result, nil
	}

	// 4. Enrich, best-effort. Failure degrades to null geo fields.
	ev := &model.TriggerEvent{
		TokenID:     rt.TokenID,
		SourceIP:    sourceIP,
		UserAgent:   payload.userAgent(),
		RawPayload:  json.RawMessage(raw),
		TriggeredAt: time.Now().UTC(),
	}
	if loc, ok := s.Geo.Lookup(ctx, sourceIP); ok {
		ev.GeoCity = &loc.City
		ev.GeoCountry = &loc.Country
		ev.GeoCountryCode = &loc.CountryCode
		ev.GeoLatitude = &loc.Latitude
		ev.GeoLongitude = &loc.Longitude
	} else {
		s.Metrics.Count(metrics.OutcomeEnrichFailed)
	}

	// 5. Persist event and transition atomically. On failure the claim
	// is released so a redelivery can retry.
	transitioned, err := s.Drives.RecordTrigger(rt, ev)
	if err != nil {
		s.Dedup.Release(fp)
		s.Metrics.Count(metrics.OutcomeRejected)
		return IngestResult{}, err
	}
	s.Metrics.Count(metrics.OutcomePersisted)
	if transitioned {
		s.Metrics.Count(metrics.OutcomeTransitioned)
	}

	// 6. Notify: aggregates plus live-alert fanout. Alert delivery is
	// best-effort and never fails ingestion.
	if s.Aggregate != nil {
		s.Aggregate.ApplyTrigger(aggregate.TriggerFact{
			CampaignID:  rt.CampaignID,
			DriveID:     rt.DriveID,
			DriveCode:   rt.DriveCode,
			SourceIP:    sourceIP,
			TriggeredAt: ev.TriggeredAt,
		})
	}
	if s.Queue != nil {
		alert := queue.Alert{
			EventID:      ev.ID,
			CampaignID:   rt.CampaignID,
			DriveID:      rt.DriveID,
			DriveCode:    rt.DriveCode,
			TokenType:    string(rt.TokenType),
			SourceIP:     sourceIP,
			Location:     ev.LocationSummary(),
			Transitioned: transitioned,
			TriggeredAt:  ev.TriggeredAt,
		}
		if err := s.Queue.Publish(queue.TopicTriggerAlerts, alert); err != nil {
			log.WithError(err).Warn("alert publish failed")
		}
	}

	log.WithFields(log.Fields{
		"drive":        rt.DriveCode,
		"token_type":   rt.TokenType,
		"source_ip":    sourceIP,
		"location":     ev.LocationSummary(),
		"transitioned": transitioned,
	}).Info("trigger ingested")

	result := IngestResult{
		Status:       "received",
		EventID:      ev.ID,
		DriveCode:    rt.DriveCode,
		Transitioned: transitioned,
	}
	s.Dedup.Resolve(fp, result)
	return result, nil
}

var _ TriggerIngestor = (*IngestService)(nil)
