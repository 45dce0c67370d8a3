// internal/controller/alert_controller.go
package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dropsentry/campaign-backend/internal/repository"
)

type AlertController struct {
	TriggerRepo repository.TriggerRepositoryInterface
	DriveRepo   repository.DriveRepositoryInterface
}

type triggerDetail struct {
	ID           uuid.UUID `json:"id"`
	TokenType    string    `json:"token_type"`
	Filename     string    `json:"filename,omitempty"`
	DriveCode    string    `json:"drive_code"`
	CampaignName string    `json:"campaign_name"`
	SourceIP     string    `json:"source_ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	GeoCity      *string   `json:"geo_city,omitempty"`
	GeoCountry   *string   `json:"geo_country,omitempty"`
	GeoLatitude  *float64  `json:"geo_latitude,omitempty"`
	GeoLongitude *float64  `json:"geo_longitude,omitempty"`
	TriggeredAt  time.Time `json:"triggered_at"`
}

func toTriggerDetail(rec *repository.TriggerRecord) triggerDetail {
	return triggerDetail{
		ID:           rec.Event.ID,
		TokenType:    string(rec.TokenType),
		Filename:     rec.Filename,
		DriveCode:    rec.DriveCode,
		CampaignName: rec.CampaignName,
		SourceIP:     rec.Event.SourceIP,
		UserAgent:    rec.Event.UserAgent,
		GeoCity:      rec.Event.GeoCity,
		GeoCountry:   rec.Event.GeoCountry,
		GeoLatitude:  rec.Event.GeoLatitude,
		GeoLongitude: rec.Event.GeoLongitude,
		TriggeredAt:  rec.Event.TriggeredAt,
	}
}

// RecentAlerts handles GET /alerts/recent?hours=N.
func (c *AlertController) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
	if hours < 1 || hours > 168 {
		hours = 24
	}

	var campaignID *uuid.UUID
	if raw := r.URL.Query().Get("campaign_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid campaign_id", http.StatusBadRequest)
			return
		}
		campaignID = &id
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	records, err := c.TriggerRepo.ListRecent(since, campaignID, 100)
	if err != nil {
		writeError(w, err)
		return
	}

	alerts := make([]triggerDetail, 0, len(records))
	for _, rec := range records {
		alerts = append(alerts, toTriggerDetail(rec))
	}
	writeJSON(w, http.StatusOK, alerts)
}

type mapPoint struct {
	Type      string    `json:"type"` // deployment | trigger
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Label     string    `json:"label"`
	DriveCode string    `json:"drive_code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertMap handles GET /alerts/map: deployment and geolocated trigger
// points for the map view.
func (c *AlertController) AlertMap(w http.ResponseWriter, r *http.Request) {
	var campaignID *uuid.UUID
	if raw := r.URL.Query().Get("campaign_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid campaign_id", http.StatusBadRequest)
			return
		}
		campaignID = &id
	}

	points := []mapPoint{}

	deployments, err := c.DriveRepo.ListDeployments(campaignID)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, dep := range deployments {
		points = append(points, mapPoint{
			Type:      "deployment",
			Latitude:  dep.Latitude,
			Longitude: dep.Longitude,
			Label:     dep.LocationName,
			DriveCode: dep.DriveCode,
			Timestamp: dep.DeployedAt,
		})
	}

	since := time.Now().Add(-30 * 24 * time.Hour)
	records, err := c.TriggerRepo.ListRecent(since, campaignID, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, rec := range records {
		if rec.Event.GeoLatitude == nil || rec.Event.GeoLongitude == nil {
			continue
		}
		points = append(points, mapPoint{
			Type:      "trigger",
			Latitude:  *rec.Event.GeoLatitude,
			Longitude: *rec.Event.GeoLongitude,
			Label:     rec.Event.LocationSummary(),
			DriveCode: rec.DriveCode,
			Timestamp: rec.Event.TriggeredAt,
		})
	}

	writeJSON(w, http.StatusOK, points)
}
