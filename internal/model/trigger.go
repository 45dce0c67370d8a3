// internal/model/trigger.go
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TriggerEvent records one access against a planted token. Append-only;
// never mutated or deleted. Geo fields are nil when enrichment failed.
type TriggerEvent struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	TokenID        uuid.UUID       `db:"token_id" json:"token_id"`
	SourceIP       string          `db:"source_ip" json:"source_ip,omitempty"`
	UserAgent      string          `db:"user_agent" json:"user_agent,omitempty"`
	GeoCity        *string         `db:"geo_city" json:"geo_city,omitempty"`
	GeoCountry     *string         `db:"geo_country" json:"geo_country,omitempty"`
	GeoCountryCode *string         `db:"geo_country_code" json:"geo_country_code,omitempty"`
	GeoLatitude    *float64        `db:"geo_latitude" json:"geo_latitude,omitempty"`
	GeoLongitude   *float64        `db:"geo_longitude" json:"geo_longitude,omitempty"`
	RawPayload     json.RawMessage `db:"raw_payload" json:"raw_payload,omitempty"`
	TriggeredAt    time.Time       `db:"triggered_at" json:"triggered_at"`
}

// LocationSummary renders "City, Country" for alert output.
func (t *TriggerEvent) LocationSummary() string {
	switch {
	case t.GeoCity != nil && t.GeoCountry != nil:
		return *t.GeoCity + ", " + *t.GeoCountry
	case t.GeoCountry != nil:
		return *t.GeoCountry
	case t.GeoCity != nil:
		return *t.GeoCity
	}
	return "Unknown location"
}
