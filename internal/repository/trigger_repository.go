package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dropsentry/campaign-backend/internal/model"
)

// TriggerRecord is a trigger event joined with its token/drive/campaign
// context, as used by alert listings and aggregate replay.
type TriggerRecord struct {
	Event        model.TriggerEvent
	TokenType    model.TokenType
	Filename     string
	DriveID      uuid.UUID
	DriveCode    string
	CampaignID   uuid.UUID
	CampaignName string
}

type TriggerRepositoryInterface interface {
	// AppendEvent persists the trigger event, bumps the owning token's
	// counters, and, when markTriggered is set, attempts the
	// deployed -> triggered transition for the drive. Everything commits
	// or rolls back together. The returned bool reports whether the
	// drive actually transitioned; the conditional UPDATE makes it true
	// at most once per drive even across processes.
	AppendEvent(ev *model.TriggerEvent, driveID uuid.UUID, markTriggered bool) (bool, error)

	ListRecent(since time.Time, campaignID *uuid.UUID, limit int) ([]*TriggerRecord, error)
	ListAll() ([]*TriggerRecord, error)
	CountSince(since time.Time) (int, error)
}

type TriggerRepository struct {
	DB *sql.DB
}

func (r *TriggerRepository) AppendEvent(ev *model.TriggerEvent, driveID uuid.UUID, markTriggered bool) (bool, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.TriggeredAt.IsZero() {
		ev.TriggeredAt = time.Now().UTC()
	}

	tx, err := r.DB.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT INTO triggers (id, token_id, source_ip, user_agent, geo_city, geo_country, geo_country_code, geo_latitude, geo_longitude, raw_payload, triggered_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ev.ID, ev.TokenID, ev.SourceIP, ev.UserAgent,
		ev.GeoCity, ev.GeoCountry, ev.GeoCountryCode, ev.GeoLatitude, ev.GeoLongitude,
		[]byte(ev.RawPayload), ev.TriggeredAt,
	)
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(`
        UPDATE tokens
        SET trigger_count = trigger_count + 1,
            first_triggered_at = COALESCE(first_triggered_at, $1),
            last_triggered_at = $1
        WHERE id = $2`,
		ev.TriggeredAt, ev.TokenID,
	)
	if err != nil {
		return false, err
	}

	transitioned := false
	if markTriggered {
		res, err := tx.Exec(
			`UPDATE drives SET status=$1, triggered_at=$2 WHERE id=$3 AND status=$4`,
			model.DriveTriggered, ev.TriggeredAt, driveID, model.DriveDeployed,
		)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		transitioned = n > 0
	}

	return transitioned, tx.Commit()
}

const triggerRecordQuery = `
        SELECT tr.id, tr.token_id, tr.source_ip, tr.user_agent,
               tr.geo_city, tr.geo_country, tr.geo_country_code, tr.geo_latitude, tr.geo_longitude,
               tr.raw_payload, tr.triggered_at,
               t.token_type, t.filename, d.id, d.code, c.id, c.name
        FROM triggers tr
        JOIN tokens t ON t.id = tr.token_id
        JOIN drives d ON d.id = t.drive_id
        JOIN campaigns c ON c.id = d.campaign_id`

func (r *TriggerRepository) scanRecords(rows *sql.Rows) ([]*TriggerRecord, error) {
	defer rows.Close()
	out := []*TriggerRecord{}
	for rows.Next() {
		rec := &TriggerRecord{}
		var raw []byte
		if err := rows.Scan(
			&rec.Event.ID, &rec.Event.TokenID, &rec.Event.SourceIP, &rec.Event.UserAgent,
			&rec.Event.GeoCity, &rec.Event.GeoCountry, &rec.Event.GeoCountryCode,
			&rec.Event.GeoLatitude, &rec.Event.GeoLongitude,
			&raw, &rec.Event.TriggeredAt,
			&rec.TokenType, &rec.Filename, &rec.DriveID, &rec.DriveCode, &rec.CampaignID, &rec.CampaignName,
		); err != nil {
			return nil, err
		}
		rec.Event.RawPayload = raw
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *TriggerRepository) ListRecent(since time.Time, campaignID *uuid.UUID, limit int) ([]*TriggerRecord, error) {
	query := triggerRecordQuery + ` WHERE tr.triggered_at >= $1`
	args := []interface{}{since}
	if campaignID != nil {
		query += ` AND c.id = $2`
		args = append(args, *campaignID)
	}
	query += ` ORDER BY tr.triggered_at DESC`
	if limit > 0 {
		args = append(args, limit)
		if campaignID != nil {
			query += ` LIMIT $3`
		} else {
			query += ` LIMIT $2`
		}
	}

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return r.scanRecords(rows)
}

// ListAll returns the full trigger log in append order. Repair path for
// aggregate replay.
func (r *TriggerRepository) ListAll() ([]*TriggerRecord, error) {
	rows, err := r.DB.Query(triggerRecordQuery + ` ORDER BY tr.triggered_at ASC`)
	if err != nil {
		return nil, err
	}
	return r.scanRecords(rows)
}

func (r *TriggerRepository) CountSince(since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM triggers WHERE triggered_at >= $1`, since).Scan(&n)
	return n, err
}

var _ TriggerRepositoryInterface = (*TriggerRepository)(nil)
