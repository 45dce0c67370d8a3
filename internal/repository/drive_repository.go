package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropsentry/campaign-backend/internal/apperrors"
	"github.com/dropsentry/campaign-backend/internal/model"
)

type DriveRepositoryInterface interface {
	Create(d *model.Drive) error
	GetByID(id uuid.UUID) (*model.Drive, error)
	GetByCode(code string) (*model.Drive, error)
	ListDrives(campaignID *uuid.UUID, status string, offset, limit int) ([]*model.Drive, int, error)
	ListAll() ([]*model.Drive, error)

	// Conditional status updates. Each returns true when the row moved,
	// false when the drive was not in the expected source state.
	MarkPrepared(id uuid.UUID, at time.Time) (bool, error)
	MarkRecovered(id uuid.UUID, at time.Time) (bool, error)

	AttachDeployment(dep *model.Deployment) (bool, error)
	GetDeployment(driveID uuid.UUID) (*model.Deployment, error)
	ListDeployments(campaignID *uuid.UUID) ([]*DeploymentRecord, error)
}

// DeploymentRecord is a deployment joined with its drive's code, one
// query for the map view.
type DeploymentRecord struct {
	model.Deployment
	DriveCode string
}

type DriveRepository struct {
	DB *sql.DB
}

const driveColumns = `id, campaign_id, profile_id, code, label, notes, status, created_at, prepared_at, deployed_at, triggered_at, recovered_at`

func scanDrive(row interface{ Scan(...interface{}) error }) (*model.Drive, error) {
	d := &model.Drive{}
	err := row.Scan(
		&d.ID, &d.CampaignID, &d.ProfileID, &d.Code, &d.Label, &d.Notes, &d.Status,
		&d.CreatedAt, &d.PreparedAt, &d.DeployedAt, &d.TriggeredAt, &d.RecoveredAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DriveRepository) Create(d *model.Drive) error {
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
	query := `
        INSERT INTO drives (id, campaign_id, profile_id, code, label, notes, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := r.DB.Exec(query, d.ID, d.CampaignID, d.ProfileID, d.Code, d.Label, d.Notes, d.Status, d.CreatedAt)
	return err
}

func (r *DriveRepository) GetByID(id uuid.UUID) (*model.Drive, error) {
	d, err := scanDrive(r.DB.QueryRow(`SELECT `+driveColumns+` FROM drives WHERE id=$1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFound("drive", id.String())
		}
		return nil, err
	}
	return d, nil
}

func (r *DriveRepository) GetByCode(code string) (*model.Drive, error) {
	d, err := scanDrive(r.DB.QueryRow(`SELECT `+driveColumns+` FROM drives WHERE code=$1`, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFound("drive", code)
		}
		return nil, err
	}
	return d, nil
}

func (r *DriveRepository) ListDrives(campaignID *uuid.UUID, status string, offset, limit int) ([]*model.Drive, int, error) {
	drives := []*model.Drive{}
	query := `SELECT ` + driveColumns + ` FROM drives WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM drives WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if campaignID != nil {
		cond := fmt.Sprintf(" AND campaign_id=$%d", argPos)
		query += cond
		countQuery += cond
		args = append(args, *campaignID)
		argPos++
	}
	if status != "" {
		cond := fmt.Sprintf(" AND status=$%d", argPos)
		query += cond
		countQuery += cond
		args = append(args, status)
		argPos++
	}

	var total int
	if err := r.DB.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDrive(rows)
		if err != nil {
			return nil, 0, err
		}
		drives = append(drives, d)
	}
	return drives, total, rows.Err()
}

func (r *DriveRepository) ListAll() ([]*model.Drive, error) {
	rows, err := r.DB.Query(`SELECT ` + driveColumns + ` FROM drives`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drives := []*model.Drive{}
	for rows.Next() {
		d, err := scanDrive(rows)
		if err != nil {
			return nil, err
		}
		drives = append(drives, d)
	}
	return drives, rows.Err()
}

// MarkPrepared moves created -> prepared. The WHERE clause is the guard:
// zero rows affected means the drive was not in created.
func (r *DriveRepository) MarkPrepared(id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.DB.Exec(
		`UPDATE drives SET status=$1, prepared_at=$2 WHERE id=$3 AND status=$4`,
		model.DrivePrepared, at, id, model.DriveCreated,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkRecovered is legal from any non-recovered state.
func (r *DriveRepository) MarkRecovered(id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.DB.Exec(
		`UPDATE drives SET status=$1, recovered_at=$2 WHERE id=$3 AND status<>$1`,
		model.DriveRecovered, at, id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// AttachDeployment inserts the deployment record and moves the drive
// prepared -> deployed in one transaction. Returns false when the drive
// was not in prepared.
func (r *DriveRepository) AttachDeployment(dep *model.Deployment) (bool, error) {
	if dep.ID == uuid.Nil {
		dep.ID = uuid.New()
	}
	if dep.DeployedAt.IsZero() {
		dep.DeployedAt = time.Now().UTC()
	}

	tx, err := r.DB.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE drives SET status=$1, deployed_at=$2 WHERE id=$3 AND status=$4`,
		model.DriveDeployed, dep.DeployedAt, dep.DriveID, model.DrivePrepared,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.Exec(`
        INSERT INTO deployments (id, drive_id, latitude, longitude, location_name, location_description, deployed_by, deployed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		dep.ID, dep.DriveID, dep.Latitude, dep.Longitude,
		dep.LocationName, dep.LocationDescription, dep.DeployedBy, dep.DeployedAt,
	)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

func (r *DriveRepository) GetDeployment(driveID uuid.UUID) (*model.Deployment, error) {
	var dep model.Deployment
	err := r.DB.QueryRow(`
        SELECT id, drive_id, latitude, longitude, location_name, location_description, deployed_by, deployed_at
        FROM deployments WHERE drive_id=$1`, driveID).Scan(
		&dep.ID, &dep.DriveID, &dep.Latitude, &dep.Longitude,
		&dep.LocationName, &dep.LocationDescription, &dep.DeployedBy, &dep.DeployedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFound("deployment", driveID.String())
		}
		return nil, err
	}
	return &dep, nil
}

func (r *DriveRepository) ListDeployments(campaignID *uuid.UUID) ([]*DeploymentRecord, error) {
	query := `
        SELECT d.id, d.drive_id, d.latitude, d.longitude, d.location_name, d.location_description, d.deployed_by, d.deployed_at, dr.code
        FROM deployments d
        JOIN drives dr ON dr.id = d.drive_id`
	args := []interface{}{}
	if campaignID != nil {
		query += ` WHERE dr.campaign_id=$1`
		args = append(args, *campaignID)
	}

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deps := []*DeploymentRecord{}
	for rows.Next() {
		rec := &DeploymentRecord{}
		if err := rows.Scan(&rec.ID, &rec.DriveID, &rec.Latitude, &rec.Longitude,
			&rec.LocationName, &rec.LocationDescription, &rec.DeployedBy, &rec.DeployedAt, &rec.DriveCode); err != nil {
			return nil, err
		}
		deps = append(deps, rec)
	}
	return deps, rows.Err()
}

var _ DriveRepositoryInterface = (*DriveRepository)(nil)
