// internal/controller/drive_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dropsentry/campaign-backend/internal/repository"
	"github.com/dropsentry/campaign-backend/internal/service"
)

type DriveController struct {
	DriveService *service.DriveService
	DriveRepo    repository.DriveRepositoryInterface
	TokenRepo    repository.TokenRepositoryInterface
}

func (c *DriveController) CreateDrive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CampaignID uuid.UUID  `json:"campaign_id"`
		ProfileID  *uuid.UUID `json:"profile_id"`
		Label      string     `json:"label"`
		Notes      string     `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.CampaignID == uuid.Nil {
		http.Error(w, "campaign_id is required", http.StatusBadRequest)
		return
	}

	drive, err := c.DriveService.CreateDrive(body.CampaignID, body.ProfileID, body.Label, body.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, drive)
}

func (c *DriveController) ListDrives(w http.ResponseWriter, r *http.Request) {
	var campaignID *uuid.UUID
	if raw := r.URL.Query().Get("campaign_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid campaign_id", http.StatusBadRequest)
			return
		}
		campaignID = &id
	}
	status := r.URL.Query().Get("status")

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	drives, total, err := c.DriveRepo.ListDrives(campaignID, status, (page-1)*pageSize, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": drives,
		"pagination": map[string]int{
			"page":        page,
			"page_size":   pageSize,
			"total_count": total,
		},
	})
}

func (c *DriveController) GetDrive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid drive id", http.StatusBadRequest)
		return
	}

	drive, err := c.DriveRepo.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drive)
}

func (c *DriveController) GetDriveByCode(w http.ResponseWriter, r *http.Request) {
	drive, err := c.DriveRepo.GetByCode(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drive)
}

func (c *DriveController) PrepareDrive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid drive id", http.StatusBadRequest)
		return
	}

	drive, err := c.DriveService.Prepare(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drive)
}

func (c *DriveController) DeployDrive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid drive id", http.StatusBadRequest)
		return
	}

	var input service.DeploymentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	dep, err := c.DriveService.RecordDeployment(id, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dep)
}

func (c *DriveController) RecoverDrive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid drive id", http.StatusBadRequest)
		return
	}

	drive, err := c.DriveService.Recover(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drive)
}

func (c *DriveController) GetDriveTokens(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid drive id", http.StatusBadRequest)
		return
	}

	if _, err := c.DriveRepo.GetByID(id); err != nil {
		writeError(w, err)
		return
	}
	tokens, err := c.TokenRepo.GetByDrive(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}
