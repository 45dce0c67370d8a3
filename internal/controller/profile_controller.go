// internal/controller/profile_controller.go
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/dropsentry/campaign-backend/internal/model"
	"github.com/dropsentry/campaign-backend/internal/repository"
)

type ProfileController struct {
	ProfileRepo repository.ProfileRepositoryInterface
}

func (c *ProfileController) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		ScenarioType string   `json:"scenario_type"`
		Theme        string   `json:"theme"`
		TokenTypes   []string `json:"token_types"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || len(body.TokenTypes) == 0 {
		http.Error(w, "name and token_types are required", http.StatusBadRequest)
		return
	}

	types := make([]model.TokenType, 0, len(body.TokenTypes))
	for _, raw := range body.TokenTypes {
		t := model.TokenType(raw)
		if !t.Valid() {
			http.Error(w, "unknown token type: "+raw, http.StatusBadRequest)
			return
		}
		types = append(types, t)
	}

	p := &model.Profile{
		ID:           uuid.New(),
		Name:         body.Name,
		Description:  body.Description,
		ScenarioType: body.ScenarioType,
		Theme:        body.Theme,
		TokenTypes:   types,
	}
	if err := c.ProfileRepo.Create(p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (c *ProfileController) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := c.ProfileRepo.ListProfiles()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}
