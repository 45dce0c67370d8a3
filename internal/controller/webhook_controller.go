// internal/controller/webhook_controller.go
package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/dropsentry/campaign-backend/internal/apperrors"
	"github.com/dropsentry/campaign-backend/internal/service"
)

// WebhookController is the ingestion entry point for the honeytoken
// service's trigger callbacks.
type WebhookController struct {
	Ingestor service.TriggerIngestor
}

const webhookSecretHeader = "X-Webhook-Token"

// ReceiveTrigger handles POST /webhooks/trigger. Unknown tokens are
// acknowledged as ignored: they are noise, not incidents, and a 4xx
// would only make the upstream retry.
func (c *WebhookController) ReceiveTrigger(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	result, err := c.Ingestor.Ingest(r.Context(), r.Header.Get(webhookSecretHeader), raw)
	if err != nil {
		var unknown *apperrors.UnknownTokenError
		if errors.As(err, &unknown) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
