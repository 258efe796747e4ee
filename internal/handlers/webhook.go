package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/ingest"
	"github.com/PratikDhanave/showmojo-webhook-service/internal/logging"
	"github.com/PratikDhanave/showmojo-webhook-service/internal/models"
)

// DefaultMaxBodyBytes caps webhook bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// Ingester applies one raw webhook body.
type Ingester interface {
	Ingest(ctx context.Context, raw []byte) (ingest.ApplyResult, error)
}

// RegisterWebhookRoutes registers the ingestion endpoint.
//
// POST /webhook
// - Bearer token is enforced by middleware on the group
// - Durable: returns success only after the unit of work commits
// - Idempotent: a replayed event id answers 200 with status "duplicate"
func RegisterWebhookRoutes(r gin.IRoutes, ing Ingester, maxBodyBytes int64) {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	r.POST("/webhook", func(c *gin.Context) {
		raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
			return
		}

		res, err := ing.Ingest(c.Request.Context(), raw)
		if err != nil {
			status, msg := ingestError(err)
			if status >= http.StatusInternalServerError {
				logging.Ctx(c.Request.Context()).Error().Err(err).Int("status", status).Msg("webhook processing failed")
			}
			c.JSON(status, gin.H{"error": msg})
			return
		}

		resp := models.WebhookResponse{
			Status:        "success",
			Message:       "Event processed successfully",
			EventID:       res.EventID,
			EventStatus:   string(res.EventStatus),
			ShowingStatus: string(res.ShowingStatus),
			ShowingUID:    res.ShowingUID,
		}
		if res.EventStatus == ingest.EventDuplicate {
			resp.Status = "duplicate"
			resp.Message = duplicateMessage(res.ShowingStatus)
		}
		c.JSON(http.StatusOK, resp)
	})
}

// duplicateMessage says whether a replayed event still changed its showing.
func duplicateMessage(st ingest.ShowingStatus) string {
	switch st {
	case ingest.ShowingCreated:
		return "Event already processed; showing created"
	case ingest.ShowingUpdated:
		return "Event already processed; showing updated"
	default:
		return "Event already processed"
	}
}

// ingestError maps the ingest error taxonomy onto HTTP. Conflicts and store
// outages are retryable by the sender; validation failures are not.
func ingestError(err error) (int, string) {
	var verr *ingest.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case ingest.IsConflict(err):
		return http.StatusConflict, "concurrent update, retry the delivery"
	case errors.Is(err, ingest.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
