package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/models"
	"github.com/madeeharehan/pakistan-air-quality-project/internal/api/response"
)

// Retrainer accepts retrain requests for asynchronous processing.
type Retrainer interface {
	// RequestRetrain enqueues a retrain job for the given cities.
	// An empty list means every city with data. Returns a job ID.
	RequestRetrain(ctx context.Context, cities []string) (string, error)
}

// AdminHandler handles the admin endpoints.
type AdminHandler struct {
	retrainer Retrainer
	validate  *validator.Validate
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(retrainer Retrainer) *AdminHandler {
	return &AdminHandler{
		retrainer: retrainer,
		validate:  validator.New(),
	}
}

// Retrain handles POST /api/admin/retrain. The request body is optional;
// an empty body retrains every city.
func (h *AdminHandler) Retrain(w http.ResponseWriter, r *http.Request) {
	var req models.RetrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, r, "invalid retrain request", []models.FieldError{
			{Field: "cities", Message: "city names must be 1-100 characters", Code: "invalid"},
		})
		return
	}

	jobID, err := h.retrainer.RequestRetrain(r.Context(), req.Cities)
	if err != nil {
		response.InternalError(w, r, "failed to enqueue retrain job")
		return
	}

	response.Accepted(w, r, "", models.RetrainResponse{
		JobID:       jobID,
		Cities:      req.Cities,
		RequestedAt: models.Timestamp(time.Now()),
	})
}
