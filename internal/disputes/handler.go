package disputes

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hanapbuhay/backend/internal/jobs"
	"github.com/hanapbuhay/backend/internal/middleware"
	"github.com/hanapbuhay/backend/internal/models"
)

// Reader serves dispute listings outside transactions.
type Reader interface {
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.JobDispute, error)
	ListOpen(ctx context.Context) ([]*models.JobDispute, error)
}

type Handler struct {
	svc    *Service
	reader Reader
	log    *slog.Logger
}

func NewHandler(svc *Service, reader Reader, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, reader: reader, log: log}
}

type openRequest struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		http.Error(w, "reason required", http.StatusBadRequest)
		return
	}
	d, err := h.svc.Open(r.Context(), ident.AccountID, jobID, req.Reason, req.Description)
	if err != nil {
		h.writeErr(w, "open dispute", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	disputeID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid dispute id", http.StatusBadRequest)
		return
	}
	d, err := h.svc.Review(r.Context(), ident.AccountID, disputeID)
	if err != nil {
		h.writeErr(w, "review dispute", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type resolveRequest struct {
	Resolution     string `json:"resolution"`
	RefundCentavos int64  `json:"refund_centavos"`
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	disputeID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid dispute id", http.StatusBadRequest)
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	d, err := h.svc.Resolve(r.Context(), ident.AccountID, disputeID, ResolveInput{
		Resolution:     req.Resolution,
		RefundCentavos: req.RefundCentavos,
	})
	if err != nil {
		h.writeErr(w, "resolve dispute", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) ListByJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	list, err := h.reader.ListByJob(r.Context(), jobID)
	if err != nil {
		h.writeErr(w, "list disputes", err)
		return
	}
	if list == nil {
		list = []*models.JobDispute{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ListOpen is the admin review queue.
func (h *Handler) ListOpen(w http.ResponseWriter, r *http.Request) {
	list, err := h.reader.ListOpen(r.Context())
	if err != nil {
		h.writeErr(w, "list disputes", err)
		return
	}
	if list == nil {
		list = []*models.JobDispute{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	var cooldown *CooldownError
	switch {
	case errors.As(err, &cooldown):
		http.Error(w, cooldown.Error(), http.StatusTooManyRequests)
	case errors.Is(err, ErrNotFound), errors.Is(err, jobs.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrBadRefund), errors.Is(err, ErrBadResolution):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrActiveDispute), errors.Is(err, ErrReleased):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error(op+" failed", "error", err)
		http.Error(w, op+" failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
