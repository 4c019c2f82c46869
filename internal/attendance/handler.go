package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hanapbuhay/backend/internal/jobs"
	"github.com/hanapbuhay/backend/internal/ledger"
	"github.com/hanapbuhay/backend/internal/middleware"
	"github.com/hanapbuhay/backend/internal/models"
)

// Reader serves attendance sheets outside transactions.
type Reader interface {
	ListDays(ctx context.Context, jobID uuid.UUID) ([]*models.DailyAttendance, error)
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

type confirmRequest struct {
	WorkerID uuid.UUID `json:"worker_id,omitempty"`
	Date     string    `json:"date"`
	Status   string    `json:"status"`
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	day, err := h.svc.Confirm(r.Context(), ident.AccountID, ConfirmInput{
		JobID:    jobID,
		WorkerID: req.WorkerID,
		Date:     date,
		Status:   req.Status,
	})
	if err != nil {
		h.writeErr(w, "confirm attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

type resolveDayRequest struct {
	WorkerID uuid.UUID `json:"worker_id"`
	Date     string    `json:"date"`
	Status   string    `json:"status"`
}

// ResolveDay is the admin ruling on a disputed attendance day.
func (h *Handler) ResolveDay(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	var req resolveDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	day, err := h.svc.ResolveDisputedDay(r.Context(), ident.AccountID, jobID, req.WorkerID, date, req.Status)
	if err != nil {
		h.writeErr(w, "resolve attendance day", err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (h *Handler) ListDays(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	list, err := h.reader.ListDays(r.Context(), jobID)
	if err != nil {
		h.writeErr(w, "list attendance", err)
		return
	}
	if list == nil {
		list = []*models.DailyAttendance{}
	}
	writeJSON(w, http.StatusOK, list)
}

type extensionRequest struct {
	AdditionalDays int    `json:"additional_days"`
	Reason         string `json:"reason"`
}

func (h *Handler) RequestExtension(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	var req extensionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	ext, err := h.svc.RequestExtension(r.Context(), ident.AccountID, jobID, req.AdditionalDays, req.Reason)
	if err != nil {
		h.writeErr(w, "request extension", err)
		return
	}
	writeJSON(w, http.StatusCreated, ext)
}

func (h *Handler) ApproveExtension(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "approve extension", func(ctx context.Context, actorID, id uuid.UUID) (any, error) {
		return h.svc.ApproveExtension(ctx, actorID, id)
	})
}

func (h *Handler) RejectExtension(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "reject extension", func(ctx context.Context, actorID, id uuid.UUID) (any, error) {
		return h.svc.RejectExtension(ctx, actorID, id)
	})
}

type rateChangeRequest struct {
	NewDailyRateCentavos int64 `json:"new_daily_rate_centavos"`
}

func (h *Handler) RequestRateChange(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	var req rateChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	rc, err := h.svc.RequestRateChange(r.Context(), ident.AccountID, jobID, req.NewDailyRateCentavos)
	if err != nil {
		h.writeErr(w, "request rate change", err)
		return
	}
	writeJSON(w, http.StatusCreated, rc)
}

func (h *Handler) ApproveRateChange(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "approve rate change", func(ctx context.Context, actorID, id uuid.UUID) (any, error) {
		return h.svc.ApproveRateChange(ctx, actorID, id)
	})
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, actorID, id uuid.UUID) (any, error)) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	out, err := fn(r.Context(), ident.AccountID, id)
	if err != nil {
		h.writeErr(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, jobs.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrWorkerRequired):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrBadStatus), errors.Is(err, ErrOutsideSchedule), errors.Is(err, ErrNotDaily):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrDayFinal), errors.Is(err, ErrBadMutation):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		http.Error(w, "insufficient funds", http.StatusPaymentRequired)
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
