package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/hanapbuhay/backend/internal/ledger"
	"github.com/hanapbuhay/backend/internal/middleware"
	"github.com/hanapbuhay/backend/internal/models"
)

// Reader is the pool-scoped read surface the handler serves listings from.
type Reader interface {
	JobByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListOpen(ctx context.Context, limit int) ([]*models.Job, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]*models.Job, error)
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

type slotRequest struct {
	SpecializationID uuid.UUID `json:"specialization_id"`
	SkillLevel       string    `json:"skill_level"`
	Headcount        int       `json:"headcount"`
	BudgetCentavos   int64     `json:"budget_centavos"`
}

type createJobRequest struct {
	Title                 string        `json:"title"`
	Description           string        `json:"description"`
	SpecializationID      uuid.UUID     `json:"specialization_id"`
	Location              string        `json:"location"`
	BudgetCentavos        int64         `json:"budget_centavos"`
	PaymentModel          string        `json:"payment_model"`
	DailyRateCentavos     int64         `json:"daily_rate_centavos"`
	DurationDays          int           `json:"duration_days"`
	MaterialsCostCentavos int64         `json:"materials_cost_centavos"`
	JobType               string        `json:"job_type"`
	InvitedWorkerID       *uuid.UUID    `json:"invited_worker_id,omitempty"`
	InvitedAgencyID       *uuid.UUID    `json:"invited_agency_id,omitempty"`
	IsTeamJob             bool          `json:"is_team_job"`
	BudgetAllocationType  string        `json:"budget_allocation_type"`
	TeamStartThreshold    int           `json:"team_start_threshold"`
	Slots                 []slotRequest `json:"slots"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	in := CreateInput{
		Title:                 req.Title,
		Description:           req.Description,
		SpecializationID:      req.SpecializationID,
		Location:              req.Location,
		BudgetCentavos:        req.BudgetCentavos,
		PaymentModel:          req.PaymentModel,
		DailyRateCentavos:     req.DailyRateCentavos,
		DurationDays:          req.DurationDays,
		MaterialsCostCentavos: req.MaterialsCostCentavos,
		JobType:               req.JobType,
		InvitedWorkerID:       req.InvitedWorkerID,
		InvitedAgencyID:       req.InvitedAgencyID,
		IsTeamJob:             req.IsTeamJob,
		BudgetAllocationType:  req.BudgetAllocationType,
		TeamStartThreshold:    req.TeamStartThreshold,
	}
	for _, s := range req.Slots {
		in.Slots = append(in.Slots, &models.JobSkillSlot{
			SpecializationID:        s.SpecializationID,
			SkillLevelRequired:      s.SkillLevel,
			WorkersNeeded:           s.Headcount,
			BudgetAllocatedCentavos: s.BudgetCentavos,
		})
	}
	j, err := h.svc.Create(r.Context(), ident.AccountID, in)
	if err != nil {
		h.writeErr(w, "create job", err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	j, err := h.reader.JobByID(r.Context(), id)
	if err != nil {
		h.writeErr(w, "get job", err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// List serves open listings, or the caller's own jobs with ?mine=1.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	var (
		list []*models.Job
		err  error
	)
	if r.URL.Query().Get("mine") != "" {
		ident, _ := middleware.IdentityFromCtx(r.Context())
		list, err = h.reader.ListByClient(r.Context(), ident.AccountID, limit)
	} else {
		list, err = h.reader.ListOpen(r.Context(), limit)
	}
	if err != nil {
		h.writeErr(w, "list jobs", err)
		return
	}
	if list == nil {
		list = []*models.Job{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "publish", func(ctx context.Context, actorID, jobID uuid.UUID) (*models.Job, error) {
		return h.svc.Publish(ctx, actorID, jobID)
	})
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start", func(ctx context.Context, actorID, jobID uuid.UUID) (*models.Job, error) {
		return h.svc.Start(ctx, actorID, jobID)
	})
}

func (h *Handler) MarkComplete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "mark complete", func(ctx context.Context, actorID, jobID uuid.UUID) (*models.Job, error) {
		return h.svc.MarkWorkerComplete(ctx, actorID, jobID)
	})
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve completion", func(ctx context.Context, actorID, jobID uuid.UUID) (*models.Job, error) {
		return h.svc.ApproveCompletion(ctx, actorID, jobID)
	})
}

func (h *Handler) AdvanceMaterials(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "advance materials", func(ctx context.Context, actorID, jobID uuid.UUID) (*models.Job, error) {
		return h.svc.AdvanceMaterials(ctx, actorID, jobID)
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	j, err := h.svc.Cancel(r.Context(), ident.AccountID, jobID, ident.IsAdmin)
	if err != nil {
		h.writeErr(w, "cancel job", err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

type confirmArrivalRequest struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
}

func (h *Handler) ConfirmArrival(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	var req confirmArrivalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.svc.ConfirmArrival(r.Context(), ident.AccountID, jobID, req.AssignmentID); err != nil {
		h.writeErr(w, "confirm arrival", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, actorID, jobID uuid.UUID) (*models.Job, error)) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	j, err := fn(r.Context(), ident.AccountID, jobID)
	if err != nil {
		h.writeErr(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "job not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrSelfHire):
		http.Error(w, "cannot hire yourself", http.StatusBadRequest)
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrNotReady):
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
