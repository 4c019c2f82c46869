package applications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hanapbuhay/backend/internal/jobs"
	"github.com/hanapbuhay/backend/internal/ledger"
	"github.com/hanapbuhay/backend/internal/middleware"
	"github.com/hanapbuhay/backend/internal/models"
)

// Reader serves application listings outside transactions.
type Reader interface {
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.JobApplication, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.JobApplication, error)
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

type applyRequest struct {
	SkillSlotID            *uuid.UUID `json:"skill_slot_id,omitempty"`
	AgencyID               *uuid.UUID `json:"agency_id,omitempty"`
	ProposalMessage        string     `json:"proposal_message"`
	ProposedBudgetCentavos int64      `json:"proposed_budget_centavos"`
	BudgetOption           string     `json:"budget_option"`
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	app, err := h.svc.Apply(r.Context(), ident.AccountID, jobID, ApplyInput{
		SkillSlotID:            req.SkillSlotID,
		AgencyID:               req.AgencyID,
		ProposalMessage:        req.ProposalMessage,
		ProposedBudgetCentavos: req.ProposedBudgetCentavos,
		BudgetOption:           req.BudgetOption,
	})
	if err != nil {
		h.writeErr(w, "apply", err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

type inviteRequest struct {
	InviteeID uuid.UUID `json:"invitee_id"`
	Agency    bool      `json:"agency"`
}

func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	app, err := h.svc.Invite(r.Context(), ident.AccountID, jobID, req.InviteeID, req.Agency)
	if err != nil {
		h.writeErr(w, "invite", err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "accept", h.svc.Accept)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "reject", h.svc.Reject)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "withdraw", h.svc.Withdraw)
}

// ListByJob serves a job's applications to its client.
func (h *Handler) ListByJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	list, err := h.reader.ListByJob(r.Context(), jobID)
	if err != nil {
		h.writeErr(w, "list applications", err)
		return
	}
	if list == nil {
		list = []*models.JobApplication{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ListMine serves the caller's own applications.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	list, err := h.reader.ListByWorker(r.Context(), ident.AccountID)
	if err != nil {
		h.writeErr(w, "list applications", err)
		return
	}
	if list == nil {
		list = []*models.JobApplication{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, actorID, applicationID uuid.UUID) (*models.JobApplication, error)) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	appID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid application id", http.StatusBadRequest)
		return
	}
	app, err := fn(r.Context(), ident.AccountID, appID)
	if err != nil {
		h.writeErr(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, jobs.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrWrongActor), errors.Is(err, jobs.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, jobs.ErrSelfHire):
		http.Error(w, "cannot hire yourself", http.StatusBadRequest)
	case errors.Is(err, ErrSlotRequired):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrNotOpen), errors.Is(err, jobs.ErrInvalidState):
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
