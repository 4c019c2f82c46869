package wallets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hanapbuhay/backend/internal/ledger"
	"github.com/hanapbuhay/backend/internal/middleware"
	"github.com/hanapbuhay/backend/internal/models"
)

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	wallet, err := h.svc.Balance(r.Context(), ident.AccountID)
	if err != nil {
		h.writeErr(w, "wallet balance", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

type moveRequest struct {
	AmountCentavos int64  `json:"amount_centavos"`
	Method         string `json:"method"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	row, err := h.svc.Deposit(r.Context(), ident.AccountID, req.AmountCentavos, req.Method)
	if err != nil {
		h.writeErr(w, "deposit", err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	row, err := h.svc.Withdraw(r.Context(), ident.AccountID, req.AmountCentavos, req.Method)
	if err != nil {
		h.writeErr(w, "withdraw", err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.svc.History(r.Context(), ident.AccountID, r.URL.Query().Get("kind"), limit)
	if err != nil {
		h.writeErr(w, "wallet history", err)
		return
	}
	if rows == nil {
		rows = []*models.Transaction{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type autoWithdrawRequest struct {
	Enabled bool   `json:"enabled"`
	Method  string `json:"method"`
}

func (h *Handler) SetAutoWithdraw(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	var req autoWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	wallet, err := h.svc.SetAutoWithdraw(r.Context(), ident.AccountID, req.Enabled, req.Method)
	if err != nil {
		h.writeErr(w, "auto-withdraw settings", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrBadAmount), errors.Is(err, ErrMethodRequired):
		http.Error(w, err.Error(), http.StatusBadRequest)
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
