package profiles

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

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

type createProfileRequest struct {
	ProfileType string `json:"profile_type"`
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	Contact     string `json:"contact"`
	BirthDate   string `json:"birth_date,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	in := CreateProfileInput{
		ProfileType: req.ProfileType,
		GivenName:   req.GivenName,
		FamilyName:  req.FamilyName,
		Contact:     req.Contact,
	}
	if req.BirthDate != "" {
		bd, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			http.Error(w, "birth_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		in.BirthDate = &bd
	}
	p, err := h.svc.CreateProfile(r.Context(), ident.AccountID, in)
	if err != nil {
		h.writeErr(w, "create profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	list, err := h.svc.ProfilesOf(r.Context(), ident.AccountID)
	if err != nil {
		h.writeErr(w, "list profiles", err)
		return
	}
	if list == nil {
		list = []*models.Profile{}
	}
	writeJSON(w, http.StatusOK, list)
}

type workerDetailsRequest struct {
	Bio                string      `json:"bio"`
	HourlyRateCentavos int64       `json:"hourly_rate_centavos"`
	DailyRateCentavos  int64       `json:"daily_rate_centavos"`
	SpecializationIDs  []uuid.UUID `json:"specialization_ids"`
}

func (h *Handler) SetWorkerDetails(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	var req workerDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	d, err := h.svc.SetWorkerDetails(r.Context(), ident.AccountID, WorkerDetailsInput{
		Bio:                req.Bio,
		HourlyRateCentavos: req.HourlyRateCentavos,
		DailyRateCentavos:  req.DailyRateCentavos,
		SpecializationIDs:  req.SpecializationIDs,
	})
	if err != nil {
		h.writeErr(w, "worker details", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type agencyRequest struct {
	BusinessName string `json:"business_name"`
	BusinessInfo string `json:"business_info"`
}

func (h *Handler) SetAgencyDetails(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromCtx(r.Context())
	var req agencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	a, err := h.svc.SetAgencyDetails(r.Context(), ident.AccountID, req.BusinessName, req.BusinessInfo)
	if err != nil {
		h.writeErr(w, "agency details", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) ListSpecializations(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListSpecializations(r.Context())
	if err != nil {
		h.writeErr(w, "list specializations", err)
		return
	}
	if list == nil {
		list = []*models.Specialization{}
	}
	writeJSON(w, http.StatusOK, list)
}

type specializationRequest struct {
	Name            string `json:"name"`
	MinRateCentavos int64  `json:"min_rate_centavos"`
	SkillLevel      string `json:"skill_level"`
	Description     string `json:"description"`
}

// CreateSpecialization is admin-gated at the router.
func (h *Handler) CreateSpecialization(w http.ResponseWriter, r *http.Request) {
	var req specializationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	sp, err := h.svc.CreateSpecialization(r.Context(), SpecializationInput{
		Name:            req.Name,
		MinRateCentavos: req.MinRateCentavos,
		SkillLevel:      req.SkillLevel,
		Description:     req.Description,
	})
	if err != nil {
		h.writeErr(w, "create specialization", err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrDuplicateProfile):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrBadType), errors.Is(err, ErrNotWorker), errors.Is(err, ErrNotAgency),
		errors.Is(err, ErrRateBelowMinimum):
		http.Error(w, err.Error(), http.StatusBadRequest)
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
