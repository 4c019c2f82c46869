package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hanapbuhay/backend/internal/models"
)

var (
	ErrNotFound         = errors.New("profile not found")
	ErrDuplicateProfile = errors.New("account already has a profile of this type")
	ErrBadType          = errors.New("unknown profile type")
	ErrNotWorker        = errors.New("profile is not a worker profile")
	ErrNotAgency        = errors.New("profile is not an agency profile")
	ErrRateBelowMinimum = errors.New("rate below the specialization minimum")
)

// Store persists profiles and the specialization catalog.
type Store interface {
	InsertProfile(ctx context.Context, p *models.Profile) error
	ProfileByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	ProfileByAccountType(ctx context.Context, accountID uuid.UUID, profileType string) (*models.Profile, error)
	ProfilesByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Profile, error)
	UpsertWorkerDetails(ctx context.Context, d *models.WorkerProfile) error
	UpsertAgency(ctx context.Context, a *models.Agency) error
	Specializations(ctx context.Context) ([]*models.Specialization, error)
	SpecializationByID(ctx context.Context, id uuid.UUID) (*models.Specialization, error)
	InsertSpecialization(ctx context.Context, sp *models.Specialization) error
}

type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log}
}

type CreateProfileInput struct {
	ProfileType string
	GivenName   string
	FamilyName  string
	Contact     string
	BirthDate   *time.Time
}

var validTypes = map[string]bool{
	models.ProfileTypeClient: true,
	models.ProfileTypeWorker: true,
	models.ProfileTypeAgency: true,
}

// CreateProfile adds a profile to the account. An account holds at most one
// profile per type; the same person may be a client on one job and a worker
// on another.
func (s *Service) CreateProfile(ctx context.Context, accountID uuid.UUID, in CreateProfileInput) (*models.Profile, error) {
	ptype := strings.ToUpper(strings.TrimSpace(in.ProfileType))
	if !validTypes[ptype] {
		return nil, fmt.Errorf("%w: %s", ErrBadType, in.ProfileType)
	}
	existing, err := s.store.ProfileByAccountType(ctx, accountID, ptype)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateProfile
	}
	p := &models.Profile{
		ID:          uuid.New(),
		AccountID:   accountID,
		ProfileType: ptype,
		GivenName:   in.GivenName,
		FamilyName:  in.FamilyName,
		Contact:     in.Contact,
		BirthDate:   in.BirthDate,
	}
	if err := s.store.InsertProfile(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("profile created", "account_id", accountID, "profile_type", ptype)
	return p, nil
}

func (s *Service) ProfilesOf(ctx context.Context, accountID uuid.UUID) ([]*models.Profile, error) {
	return s.store.ProfilesByAccount(ctx, accountID)
}

type WorkerDetailsInput struct {
	Bio                string
	HourlyRateCentavos int64
	DailyRateCentavos  int64
	SpecializationIDs  []uuid.UUID
}

// SetWorkerDetails fills in the worker extension: bio, rates and skills. The
// daily rate must clear the minimum of every chosen specialization.
func (s *Service) SetWorkerDetails(ctx context.Context, accountID uuid.UUID, in WorkerDetailsInput) (*models.WorkerProfile, error) {
	p, err := s.store.ProfileByAccountType(ctx, accountID, models.ProfileTypeWorker)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotWorker
	}
	for _, id := range in.SpecializationIDs {
		sp, err := s.store.SpecializationByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if in.DailyRateCentavos < sp.MinRateCentavos {
			return nil, fmt.Errorf("%w: %s requires at least %d", ErrRateBelowMinimum, sp.Name, sp.MinRateCentavos)
		}
	}
	d := &models.WorkerProfile{
		ProfileID:          p.ID,
		Bio:                in.Bio,
		HourlyRateCentavos: in.HourlyRateCentavos,
		DailyRateCentavos:  in.DailyRateCentavos,
		SpecializationIDs:  in.SpecializationIDs,
	}
	if err := s.store.UpsertWorkerDetails(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SetAgencyDetails fills in the business extension of an AGENCY profile.
func (s *Service) SetAgencyDetails(ctx context.Context, accountID uuid.UUID, businessName, businessInfo string) (*models.Agency, error) {
	p, err := s.store.ProfileByAccountType(ctx, accountID, models.ProfileTypeAgency)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotAgency
	}
	a := &models.Agency{ProfileID: p.ID, BusinessName: businessName, BusinessInfo: businessInfo}
	if err := s.store.UpsertAgency(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListSpecializations(ctx context.Context) ([]*models.Specialization, error) {
	return s.store.Specializations(ctx)
}

type SpecializationInput struct {
	Name            string
	MinRateCentavos int64
	SkillLevel      string
	Description     string
}

var validLevels = map[string]bool{
	models.SkillLevelEntry:        true,
	models.SkillLevelIntermediate: true,
	models.SkillLevelExpert:       true,
}

// CreateSpecialization adds a catalog entry. Admin-gated at the router.
func (s *Service) CreateSpecialization(ctx context.Context, in SpecializationInput) (*models.Specialization, error) {
	if in.Name == "" {
		return nil, errors.New("name required")
	}
	level := strings.ToUpper(strings.TrimSpace(in.SkillLevel))
	if !validLevels[level] {
		return nil, fmt.Errorf("unknown skill level %q", in.SkillLevel)
	}
	if in.MinRateCentavos < 0 {
		return nil, errors.New("minimum rate cannot be negative")
	}
	sp := &models.Specialization{
		ID:              uuid.New(),
		Name:            in.Name,
		MinRateCentavos: in.MinRateCentavos,
		SkillLevel:      level,
		Description:     in.Description,
	}
	if err := s.store.InsertSpecialization(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}
