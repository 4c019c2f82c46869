package profiles_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hanapbuhay/backend/internal/models"
	"github.com/hanapbuhay/backend/internal/profiles"
)

type memStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*models.Profile
	workers map[uuid.UUID]*models.WorkerProfile
	agencies map[uuid.UUID]*models.Agency
	specs   map[uuid.UUID]*models.Specialization
}

func newMemStore() *memStore {
	return &memStore{
		byID:     make(map[uuid.UUID]*models.Profile),
		workers:  make(map[uuid.UUID]*models.WorkerProfile),
		agencies: make(map[uuid.UUID]*models.Agency),
		specs:    make(map[uuid.UUID]*models.Specialization),
	}
}

func (s *memStore) InsertProfile(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.byID[p.ID] = &cp
	return nil
}

func (s *memStore) ProfileByID(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, profiles.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) ProfileByAccountType(_ context.Context, accountID uuid.UUID, ptype string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.AccountID == accountID && p.ProfileType == ptype {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ProfilesByAccount(_ context.Context, accountID uuid.UUID) ([]*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Profile
	for _, p := range s.byID {
		if p.AccountID == accountID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) UpsertWorkerDetails(_ context.Context, d *models.WorkerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.workers[d.ProfileID] = &cp
	return nil
}

func (s *memStore) UpsertAgency(_ context.Context, a *models.Agency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.agencies[a.ProfileID] = &cp
	return nil
}

func (s *memStore) Specializations(_ context.Context) ([]*models.Specialization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Specialization
	for _, sp := range s.specs {
		cp := *sp
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) SpecializationByID(_ context.Context, id uuid.UUID) (*models.Specialization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.specs[id]
	if !ok {
		return nil, profiles.ErrNotFound
	}
	cp := *sp
	return &cp, nil
}

func (s *memStore) InsertSpecialization(_ context.Context, sp *models.Specialization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sp
	s.specs[sp.ID] = &cp
	return nil
}

func TestCreateProfileOnePerType(t *testing.T) {
	store := newMemStore()
	svc := profiles.NewService(store, nil)
	ctx := context.Background()
	accountID := uuid.New()

	if _, err := svc.CreateProfile(ctx, accountID, profiles.CreateProfileInput{ProfileType: "PLUMBER"}); !errors.Is(err, profiles.ErrBadType) {
		t.Fatalf("bad type: %v", err)
	}

	p, err := svc.CreateProfile(ctx, accountID, profiles.CreateProfileInput{
		ProfileType: "worker", GivenName: "Juan", FamilyName: "Dela Cruz", Contact: "+63 912 000 0000",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ProfileType != models.ProfileTypeWorker {
		t.Fatalf("type = %s", p.ProfileType)
	}

	if _, err := svc.CreateProfile(ctx, accountID, profiles.CreateProfileInput{ProfileType: "WORKER"}); !errors.Is(err, profiles.ErrDuplicateProfile) {
		t.Fatalf("duplicate type: %v", err)
	}

	// A second type on the same account is fine.
	if _, err := svc.CreateProfile(ctx, accountID, profiles.CreateProfileInput{ProfileType: "CLIENT"}); err != nil {
		t.Fatalf("second type: %v", err)
	}
	list, err := svc.ProfilesOf(ctx, accountID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("profiles = %d", len(list))
	}
}

func TestWorkerDetailsEnforceMinimumRate(t *testing.T) {
	store := newMemStore()
	svc := profiles.NewService(store, nil)
	ctx := context.Background()
	accountID := uuid.New()

	sp, err := svc.CreateSpecialization(ctx, profiles.SpecializationInput{
		Name: "Tile setting", MinRateCentavos: 80000, SkillLevel: "INTERMEDIATE",
	})
	if err != nil {
		t.Fatalf("specialization: %v", err)
	}

	if _, err := svc.SetWorkerDetails(ctx, accountID, profiles.WorkerDetailsInput{DailyRateCentavos: 90000}); !errors.Is(err, profiles.ErrNotWorker) {
		t.Fatalf("no worker profile: %v", err)
	}
	if _, err := svc.CreateProfile(ctx, accountID, profiles.CreateProfileInput{ProfileType: "WORKER"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SetWorkerDetails(ctx, accountID, profiles.WorkerDetailsInput{
		DailyRateCentavos: 50000, SpecializationIDs: []uuid.UUID{sp.ID},
	}); !errors.Is(err, profiles.ErrRateBelowMinimum) {
		t.Fatalf("below minimum: %v", err)
	}

	d, err := svc.SetWorkerDetails(ctx, accountID, profiles.WorkerDetailsInput{
		Bio: "20 years of tiling", DailyRateCentavos: 90000, SpecializationIDs: []uuid.UUID{sp.ID},
	})
	if err != nil {
		t.Fatalf("set details: %v", err)
	}
	if d.DailyRateCentavos != 90000 {
		t.Fatalf("rate = %d", d.DailyRateCentavos)
	}
}

func TestCreateSpecializationValidation(t *testing.T) {
	svc := profiles.NewService(newMemStore(), nil)
	ctx := context.Background()

	if _, err := svc.CreateSpecialization(ctx, profiles.SpecializationInput{Name: "", SkillLevel: "ENTRY"}); err == nil {
		t.Fatal("empty name accepted")
	}
	if _, err := svc.CreateSpecialization(ctx, profiles.SpecializationInput{Name: "Carpentry", SkillLevel: "WIZARD"}); err == nil {
		t.Fatal("unknown level accepted")
	}
	sp, err := svc.CreateSpecialization(ctx, profiles.SpecializationInput{
		Name: "Carpentry", SkillLevel: "entry", MinRateCentavos: 60000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sp.SkillLevel != models.SkillLevelEntry {
		t.Fatalf("level = %s", sp.SkillLevel)
	}
}

func TestAgencyDetails(t *testing.T) {
	store := newMemStore()
	svc := profiles.NewService(store, nil)
	ctx := context.Background()
	accountID := uuid.New()

	if _, err := svc.SetAgencyDetails(ctx, accountID, "Build Co", ""); !errors.Is(err, profiles.ErrNotAgency) {
		t.Fatalf("no agency profile: %v", err)
	}
	if _, err := svc.CreateProfile(ctx, accountID, profiles.CreateProfileInput{ProfileType: "AGENCY"}); err != nil {
		t.Fatal(err)
	}
	a, err := svc.SetAgencyDetails(ctx, accountID, "Build Co", "General contracting crew")
	if err != nil {
		t.Fatal(err)
	}
	if a.BusinessName != "Build Co" {
		t.Fatalf("agency = %+v", a)
	}
}
