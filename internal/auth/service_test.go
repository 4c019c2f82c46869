package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hanapbuhay/backend/internal/auth"
	"github.com/hanapbuhay/backend/internal/ledger/ledgertest"
	"github.com/hanapbuhay/backend/internal/models"
)

type memAccounts struct {
	mu sync.Mutex
	m  map[uuid.UUID]*models.Account
}

func (s *memAccounts) CreateAccount(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.m {
		if existing.Email == a.Email {
			return errors.New("duplicate email")
		}
	}
	cp := *a
	s.m[a.ID] = &cp
	return nil
}

func (s *memAccounts) AccountByEmail(_ context.Context, email string) (*models.Account, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.m {
		if a.Email == email {
			cp := *a
			return &cp, a.PasswordHash, nil
		}
	}
	return nil, "", nil
}

func (s *memAccounts) AccountByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.m[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func newService(t *testing.T) (*auth.Service, *memAccounts, *ledgertest.Store) {
	t.Helper()
	accounts := &memAccounts{m: make(map[uuid.UUID]*models.Account)}
	wallets := ledgertest.NewStore()
	return auth.NewService(accounts, wallets, "test-secret"), accounts, wallets
}

func TestRegisterProvisionsWallet(t *testing.T) {
	svc, _, wallets := newService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "maria@example.com", "correct horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if acc.PasswordHash == "correct horse" || acc.PasswordHash == "" {
		t.Fatal("password stored unhashed")
	}
	w, err := wallets.WalletByAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("wallet not provisioned: %v", err)
	}
	if w.BalanceCentavos != 0 {
		t.Fatalf("new wallet balance = %d", w.BalanceCentavos)
	}
}

func TestLoginAndValidate(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	acc, err := svc.Register(ctx, "juan@example.com", "s3cret-pass")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.Login(ctx, "juan@example.com", "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "s3cret-pass"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}

	token, _, err := svc.Login(ctx, "juan@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	ident, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if ident.AccountID != acc.ID || ident.IsAdmin {
		t.Fatalf("identity = %+v", ident)
	}

	if _, err := svc.ValidateToken(ctx, token+"x"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("tampered token: %v", err)
	}
	other := auth.NewService(&memAccounts{m: map[uuid.UUID]*models.Account{}}, ledgertest.NewStore(), "other-secret")
	if _, err := other.ValidateToken(ctx, token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("foreign secret: %v", err)
	}
}

func TestAdminClaimRoundTrips(t *testing.T) {
	svc, accounts, _ := newService(t)
	ctx := context.Background()
	acc, err := svc.Register(ctx, "admin@example.com", "s3cret-pass")
	if err != nil {
		t.Fatal(err)
	}
	accounts.mu.Lock()
	accounts.m[acc.ID].IsAdmin = true
	accounts.mu.Unlock()

	token, _, err := svc.Login(ctx, "admin@example.com", "s3cret-pass")
	if err != nil {
		t.Fatal(err)
	}
	ident, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if !ident.IsAdmin {
		t.Fatal("admin claim lost")
	}
}
