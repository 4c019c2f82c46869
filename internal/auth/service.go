package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/hanapbuhay/backend/internal/models"
)

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Store persists accounts. AccountByEmail returns nil when no account exists.
type Store interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	AccountByEmail(ctx context.Context, email string) (*models.Account, string, error)
	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// WalletProvisioner creates the account's wallet at registration so every
// account can hold funds from the start.
type WalletProvisioner interface {
	CreateWallet(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error)
}

// Identity is the authenticated caller extracted from a token.
type Identity struct {
	AccountID uuid.UUID
	IsAdmin   bool
}

type Service struct {
	store    Store
	wallets  WalletProvisioner
	secret   []byte
	tokenTTL time.Duration
}

func NewService(store Store, wallets WalletProvisioner, secret string) *Service {
	return &Service{store: store, wallets: wallets, secret: []byte(secret), tokenTTL: 24 * time.Hour}
}

type claims struct {
	jwt.RegisteredClaims
	Admin bool `json:"adm"`
}

// Register creates the account, hashes the password and provisions a wallet.
func (s *Service) Register(ctx context.Context, email, password string) (*models.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateAccount(ctx, acc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	if _, err := s.wallets.CreateWallet(ctx, acc.ID); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, *models.Account, error) {
	acc, hash, err := s.store.AccountByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if acc == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.issueToken(acc)
	if err != nil {
		return "", nil, err
	}
	return token, acc, nil
}

func (s *Service) issueToken(acc *models.Account) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Admin: acc.IsAdmin,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *Service) ValidateToken(_ context.Context, token string) (Identity, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return Identity{}, ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{AccountID: id, IsAdmin: c.Admin}, nil
}

// Account returns the account behind an identity.
func (s *Service) Account(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return s.store.AccountByID(ctx, id)
}
