package models

import (
	"time"

	"github.com/google/uuid"
)

// Well-known system accounts. The platform account owns the wallet that
// collects commission fees.
var (
	SystemPlatformAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	AdminAccountID          = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

// Profile types. An account may hold several profiles of distinct types;
// hiring across profiles of the same account is forbidden.
const (
	ProfileTypeClient = "CLIENT"
	ProfileTypeWorker = "WORKER"
	ProfileTypeAgency = "AGENCY"
)

// Skill levels used by specializations and team skill slots.
const (
	SkillLevelEntry        = "ENTRY"
	SkillLevelIntermediate = "INTERMEDIATE"
	SkillLevelExpert       = "EXPERT"
)

type Account struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	IsVerified      bool      `json:"is_verified"`
	IsAdmin         bool      `json:"is_admin"`
	IsSystemAccount bool      `json:"is_system_account"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Profile struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	ProfileType string     `json:"profile_type"`
	GivenName   string     `json:"given_name"`
	FamilyName  string     `json:"family_name"`
	Contact     string     `json:"contact"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// WorkerProfile extends a WORKER profile with rates and skills.
type WorkerProfile struct {
	ProfileID         uuid.UUID   `json:"profile_id"`
	Bio               string      `json:"bio"`
	HourlyRateCentavos int64      `json:"hourly_rate_centavos"`
	DailyRateCentavos  int64      `json:"daily_rate_centavos"`
	SpecializationIDs []uuid.UUID `json:"specialization_ids"`
}

// ClientProfile extends a CLIENT profile.
type ClientProfile struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Bio       string    `json:"bio"`
}

// Agency is the business extension of an AGENCY profile.
type Agency struct {
	ProfileID    uuid.UUID `json:"profile_id"`
	BusinessName string    `json:"business_name"`
	BusinessInfo string    `json:"business_info"`
}

// Specialization is a catalog entry referenced by worker skills and job slots.
type Specialization struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	MinRateCentavos int64     `json:"min_rate_centavos"`
	SkillLevel      string    `json:"skill_level"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}
