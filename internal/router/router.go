package router

import (
	"net/http"

	"github.com/hanapbuhay/backend/internal/applications"
	"github.com/hanapbuhay/backend/internal/attendance"
	"github.com/hanapbuhay/backend/internal/auth"
	"github.com/hanapbuhay/backend/internal/disputes"
	"github.com/hanapbuhay/backend/internal/jobs"
	"github.com/hanapbuhay/backend/internal/middleware"
	"github.com/hanapbuhay/backend/internal/profiles"
	"github.com/hanapbuhay/backend/internal/wallets"
)

// Handlers bundles the per-domain HTTP handlers the router wires up.
type Handlers struct {
	Auth         *auth.Handler
	Profiles     *profiles.Handler
	Jobs         *jobs.Handler
	Applications *applications.Handler
	Disputes     *disputes.Handler
	Attendance   *attendance.Handler
	Wallets      *wallets.Handler
}

// New builds the /api/v1 routing table. Everything except registration,
// login and the public catalogs requires a bearer token; admin endpoints
// additionally require the admin claim.
func New(h Handlers, validator middleware.TokenValidator, limiter middleware.Allower) http.Handler {
	mux := http.NewServeMux()
	const base = "/api/v1"

	authd := middleware.Auth(validator)
	limited := middleware.RateLimit(limiter, nil)
	open := func(fn http.HandlerFunc) http.Handler { return limited(fn) }
	protected := func(fn http.HandlerFunc) http.Handler { return authd(limited(fn)) }
	admin := func(fn http.HandlerFunc) http.Handler { return authd(limited(middleware.RequireAdmin(fn))) }

	mux.Handle("POST "+base+"/auth/register", open(h.Auth.Register))
	mux.Handle("POST "+base+"/auth/login", open(h.Auth.Login))

	mux.Handle("GET "+base+"/specializations", open(h.Profiles.ListSpecializations))
	mux.Handle("POST "+base+"/specializations", admin(h.Profiles.CreateSpecialization))
	mux.Handle("POST "+base+"/profiles", protected(h.Profiles.Create))
	mux.Handle("GET "+base+"/profiles", protected(h.Profiles.ListMine))
	mux.Handle("PUT "+base+"/profiles/worker", protected(h.Profiles.SetWorkerDetails))
	mux.Handle("PUT "+base+"/profiles/agency", protected(h.Profiles.SetAgencyDetails))

	mux.Handle("GET "+base+"/wallet", protected(h.Wallets.Balance))
	mux.Handle("GET "+base+"/wallet/transactions", protected(h.Wallets.History))
	mux.Handle("POST "+base+"/wallet/deposits", protected(h.Wallets.Deposit))
	mux.Handle("POST "+base+"/wallet/withdrawals", protected(h.Wallets.Withdraw))
	mux.Handle("PUT "+base+"/wallet/auto-withdraw", protected(h.Wallets.SetAutoWithdraw))

	mux.Handle("POST "+base+"/jobs", protected(h.Jobs.Create))
	mux.Handle("GET "+base+"/jobs", protected(h.Jobs.List))
	mux.Handle("GET "+base+"/jobs/{id}", protected(h.Jobs.Get))
	mux.Handle("POST "+base+"/jobs/{id}/publish", protected(h.Jobs.Publish))
	mux.Handle("POST "+base+"/jobs/{id}/arrivals", protected(h.Jobs.ConfirmArrival))
	mux.Handle("POST "+base+"/jobs/{id}/start", protected(h.Jobs.Start))
	mux.Handle("POST "+base+"/jobs/{id}/complete", protected(h.Jobs.MarkComplete))
	mux.Handle("POST "+base+"/jobs/{id}/approve", protected(h.Jobs.Approve))
	mux.Handle("POST "+base+"/jobs/{id}/materials/advance", protected(h.Jobs.AdvanceMaterials))
	mux.Handle("POST "+base+"/jobs/{id}/cancel", protected(h.Jobs.Cancel))

	mux.Handle("POST "+base+"/jobs/{id}/applications", protected(h.Applications.Apply))
	mux.Handle("GET "+base+"/jobs/{id}/applications", protected(h.Applications.ListByJob))
	mux.Handle("POST "+base+"/jobs/{id}/invites", protected(h.Applications.Invite))
	mux.Handle("GET "+base+"/applications", protected(h.Applications.ListMine))
	mux.Handle("POST "+base+"/applications/{id}/accept", protected(h.Applications.Accept))
	mux.Handle("POST "+base+"/applications/{id}/reject", protected(h.Applications.Reject))
	mux.Handle("POST "+base+"/applications/{id}/withdraw", protected(h.Applications.Withdraw))

	mux.Handle("POST "+base+"/jobs/{id}/disputes", protected(h.Disputes.Open))
	mux.Handle("GET "+base+"/jobs/{id}/disputes", protected(h.Disputes.ListByJob))
	mux.Handle("GET "+base+"/disputes", admin(h.Disputes.ListOpen))
	mux.Handle("POST "+base+"/disputes/{id}/review", admin(h.Disputes.Review))
	mux.Handle("POST "+base+"/disputes/{id}/resolve", admin(h.Disputes.Resolve))

	mux.Handle("POST "+base+"/jobs/{id}/attendance", protected(h.Attendance.Confirm))
	mux.Handle("GET "+base+"/jobs/{id}/attendance", protected(h.Attendance.ListDays))
	mux.Handle("POST "+base+"/jobs/{id}/attendance/resolve", admin(h.Attendance.ResolveDay))
	mux.Handle("POST "+base+"/jobs/{id}/extensions", protected(h.Attendance.RequestExtension))
	mux.Handle("POST "+base+"/extensions/{id}/approve", protected(h.Attendance.ApproveExtension))
	mux.Handle("POST "+base+"/extensions/{id}/reject", protected(h.Attendance.RejectExtension))
	mux.Handle("POST "+base+"/jobs/{id}/rate-changes", protected(h.Attendance.RequestRateChange))
	mux.Handle("POST "+base+"/rate-changes/{id}/approve", protected(h.Attendance.ApproveRateChange))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}
