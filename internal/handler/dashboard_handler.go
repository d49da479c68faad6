package handler

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/ceylongems/backoffice/internal/models"
	"github.com/ceylongems/backoffice/internal/pkg/response"
	"github.com/ceylongems/backoffice/internal/repository"
)

// DashboardHandler serves aggregate counts for the admin landing page.
type DashboardHandler struct {
	payments repository.PaymentRepository
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(payments repository.PaymentRepository, profiles repository.ProfileRepository, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{payments: payments, profiles: profiles, logger: logger}
}

// Routes returns the gate-protected dashboard routes.
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Summary)
	return r
}

// DashboardSummary is the aggregate counts payload.
type DashboardSummary struct {
	PendingPayments   int64 `json:"pending_payments"`
	CompletedPayments int64 `json:"completed_payments"`
	FailedPayments    int64 `json:"failed_payments"`
	ActiveAdmins      int64 `json:"active_admins"`
}

// Summary handles GET /admin/dashboard. The counts are independent
// reads, issued concurrently and joined before responding.
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var summary DashboardSummary
	var wg sync.WaitGroup
	errs := make([]error, 4)

	wg.Add(4)
	go func() {
		defer wg.Done()
		summary.PendingPayments, errs[0] = h.payments.CountByStatus(ctx, models.PaymentStatusPending)
	}()
	go func() {
		defer wg.Done()
		summary.CompletedPayments, errs[1] = h.payments.CountByStatus(ctx, models.PaymentStatusCompleted)
	}()
	go func() {
		defer wg.Done()
		summary.FailedPayments, errs[2] = h.payments.CountByStatus(ctx, models.PaymentStatusFailed)
	}()
	go func() {
		defer wg.Done()
		summary.ActiveAdmins, errs[3] = h.profiles.CountActiveAdmins(ctx)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			h.logger.Error("dashboard aggregation failed", slog.String("error", err.Error()))
			response.InternalError(w)
			return
		}
	}

	response.OK(w, summary)
}
