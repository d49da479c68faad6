package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ceylongems/backoffice/internal/gateway"
	"github.com/ceylongems/backoffice/internal/middleware"
	"github.com/ceylongems/backoffice/internal/models"
	apierrors "github.com/ceylongems/backoffice/internal/pkg/errors"
	"github.com/ceylongems/backoffice/internal/pkg/response"
	"github.com/ceylongems/backoffice/internal/pkg/ulid"
	"github.com/ceylongems/backoffice/internal/repository"
	"github.com/ceylongems/backoffice/internal/service"
)

// PaymentHandler handles checkout intents and gateway notifications.
type PaymentHandler struct {
	payments *service.PaymentService
	logger   *slog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(payments *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

// AdminRoutes returns the gate-protected payment routes. The storefront
// checkout and webhook endpoints are wired directly in main: only the
// checkout route carries optional identity resolution.
func (h *PaymentHandler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	return r
}

// CreateIntent handles POST /api/checkout
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req service.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}

	// Guest checkout is allowed; identity is attached only when the
	// optional resolution succeeded.
	var userID *string
	if id := middleware.GetUserID(r.Context()); id != "" {
		userID = &id
	}

	intent, err := h.payments.CreateIntent(r.Context(), &req, userID, r)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			middleware.CountPaymentIntent("validation_failed")
			response.ValidationErrors(w, verr.Fields)
		case errors.Is(err, repository.ErrDuplicateOrder):
			middleware.CountPaymentIntent("conflict")
			response.Error(w, apierrors.NewConflictError("A payment already exists for this order"))
		default:
			middleware.CountPaymentIntent("error")
			h.logger.Error("payment intent creation failed",
				slog.String("order_id", req.OrderID),
				slog.String("error", err.Error()),
			)
			response.InternalError(w)
		}
		return
	}

	middleware.CountPaymentIntent("created")
	response.Created(w, intent)
}

// Notify handles POST /api/payments/notify, the asynchronous gateway
// webhook. The gateway posts form-encoded fields.
func (h *PaymentHandler) Notify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid form body"))
		return
	}

	n := gateway.Notification{
		MerchantID: r.PostFormValue("merchant_id"),
		OrderID:    r.PostFormValue("order_id"),
		PaymentID:  r.PostFormValue("payment_id"),
		Amount:     r.PostFormValue("payhere_amount"),
		Currency:   r.PostFormValue("payhere_currency"),
		StatusCode: r.PostFormValue("status_code"),
		MD5Sig:     r.PostFormValue("md5sig"),
	}

	err := h.payments.HandleNotification(r.Context(), n)
	switch {
	case err == nil:
		response.OK(w, map[string]string{"status": "ok"})
	case errors.Is(err, service.ErrBadSignature):
		h.logger.Warn("webhook signature mismatch", slog.String("order_id", n.OrderID))
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Signature verification failed"))
	case errors.Is(err, service.ErrUnknownOrder):
		h.logger.Warn("webhook for unknown order", slog.String("order_id", n.OrderID))
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Unknown order"))
	case errors.Is(err, repository.ErrInvalidTransition):
		// Gateway retry for an already-settled payment: acknowledge so it
		// stops retrying. The record did not change.
		response.OK(w, map[string]string{"status": "already_processed"})
	default:
		h.logger.Error("webhook processing failed",
			slog.String("order_id", n.OrderID),
			slog.String("error", err.Error()),
		)
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Notification rejected"))
	}
}

// List handles GET /admin/payments
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	query := models.PaymentQuery{}
	if s := r.URL.Query().Get("status"); s != "" {
		status := models.PaymentStatus(s)
		query.Status = &status
	}

	payments, err := h.payments.List(r.Context(), query)
	if err != nil {
		h.logger.Error("payment list failed", slog.String("error", err.Error()))
		response.InternalError(w)
		return
	}
	response.OK(w, payments)
}

// Get handles GET /admin/payments/{id}
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !ulid.IsValid(id) {
		response.NotFound(w, "Payment")
		return
	}

	payment, err := h.payments.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("payment lookup failed", slog.String("error", err.Error()))
		response.InternalError(w)
		return
	}
	if payment == nil {
		response.NotFound(w, "Payment")
		return
	}
	response.OK(w, payment)
}
