/*
handlers.go - HTTP API handlers for the tour pricing and refund engine

PURPOSE:
  Exposes reservation quotes, saves, ledger statements, manual refunds and
  guide lookups via REST API. Handles HTTP request/response and JSON
  serialization, and delegates to the booking service.

ENDPOINTS:
  Reservations:
    GET    /api/reservations/{id}/quote    Price the reservation as saved
    POST   /api/reservations/{id}/quote    Price an edit (no writes)
    POST   /api/reservations/{id}/save     Save an edit and settle the difference
    GET    /api/reservations/{id}/ledger   Payment statement with card groups
    POST   /api/reservations/{id}/refunds  Manual refund (?dry_run=true previews)
    GET    /api/reservations/{id}/guides   Assigned guides (cached)

  Scenarios (standalone SQLite backend only):
    GET    /api/scenarios                  List demo scenarios
    GET    /api/scenarios/current          Currently loaded scenario
    POST   /api/scenarios/load             Load a demo scenario
    POST   /api/scenarios/reset            Clear the database

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: booking.Service, the only path to the booking backend
  - Guides: cached guide lookups
  - Store: the local SQLite store, nil when a remote backend is configured

ERROR HANDLING:
  Errors are returned as JSON {"error", "details"} with a status derived from
  the core error category:
  - 400: Validation errors, invalid input
  - 404: Reservation, tour or refundable charge not found
  - 422: Owning tenant could not be resolved
  - 207: Refund ran but fell short (body carries the result)
  Save errors raised after a refund was attempted also carry the result.
  - 502: Booking backend or processor call failed
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/tour-pricing/booking"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/factory"
	"github.com/warp/tour-pricing/refund"
	"github.com/warp/tour-pricing/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *booking.Service
	Guides  *booking.GuideDirectory

	// Store is set only in standalone mode; scenarios need it.
	Store         *sqlite.Store
	PolicyFactory *factory.PolicyFactory

	logger *logrus.Entry

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. store may be nil.
func NewHandler(svc *booking.Service, guides *booking.GuideDirectory, store *sqlite.Store, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		Service:       svc,
		Guides:        guides,
		Store:         store,
		PolicyFactory: factory.NewPolicyFactory(),
		logger:        logger.WithField("component", "api"),
	}
}

// =============================================================================
// QUOTE HANDLERS
// =============================================================================

// GetQuote prices the reservation with no edit applied.
// GET /api/reservations/{id}/quote
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	quote, err := h.Service.Quote(r.Context(), id, booking.Edit{})
	if err != nil {
		h.fail(w, "Failed to price reservation", err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// QuoteEdit prices an edit without saving it.
// POST /api/reservations/{id}/quote
func (h *Handler) QuoteEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var edit booking.Edit
	if err := decodeBody(r, &edit); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	quote, err := h.Service.Quote(r.Context(), id, edit)
	if err != nil {
		h.fail(w, "Failed to price edit", err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// =============================================================================
// SAVE HANDLER
// =============================================================================

// SaveReservation saves an edit: consolidates the pending balance and runs
// any refund the new total calls for.
// POST /api/reservations/{id}/save
func (h *Handler) SaveReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req booking.SaveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Service.Save(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrPartialFailure):
			writeJSON(w, http.StatusMultiStatus, PartialFailureResponse{
				Error:   "Refund was only partially completed",
				Details: err.Error(),
				Result:  result,
			})
		case errors.Is(err, refund.ErrNoRefundableTransactions):
			// Nothing was written; the steps say why each draw failed.
			writeJSON(w, statusFor(err), PartialFailureResponse{
				Error:   "Refund failed, reservation not saved",
				Details: err.Error(),
				Result:  result,
			})
		case result.Refund != nil:
			h.logger.WithError(err).WithField("reservation_id", id).Error("refund issued but save did not complete")
			writeJSON(w, statusFor(err), PartialFailureResponse{
				Error:   "Refund issued but save did not complete",
				Details: err.Error(),
				Result:  result,
			})
		default:
			h.fail(w, "Failed to save reservation", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetLedger returns the payment statement of a reservation.
// GET /api/reservations/{id}/ledger
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stmt, err := h.Service.Statement(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to load ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}

// CreateRefund runs a manual refund, or previews it with ?dry_run=true.
// POST /api/reservations/{id}/refunds
func (h *Handler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid dry_run value", err)
			return
		}
		dryRun = b
	}

	var req booking.RefundRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Service.Refund(r.Context(), id, req, dryRun)
	if err != nil {
		if errors.Is(err, core.ErrPartialFailure) {
			writeJSON(w, http.StatusMultiStatus, PartialFailureResponse{
				Error:   "Refund was only partially completed",
				Details: err.Error(),
				Result:  result,
			})
			return
		}
		h.fail(w, "Failed to refund reservation", err)
		return
	}

	status := http.StatusCreated
	if dryRun {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// =============================================================================
// GUIDE HANDLERS
// =============================================================================

// ListGuides returns the guides assigned to a reservation.
// GET /api/reservations/{id}/guides
func (h *Handler) ListGuides(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	guides, err := h.Guides.Guides(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to list guides", err)
		return
	}
	writeJSON(w, http.StatusOK, GuidesResponse{ReservationID: id, Guides: guides})
}

// =============================================================================
// HELPERS
// =============================================================================

// statusFor maps a core error category to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTenantResolution):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrPartialFailure):
		return http.StatusMultiStatus
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail logs server-side failures and writes the mapped error.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("status", status).Error(message)
	}
	writeError(w, status, message, err)
}

// decodeBody decodes a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
