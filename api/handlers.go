/*
handlers.go - HTTP handlers for the billing command boundary

PURPOSE:
  Exposes the query layer over HTTP. Handles request parsing, validation and
  JSON serialization, then delegates to billing.Store. No business logic
  lives here beyond the documented caller-side policies (e.g. an empty
  search term falls back to the full list).

COMMAND TABLE:
  POST /api/login                       Verify operator PIN
  PUT  /api/admin/pin                   Replace operator PIN
  GET  /api/clients[?q=term]            List / search clients with status
  POST /api/clients                     Add client
  GET  /api/clients/{id}                Get client (404 when absent)
  PUT  /api/clients/{id}                Update client
  GET  /api/clients/{id}/payments       Payment history, newest first
  GET  /api/clients/{id}/consumption    Consumption history, newest first
  PUT  /api/clients/{id}/consumption    Upsert one month's reading
  POST /api/payments                    Record payment
  GET  /api/payments?date=YYYY-MM-DD    Payments on a calendar day
  GET  /api/dashboard/stats             Aggregate counters

ERROR HANDLING:
  - 400: body parse failures, validator failures, ValidationError
  - 404: missing client on point lookup or update
  - 500: store failures, surfaced with the wrapped message
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aguaflow/waterdesk/billing"
)

// Handler holds all dependencies for HTTP handlers. The store is injected as
// an interface; handlers never reach for globals.
type Handler struct {
	store    billing.Store
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a handler bound to a store.
func NewHandler(store billing.Store, log zerolog.Logger) *Handler {
	return &Handler{
		store:    store,
		validate: validator.New(),
		log:      log,
	}
}

// =============================================================================
// CREDENTIAL HANDLERS
// =============================================================================

// Login verifies the operator PIN.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	ok, err := h.store.VerifyPIN(r.Context(), req.PIN)
	if err != nil {
		h.writeStoreError(w, "Failed to verify PIN", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{OK: ok})
}

// UpdatePIN replaces the stored operator PIN.
// PUT /api/admin/pin
func (h *Handler) UpdatePIN(w http.ResponseWriter, r *http.Request) {
	var req UpdatePINRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.store.UpdatePIN(r.Context(), req.PIN); err != nil {
		h.writeStoreError(w, "Failed to update PIN", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{OK: true})
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns every client with its derived status fields. When the
// q parameter is a non-blank term the list is filtered by substring search;
// a blank term deliberately falls back to the full list (caller-side policy,
// the store itself treats "" as match-everything).
// GET /api/clients?q=term
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		views []billing.ClientStatusView
		err   error
	)
	if term == "" {
		views, err = h.store.ListClients(r.Context())
	} else {
		views, err = h.store.SearchClients(r.Context(), term)
	}
	if err != nil {
		h.writeStoreError(w, "Failed to list clients", err)
		return
	}

	writeJSON(w, http.StatusOK, toClientStatusDTOs(views))
}

// GetClient returns a single client.
// GET /api/clients/{id}
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}

	client, err := h.store.GetClient(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "Failed to get client", err)
		return
	}
	if client == nil {
		writeError(w, http.StatusNotFound, "Client not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(client))
}

// AddClient creates a client.
// POST /api/clients
func (h *Handler) AddClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	client, err := h.store.AddClient(r.Context(), req.Name, req.Address, req.Status)
	if err != nil {
		h.writeStoreError(w, "Failed to add client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(client))
}

// UpdateClient replaces a client's mutable fields.
// PUT /api/clients/{id}
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}

	var req ClientRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	// Update is a full replace of the three mutable fields, so unlike
	// create the status cannot be defaulted.
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "Invalid client",
			billing.NewValidationError("status", "required on update"))
		return
	}

	client, err := h.store.UpdateClient(r.Context(), id, req.Name, req.Address, req.Status)
	if err != nil {
		h.writeStoreError(w, "Failed to update client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(client))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// AddPayment records a payment.
// POST /api/payments
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	var req AddPaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "Invalid payment",
			billing.NewValidationError("amount", "must not be negative"))
		return
	}

	payDate, err := parseDate(req.PaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_date (use YYYY-MM-DD or RFC3339)", err)
		return
	}

	payment, err := h.store.AddPayment(r.Context(), billing.Payment{
		ClientID:    req.ClientID,
		Amount:      req.Amount,
		PaymentDate: payDate,
		Status:      req.Status,
	})
	if err != nil {
		h.writeStoreError(w, "Failed to add payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

// ListClientPayments returns a client's payment history.
// GET /api/clients/{id}/payments
func (h *Handler) ListClientPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}

	payments, err := h.store.ListPayments(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i := range payments {
		dtos[i] = toPaymentDTO(&payments[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPaymentsByDate returns all payments on a calendar day joined with the
// client identity.
// GET /api/payments?date=YYYY-MM-DD
func (h *Handler) ListPaymentsByDate(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing date (use YYYY-MM-DD)", err)
		return
	}

	payments, err := h.store.ListPaymentsByDate(r.Context(), day)
	if err != nil {
		h.writeStoreError(w, "Failed to list payments by date", err)
		return
	}

	dtos := make([]PaymentWithClientDTO, len(payments))
	for i, pc := range payments {
		dtos[i] = PaymentWithClientDTO{
			PaymentDTO:    toPaymentDTO(&payments[i].Payment),
			ClientName:    pc.ClientName,
			ClientAddress: pc.ClientAddress,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CONSUMPTION HANDLERS
// =============================================================================

// UpsertConsumption registers or corrects one month's reading for a client.
// PUT /api/clients/{id}/consumption
func (h *Handler) UpsertConsumption(w http.ResponseWriter, r *http.Request) {
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}

	var req ConsumptionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	rec, err := h.store.UpsertConsumption(r.Context(), billing.ConsumptionRecord{
		ClientID:          id,
		Month:             req.Month,
		Year:              req.Year,
		NormalConsumption: req.NormalConsumption,
		ExcessConsumption: req.ExcessConsumption,
		Notes:             req.Notes,
	})
	if err != nil {
		h.writeStoreError(w, "Failed to save consumption", err)
		return
	}
	writeJSON(w, http.StatusOK, toConsumptionDTO(rec))
}

// ListClientConsumption returns a client's consumption history.
// GET /api/clients/{id}/consumption
func (h *Handler) ListClientConsumption(w http.ResponseWriter, r *http.Request) {
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}

	records, err := h.store.ListConsumption(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "Failed to list consumption", err)
		return
	}

	dtos := make([]ConsumptionDTO, len(records))
	for i := range records {
		dtos[i] = toConsumptionDTO(&records[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DASHBOARD HANDLERS
// =============================================================================

// DashboardStats returns the four aggregate counters.
// GET /api/dashboard/stats
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.DashboardStats(r.Context())
	if err != nil {
		h.writeStoreError(w, "Failed to compute dashboard stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeAndValidate parses the JSON body into dst and runs the validator.
// Writes the 400 response itself and returns false on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func (h *Handler) clientID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid client id", err)
		return 0, false
	}
	return id, true
}

// writeStoreError maps domain errors to status codes and logs the rest.
func (h *Handler) writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case billing.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// parseDate accepts a bare calendar date or a full RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
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
