package billing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Handler exposes the invoicing engine over HTTP. It is mounted under
// /businesses/{businessID}/documents; the path business id is
// authoritative and overrides any body value.
type Handler struct {
	engine *Engine
	logger *slog.Logger
}

// NewHandler builds the document handler.
func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// Routes returns the document sub-router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{invoiceID}", h.get)
	r.Put("/{invoiceID}", h.update)
	r.Delete("/{invoiceID}", h.delete)
	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.pathID(w, r, "businessID")
	if !ok {
		return
	}
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	req.BusinessID = businessID

	inv, err := h.engine.Create(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.pathID(w, r, "businessID")
	if !ok {
		return
	}
	req := ListInvoicesRequest{BusinessID: businessID}
	q := r.URL.Query()
	req.Kind = DocumentKind(q.Get("kind"))
	if s := q.Get("payment_status"); s != "" {
		ps := PaymentStatus(s)
		req.PaymentStatus = &ps
	}
	if s := q.Get("from"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "from must be RFC 3339")
			return
		}
		req.DateFrom = &ts
	}
	if s := q.Get("to"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "to must be RFC 3339")
			return
		}
		req.DateTo = &ts
	}
	if s := q.Get("limit"); s != "" {
		req.Limit, _ = strconv.Atoi(s)
	}
	if s := q.Get("offset"); s != "" {
		req.Offset, _ = strconv.Atoi(s)
	}

	invs, err := h.engine.List(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"documents": invs})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.pathID(w, r, "businessID")
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}
	inv, err := h.engine.Get(r.Context(), businessID, invoiceID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.pathID(w, r, "businessID")
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}
	var req UpdateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	inv, err := h.engine.Update(r.Context(), businessID, invoiceID, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.pathID(w, r, "businessID")
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}
	if err := h.engine.Delete(r.Context(), businessID, invoiceID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if ise, ok := AsInsufficientStock(err); ok {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", ise.Error())
		return
	}
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnauthorized):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("document request failed", slog.String("error", err.Error()))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "something went wrong")
	}
}
