package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/billing"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Handler exposes reports under /businesses/{businessID}/reports.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler builds the report handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes returns the report sub-router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/summary", h.summary)
	return r
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	businessID, err := strconv.ParseInt(chi.URLParam(r, "businessID"), 10, 64)
	if err != nil || businessID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "businessID must be a positive integer")
		return
	}

	params := r.URL.Query()
	q := Query{BusinessID: businessID, Range: RangeName(params.Get("range"))}

	q.Kind, err = kindFromQuery(params.Get("kind"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if s := params.Get("payment_status"); s != "" {
		ps := billing.PaymentStatus(s)
		q.PaymentStatus = &ps
	}
	if s := params.Get("from"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "from must be RFC 3339")
			return
		}
		q.From = &ts
	}
	if s := params.Get("to"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "to must be RFC 3339")
			return
		}
		q.To = &ts
	}

	sum, err := h.svc.Summary(r.Context(), q)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrUnauthorized):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		h.logger.Error("report request failed", slog.String("error", err.Error()))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "something went wrong")
	}
}
