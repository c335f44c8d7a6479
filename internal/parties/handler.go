package parties

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Handler exposes the directory under /businesses/{businessID}/parties.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler builds the directory handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes returns the directory sub-router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{partyID}", h.get)
	r.Put("/{partyID}", h.update)
	r.Delete("/{partyID}", h.delete)
	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.pathID(w, r, "businessID")
	if !ok {
		return
	}
	var req CreatePartyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	req.BusinessID = businessID

	p, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.pathID(w, r, "businessID")
	if !ok {
		return
	}
	items, err := h.svc.List(r.Context(), businessID, Kind(r.URL.Query().Get("kind")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"parties": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.pathID(w, r, "businessID")
	if !ok {
		return
	}
	partyID, ok := h.pathID(w, r, "partyID")
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), businessID, partyID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.pathID(w, r, "businessID")
	if !ok {
		return
	}
	partyID, ok := h.pathID(w, r, "partyID")
	if !ok {
		return
	}
	var req UpdatePartyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	p, err := h.svc.Update(r.Context(), businessID, partyID, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.pathID(w, r, "businessID")
	if !ok {
		return
	}
	partyID, ok := h.pathID(w, r, "partyID")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), businessID, partyID); err != nil {
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
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnauthorized):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		h.logger.Error("party request failed", slog.String("error", err.Error()))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "something went wrong")
	}
}
