// Package handler provides the HTTP handlers for the box tracker.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stevemurr/boxgrid/grid"
	"github.com/stevemurr/boxgrid/label"
	"github.com/stevemurr/boxgrid/search"
	"github.com/stevemurr/boxgrid/session"
)

// Options tune a Handler. The zero value is usable.
type Options struct {
	// LabelHost prefixes label URLs when the request does not name a
	// host. Empty means the request's own origin.
	LabelHost string
	Logger    *slog.Logger
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	session   *session.Session
	validate  *validator.Validate
	labelHost string
	logger    *slog.Logger
	mux       *http.ServeMux
}

// New creates a Handler and wires up all routes.
func New(s *session.Session, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		session:   s,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		labelHost: opts.LabelHost,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)
	h.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
}

func (h *Handler) routes() {
	// Health / status
	h.mux.HandleFunc("GET /", h.root)
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	// --- Boxes ---
	h.mux.HandleFunc("GET /boxes", h.listBoxes)
	h.mux.HandleFunc("POST /boxes", h.createBox)
	h.mux.HandleFunc("GET /boxes/{id}", h.getBox)
	h.mux.HandleFunc("PUT /boxes/{id}", h.updateBox)
	h.mux.HandleFunc("DELETE /boxes/{id}", h.deleteBox)
	h.mux.HandleFunc("POST /boxes/{id}/resize", h.resizeBox)
	h.mux.HandleFunc("GET /boxes/{id}/label", h.boxLabel)

	// Label deep links resolve here.
	h.mux.HandleFunc("GET "+label.PathPrefix+"{id}", h.getBox)

	// --- Slots ---
	h.mux.HandleFunc("PUT /boxes/{id}/slots/{row}/{col}", h.setSlot)
	h.mux.HandleFunc("DELETE /boxes/{id}/slots/{row}/{col}", h.clearSlot)

	// --- Read-side views ---
	h.mux.HandleFunc("GET /search", h.search)
	h.mux.HandleFunc("GET /stats", h.stats)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeFailure maps domain errors onto HTTP statuses.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	var we *session.WriteError
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, grid.ErrOutOfBounds):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, grid.ErrUnknownCellType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &we):
		writeError(w, http.StatusBadGateway, we.Error())
	default:
		h.logger.Error("unhandled error", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeValid reads a JSON body into v and runs struct validation on it.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := readJSON(r, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", jsonName(fe.Field()), msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func pathCoord(r *http.Request) (row, col int, err error) {
	row, err = strconv.Atoi(r.PathValue("row"))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid row %q", r.PathValue("row"))
	}
	col, err = strconv.Atoi(r.PathValue("col"))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid col %q", r.PathValue("col"))
	}
	return row, col, nil
}

// requestOrigin reconstructs the origin a client used to reach us.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	// Only match exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "boxgrid",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- boxes ----------

type createBoxRequest struct {
	Name        string `json:"name" validate:"required"`
	Rows        int    `json:"rows" validate:"omitempty,min=1,max=50"`
	Cols        int    `json:"cols" validate:"omitempty,min=1,max=50"`
	Description string `json:"description"`
}

type updateBoxRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type resizeRequest struct {
	Rows   *int `json:"rows" validate:"required"`
	Cols   *int `json:"cols" validate:"required"`
	DryRun bool `json:"dryRun"`
}

type resizeResponse struct {
	Box     grid.Box `json:"box"`
	Evicted []string `json:"evicted"`
	DryRun  bool     `json:"dryRun"`
}

func (h *Handler) listBoxes(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("filter"); q != "" {
		writeJSON(w, http.StatusOK, h.session.Filter(q))
		return
	}
	writeJSON(w, http.StatusOK, h.session.Boxes())
}

func (h *Handler) createBox(w http.ResponseWriter, r *http.Request) {
	var req createBoxRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	if req.Rows == 0 {
		req.Rows = grid.DefaultDim
	}
	if req.Cols == 0 {
		req.Cols = grid.DefaultDim
	}
	b, err := h.session.CreateBox(r.Context(), session.NewBox{
		Name:        req.Name,
		Rows:        req.Rows,
		Cols:        req.Cols,
		Description: req.Description,
	})
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) getBox(w http.ResponseWriter, r *http.Request) {
	b, err := h.session.Box(r.PathValue("id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) updateBox(w http.ResponseWriter, r *http.Request) {
	var req updateBoxRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	b, err := h.session.UpdateBox(r.Context(), r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) deleteBox(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.session.DeleteBox(r.Context(), id); err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (h *Handler) resizeBox(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	b, evicted, err := h.session.Resize(r.Context(), r.PathValue("id"), *req.Rows, *req.Cols, req.DryRun)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if evicted == nil {
		evicted = []string{}
	}
	writeJSON(w, http.StatusOK, resizeResponse{Box: b, Evicted: evicted, DryRun: req.DryRun})
}

func (h *Handler) boxLabel(w http.ResponseWriter, r *http.Request) {
	b, err := h.session.Box(r.PathValue("id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	host := r.URL.Query().Get("host")
	if host == "" {
		host = h.labelHost
	}
	if host == "" {
		host = requestOrigin(r)
	}
	writeJSON(w, http.StatusOK, label.For(b, host))
}

// ---------- slots ----------

type slotRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

func (h *Handler) setSlot(w http.ResponseWriter, r *http.Request) {
	row, col, err := pathCoord(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req slotRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	ct, err := grid.ParseCellType(req.Type)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	b, err := h.session.SetSlot(r.Context(), r.PathValue("id"), row, col, grid.Cell{
		Name:    req.Name,
		Content: req.Content,
		Type:    ct,
	})
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) clearSlot(w http.ResponseWriter, r *http.Request) {
	row, col, err := pathCoord(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := h.session.ClearSlot(r.Context(), r.PathValue("id"), row, col)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ---------- read-side views ----------

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	results := h.session.Search(r.URL.Query().Get("q"))
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Stats())
}
