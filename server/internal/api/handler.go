package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/metage/metage/pkg/metabolic"
	"github.com/metage/metage/pkg/types"
	"github.com/metage/metage/server/internal/estimator"
)

// maxBodyBytes caps the size of an estimate request body.
const maxBodyBytes = 64 << 10

// Options wires optional collaborators into the router.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Auth guards /api/v1/* (except health) and the live channel. Nil disables auth.
	Auth func(http.Handler) http.Handler

	// Metrics is served unauthenticated at GET /metrics when non-nil.
	Metrics http.Handler

	// Live is the WebSocket estimate channel served at /ws/estimate when non-nil.
	Live http.Handler

	// LiveClients reports connected WebSocket clients for the health endpoint.
	LiveClients func() int

	// UIDir, when set, serves static files with an index.html fallback.
	UIDir string
}

// Handler serves the estimate API.
type Handler struct {
	svc    estimator.Estimator
	logger *slog.Logger
	opts   Options
}

// New creates the HTTP handler for the whole server and registers all routes.
func New(svc estimator.Estimator, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &Handler{svc: svc, logger: opts.Logger, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(h.notFound)

	r.Get("/api/v1/health", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}
		r.Post("/api/v1/estimate", h.estimate)
		r.Get("/api/v1/activities", h.activities)
		if opts.Live != nil {
			r.Method(http.MethodGet, "/ws/estimate", opts.Live)
		}
	})

	return r
}

// --- route handlers ---------------------------------------------------------

// estimate handles POST /api/v1/estimate with a JSON or form-encoded body.
func (h *Handler) estimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	req, err := decodeEstimate(r)
	if err != nil {
		h.logger.InfoContext(ctx, "api: malformed estimate request",
			"request_id", middleware.GetReqID(ctx),
			"err", err,
		)
		jsonErr(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := h.svc.Estimate(ctx, estimator.TransportHTTP, req.Form().Input())
	if err != nil {
		if errors.Is(err, metabolic.ErrInvalidInput) {
			jsonErr(w, http.StatusUnprocessableEntity, metabolic.InvalidInputMessage)
			return
		}
		h.logger.ErrorContext(ctx, "api: estimate failed",
			"request_id", middleware.GetReqID(ctx),
			"err", err,
		)
		jsonErr(w, http.StatusInternalServerError, "internal error")
		return
	}

	jsonResp(w, http.StatusOK, types.NewEstimateResponse(res))
}

// activities handles GET /api/v1/activities.
func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	levels := metabolic.Activities()
	out := make([]types.ActivityResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, types.ActivityResponse{
			Name:  string(l.Activity),
			Label: l.Label,
			Score: l.Score,
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// health handles GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{Status: "ok"}
	if h.opts.LiveClients != nil {
		resp.WSClients = h.opts.LiveClients()
	}
	jsonResp(w, http.StatusOK, resp)
}

// notFound serves the static UI when configured, otherwise a JSON 404.
func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	if h.opts.UIDir == "" || r.Method != http.MethodGet {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	// SPA fallback: unknown paths serve index.html.
	p := filepath.Join(h.opts.UIDir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if fi, err := os.Stat(p); err != nil || fi.IsDir() {
		http.ServeFile(w, r, filepath.Join(h.opts.UIDir, "index.html"))
		return
	}
	http.ServeFile(w, r, p)
}

// --- helpers ----------------------------------------------------------------

// decodeEstimate reads an EstimateRequest from a JSON or form-encoded body.
func decodeEstimate(r *http.Request) (types.EstimateRequest, error) {
	var req types.EstimateRequest

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, err
		}
		req = types.EstimateRequest{
			Age:       types.FormValue(r.PostFormValue("age")),
			Sex:       r.PostFormValue("sex"),
			HeightCm:  types.FormValue(r.PostFormValue("height_cm")),
			WeightKg:  types.FormValue(r.PostFormValue("weight_kg")),
			RestingHR: types.FormValue(r.PostFormValue("resting_hr")),
			Activity:  r.PostFormValue("activity"),
		}
		return req, nil
	default:
		err := json.NewDecoder(r.Body).Decode(&req)
		if errors.Is(err, io.EOF) {
			return req, errors.New("empty body")
		}
		return req, err
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, types.ErrorResponse{Error: msg})
}
