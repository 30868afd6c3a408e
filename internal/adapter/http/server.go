package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Locator is the orchestrator surface exposed over HTTP.
type Locator interface {
	sharedobs.ReadinessChecker
	RequestOnce(ctx context.Context) (domain.Fix, error)
	CheckSettings(ctx context.Context) (domain.SettingsResponse, error)
}

// AddressResolver turns coordinates into an address.
type AddressResolver interface {
	Resolve(ctx context.Context, c domain.Coordinates) (domain.Address, error)
}

// requestTimeout bounds every location or address lookup made for a request.
const requestTimeout = 8 * time.Second

// Server exposes health, readiness, metrics, the location API and the fix
// websocket feed.
type Server struct {
	httpServer *http.Server
	locator    Locator
	resolver   AddressResolver
	hub        *Hub
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, /v1/fix,
// /v1/address, /v1/settings and /ws/fixes routes.
func NewServer(addr string, locator Locator, resolver AddressResolver, hub *Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		locator:  locator,
		resolver: resolver,
		hub:      hub,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(locator))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/fix", s.handleFix)
	mux.HandleFunc("GET /v1/address", s.handleAddress)
	mux.HandleFunc("GET /v1/settings", s.handleSettings)
	mux.HandleFunc("GET /ws/fixes", hub.ServeWS)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline
// and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	fix, err := s.locator.RequestOnce(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fix)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp, err := s.locator.CheckSettings(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"location_usable": resp.LocationUsable,
		"gps_usable":      resp.GPSUsable,
		"network_usable":  resp.NetworkUsable,
	})
}

type addressResponse struct {
	domain.Address
	Summary string `json:"summary"`
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	coords, err := parseCoordinates(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	addr, err := s.resolver.Resolve(ctx, coords)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addressResponse{Address: addr, Summary: addr.Summary()})
}

func parseCoordinates(r *http.Request) (domain.Coordinates, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return domain.Coordinates{}, errors.New("lat must be a number between -90 and 90")
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		return domain.Coordinates{}, errors.New("lon must be a number between -180 and 180")
	}
	return domain.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// statusFor maps the failure taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSettingsUnresolvable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoFixAvailable), errors.Is(err, domain.ErrNoAddressFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrGeocoderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrStreamAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrPlatform):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
