package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"eventScope/internal/aggregate"
	"eventScope/internal/explorer"
	"eventScope/internal/model"
	"eventScope/internal/network"
	"eventScope/internal/view"
)

// Handler serves the interface proxy and the events API.
type Handler struct {
	resolver view.Resolver
	runner   view.Runner
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewHandler creates a Handler. A nil gatherer leaves /metrics unregistered.
func NewHandler(resolver view.Resolver, runner view.Runner, gatherer prometheus.Gatherer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		resolver: resolver,
		runner:   runner,
		gatherer: gatherer,
		logger:   logger,
	}
}

// RegisterRoutes registers all routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/getAbi", h.GetABI)
	mux.HandleFunc("/api/events", h.Events)
	mux.HandleFunc("/health", h.Health)
	if h.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// Routes returns the mux wrapped for cross-origin browser access.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}).Handler(mux)
}

// ABIResponse is the body of GET /api/getAbi.
type ABIResponse struct {
	ABI     string `json:"abi"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GetABI handles GET /api/getAbi?address=..&network=..
func (h *Handler) GetABI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	address, net, ok := parseTarget(w, r)
	if !ok {
		return
	}

	resp, err := h.resolver.Resolve(r.Context(), address, net)
	if err != nil {
		h.logger.Warn("abi proxy failed",
			zap.String("address", address),
			zap.String("network", net.String()),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, ABIResponse{Status: "0", Message: err.Error()})
		return
	}

	status := resp.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, ABIResponse{ABI: resp.ABI, Status: resp.Status, Message: resp.Message})
}

// EventsResponse is the body of GET /api/events.
type EventsResponse struct {
	State         string           `json:"state"`
	Address       string           `json:"address"`
	Network       network.Network  `json:"network"`
	Events        []model.LogEvent `json:"events"`
	FilterOptions []string         `json:"filterOptions"`
	Roles         model.RoleState  `json:"roles"`
	Skipped       int              `json:"skipped"`
	Error         string           `json:"error,omitempty"`
}

// Events handles GET /api/events?address=..&network=..&event=..&order=..
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	address, net, ok := parseTarget(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	order, err := aggregate.ParseOrder(query.Get("order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := EventsResponse{
		Address:       address,
		Network:       net,
		Events:        []model.LogEvent{},
		FilterOptions: []string{},
		Roles:         model.RoleState{},
	}

	result, err := h.runner.Run(r.Context(), address, net)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.logger.Warn("events request failed",
			zap.String("address", address),
			zap.String("network", net.String()),
			zap.Error(err),
		)
		out.State = view.Error.String()
		out.Error = err.Error()
		writeJSON(w, statusForRunError(err), out)
		return
	}

	out.State = view.Ready.String()
	out.Address = result.Address
	out.Events = result.Filtered(order, query["event"]...)
	out.FilterOptions = result.FilterOptions
	out.Roles = result.Roles
	out.Skipped = result.Skipped
	writeJSON(w, http.StatusOK, out)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func parseTarget(w http.ResponseWriter, r *http.Request) (string, network.Network, bool) {
	query := r.URL.Query()
	address := strings.TrimSpace(query.Get("address"))
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return "", "", false
	}
	net, err := network.Parse(query.Get("network"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return address, net, true
}

// statusForRunError keeps pipeline failures renderable as an empty view.
func statusForRunError(err error) int {
	switch {
	case errors.Is(err, explorer.ErrResolution), errors.Is(err, view.ErrRetrieval):
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
