// Package handler provides HTTP handlers for the capability negotiation API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"webdriver-caps/internal/caps"
	"webdriver-caps/internal/model"
	"webdriver-caps/internal/negotiation"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	negotiator *negotiation.Negotiator
	logger     *slog.Logger
}

// New creates a new Handler with the given negotiator and logger.
func New(negotiator *negotiation.Negotiator, logger *slog.Logger) *Handler {
	return &Handler{
		negotiator: negotiator,
		logger:     logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Discovery endpoint
	mux.HandleFunc("GET /constraints", h.handleConstraints)

	// W3C new session: capability negotiation only, no session is started
	mux.HandleFunc("POST /session", h.handleNewSession)

	// Core operations
	mux.HandleFunc("POST /capabilities/process", h.handleProcess)
	mux.HandleFunc("POST /capabilities/parse", h.handleParse)
	mux.HandleFunc("POST /capabilities/validate", h.handleValidate)
	mux.HandleFunc("POST /capabilities/merge", h.handleMerge)
	mux.HandleFunc("POST /capabilities/nonprefixed", h.handleNonPrefixed)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeValue wraps data in the W3C {"value": ...} envelope.
func (h *Handler) writeValue(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, model.Envelope{Value: data})
}

// writeError sends a W3C error response.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	wdErr := toWebDriverError(err)
	if wdErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, wdErr.StatusCode, model.Envelope{Value: wdErr.Value()})
}

// toWebDriverError maps any error to its W3C form.
// Unknown errors become "unknown error" without leaking details.
func toWebDriverError(err error) *model.WebDriverError {
	var wdErr *model.WebDriverError
	if errors.As(err, &wdErr) {
		return wdErr
	}

	var valErr *caps.ValidationError
	if errors.As(err, &valErr) {
		return model.NewInvalidArgumentError(valErr.Message, valErr)
	}

	var verErr *negotiation.VersionError
	if errors.As(err, &verErr) {
		return model.NewInvalidArgumentError(verErr.Code+": "+verErr.Message, verErr)
	}

	return model.NewInternalError(err)
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns a WebDriverError if decoding fails.
func decodeJSON(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// resolvedProfile returns the profile chosen by the negotiation middleware,
// or the default profile when the middleware did not run.
func (h *Handler) resolvedProfile(r *http.Request) *negotiation.ResolvedProfile {
	if resolved := negotiation.GetResolvedProfile(r.Context()); resolved != nil {
		return resolved
	}
	return &negotiation.ResolvedProfile{Profile: h.negotiator.DefaultProfile()}
}
