package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"webdriver-caps/internal/model"
)

// CapsProfileHeader selects a constraint profile by URL.
const CapsProfileHeader = "Caps-Profile"

// Middleware creates HTTP middleware that resolves the constraint profile.
// Parses the optional Caps-Profile header, fetches the named profile, and
// stores the ResolvedProfile in the http.Request context for handlers.
// Requests without the header get the default profile.
func Middleware(negotiator *Negotiator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Health checks and discovery don't validate anything.
			// MCP carries the profile URL in tool input instead.
			if isExemptPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			var ref ProfileRef
			if header := r.Header.Get(CapsProfileHeader); header != "" {
				parsed, err := ParseCapsProfileHeader(header)
				if err != nil {
					logger.Warn("invalid Caps-Profile header",
						slog.String("header", header),
						slog.String("error", err.Error()))
					writeNegotiationError(w, http.StatusBadRequest, model.CodeInvalidArgument,
						"Invalid Caps-Profile header: "+err.Error())
					return
				}
				ref = parsed
			}
			profileURL := ref.URL

			resolved, err := negotiator.ResolveRef(r.Context(), ref)
			if err != nil {
				var verErr *VersionError
				if errors.As(err, &verErr) {
					writeNegotiationError(w, http.StatusBadRequest, model.CodeInvalidArgument,
						verErr.Code+": "+verErr.Message)
					return
				}

				logger.Error("constraint profile resolution failed",
					slog.String("profile_url", profileURL),
					slog.String("error", err.Error()))
				var wdErr *model.WebDriverError
				if !errors.As(err, &wdErr) {
					wdErr = model.NewUpstreamError("constraint profile", err)
				}
				writeNegotiationError(w, wdErr.StatusCode, wdErr.Code, wdErr.Message)
				return
			}

			if resolved.FetchError != nil {
				logger.Warn("using default constraint profile due to fetch error",
					slog.String("profile_url", profileURL),
					slog.String("error", resolved.FetchError.Error()))
			}

			ctx := context.WithValue(r.Context(), ProfileContextKey, resolved)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isExemptPath returns true for paths that skip profile resolution.
func isExemptPath(path string) bool {
	switch path {
	case "/health", "/healthz", "/constraints", "/mcp":
		return true
	default:
		return false
	}
}

// writeNegotiationError writes a W3C error response.
func writeNegotiationError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(model.Envelope{Value: model.ErrorValue{
		Error:   code,
		Message: message,
	}})
}

// GetResolvedProfile retrieves the resolved profile from request context.
// Returns nil if resolution was skipped (e.g., exempt path) or not set.
func GetResolvedProfile(ctx context.Context) *ResolvedProfile {
	v := ctx.Value(ProfileContextKey)
	if v == nil {
		return nil
	}
	return v.(*ResolvedProfile)
}

// ResolveForMCP resolves the profile for an MCP tool call.
// MCP doesn't use middleware - each tool call names its profile explicitly.
func ResolveForMCP(ctx context.Context, negotiator *Negotiator, profileURL string) (*ResolvedProfile, error) {
	resolved, err := negotiator.Resolve(ctx, profileURL)
	if err != nil {
		return nil, err
	}
	return resolved, nil
}
