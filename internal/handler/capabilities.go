package handler

import (
	"log/slog"
	"net/http"

	"webdriver-caps/internal/caps"
	"webdriver-caps/internal/model"
)

// handleNewSession negotiates the capabilities of a W3C new session request.
// POST /session
func (h *Handler) handleNewSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.NewSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Capabilities == nil {
		h.writeError(w, model.NewValidationError("capabilities", "must be a JSON object"))
		return
	}

	resolved := h.resolvedProfile(r)
	h.logger.InfoContext(ctx, "negotiating session capabilities",
		slog.String("profile", profileLabel(resolved.Profile)),
		slog.Bool("remote_profile", resolved.ProfileURL != ""),
	)

	negotiated, err := h.negotiator.Negotiate(ctx, resolved, req.Capabilities)
	if err != nil {
		h.logger.InfoContext(ctx, "capability negotiation failed",
			slog.String("error", err.Error()))
		h.writeError(w, err)
		return
	}

	h.writeValue(w, model.NegotiatedSession{
		Capabilities: negotiated.Capabilities,
		Profile:      profileLabel(resolved.Profile),
		Warnings:     negotiated.Warnings,
	})
}

// handleProcess runs full capability processing on the inner request object.
// POST /capabilities/process
func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req any
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	matched, err := caps.Process(req, h.resolvedProfile(r).Constraints())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeValue(w, matched)
}

// handleParse returns the intermediate processing result.
// POST /capabilities/parse
func (h *Handler) handleParse(w http.ResponseWriter, r *http.Request) {
	var req any
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	parsed, err := caps.Parse(req, h.resolvedProfile(r).Constraints())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeValue(w, parsed)
}

// handleValidate checks one capability object against a constraint table.
// The table defaults to the resolved profile when the body has none.
// POST /capabilities/validate
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req model.ValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	table := req.Constraints
	if table == nil {
		table = h.resolvedProfile(r).Constraints()
	}

	validated, err := caps.Validate(req.Caps, table, caps.ValidateOptions{
		SkipPresenceConstraint: req.SkipPresenceConstraint,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeValue(w, validated)
}

// handleMerge combines two capability objects.
// POST /capabilities/merge
func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req model.MergeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	merged, err := caps.Merge(req.Primary, req.Secondary)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeValue(w, merged)
}

// handleNonPrefixed lists capabilities that lack a vendor prefix.
// POST /capabilities/nonprefixed
func (h *Handler) handleNonPrefixed(w http.ResponseWriter, r *http.Request) {
	var req any
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeValue(w, model.NonPrefixedResult{NonPrefixed: caps.FindNonPrefixed(req)})
}

// handleConstraints returns the default constraint profile.
// GET /constraints
func (h *Handler) handleConstraints(w http.ResponseWriter, r *http.Request) {
	profile := h.negotiator.DefaultProfile()
	if profile == nil {
		h.writeError(w, model.NewSessionNotCreatedError("no default constraint profile configured"))
		return
	}

	h.writeValue(w, profile)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

func profileLabel(p *model.ConstraintProfile) string {
	if p == nil {
		return ""
	}
	return p.Label()
}
