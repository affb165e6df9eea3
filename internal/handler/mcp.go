// MCP transport handler using the official MCP Go SDK.
// Exposes the capability operations as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"webdriver-caps/internal/caps"
	"webdriver-caps/internal/model"
	"webdriver-caps/internal/negotiation"
)

// === MCP Tool Input/Output Types ===
// Every tool that validates accepts an optional profile URL, the MCP
// counterpart of the Caps-Profile header.

// ProcessInput is the input schema for process_capabilities and
// parse_capabilities.
type ProcessInput struct {
	Profile      string         `json:"profile,omitempty" jsonschema:"constraint profile URL; the default profile is used when empty"`
	Capabilities map[string]any `json:"capabilities" jsonschema:"W3C capabilities object with alwaysMatch and firstMatch"`
}

// ParseOutput is the result of parse_capabilities.
type ParseOutput struct {
	Parsed  *caps.ParsedCaps `json:"parsed"`
	Profile string           `json:"profile"`
}

// ValidateInput is the input schema for validate_capabilities.
// Constraints are given as a list to keep their order explicit.
type ValidateInput struct {
	Profile                string                 `json:"profile,omitempty" jsonschema:"constraint profile URL, used when constraints is empty"`
	Caps                   map[string]any         `json:"caps" jsonschema:"capability object to validate"`
	Constraints            []caps.NamedConstraint `json:"constraints,omitempty" jsonschema:"ordered constraint table"`
	SkipPresenceConstraint bool                   `json:"skipPresenceConstraint,omitempty" jsonschema:"ignore presence constraints"`
}

// MergeInput is the input schema for merge_capabilities.
type MergeInput struct {
	Primary   map[string]any `json:"primary,omitempty" jsonschema:"primary capability object"`
	Secondary map[string]any `json:"secondary,omitempty" jsonschema:"secondary capability object"`
}

// CapsOutput wraps a single capability object.
type CapsOutput struct {
	Caps caps.Map `json:"caps"`
}

// NonPrefixedInput is the input schema for find_nonprefixed_capabilities.
type NonPrefixedInput struct {
	Capabilities map[string]any `json:"capabilities" jsonschema:"W3C capabilities object with alwaysMatch and firstMatch"`
}

// NewMCPServer creates an MCP server with capability tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "webdriver-caps",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "WebDriver capability negotiation. " +
				"Use these tools to validate, merge and process W3C session capabilities.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "process_capabilities",
		Description: "Negotiate W3C capabilities against a constraint profile and return the first matching capability set.",
	}, h.mcpProcess)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "parse_capabilities",
		Description: "Run capability processing and return the intermediate result, including rejected alternatives.",
	}, h.mcpParse)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_capabilities",
		Description: "Validate one capability object against a constraint table.",
	}, h.mcpValidate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_capabilities",
		Description: "Merge two capability objects. Fails when a key is set in both.",
	}, h.mcpMerge)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_nonprefixed_capabilities",
		Description: "List non-standard capabilities that lack a vendor prefix.",
	}, h.mcpNonPrefixed)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpProcess(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ProcessInput,
) (*mcp.CallToolResult, *model.NegotiatedSession, error) {
	resolved, err := h.mcpResolve(ctx, input.Profile)
	if err != nil {
		return nil, nil, err
	}

	negotiated, err := h.negotiator.Negotiate(ctx, resolved, input.Capabilities)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, &model.NegotiatedSession{
		Capabilities: negotiated.Capabilities,
		Profile:      profileLabel(resolved.Profile),
		Warnings:     negotiated.Warnings,
	}, nil
}

func (h *Handler) mcpParse(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ProcessInput,
) (*mcp.CallToolResult, *ParseOutput, error) {
	resolved, err := h.mcpResolve(ctx, input.Profile)
	if err != nil {
		return nil, nil, err
	}

	parsed, err := caps.Parse(input.Capabilities, resolved.Constraints())
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, &ParseOutput{Parsed: parsed, Profile: profileLabel(resolved.Profile)}, nil
}

func (h *Handler) mcpValidate(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ValidateInput,
) (*mcp.CallToolResult, *CapsOutput, error) {
	table := caps.Constraints(input.Constraints)
	if len(table) == 0 {
		resolved, err := h.mcpResolve(ctx, input.Profile)
		if err != nil {
			return nil, nil, err
		}
		table = resolved.Constraints()
	}

	validated, err := caps.Validate(input.Caps, table, caps.ValidateOptions{
		SkipPresenceConstraint: input.SkipPresenceConstraint,
	})
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, &CapsOutput{Caps: validated}, nil
}

func (h *Handler) mcpMerge(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input MergeInput,
) (*mcp.CallToolResult, *CapsOutput, error) {
	merged, err := caps.Merge(input.Primary, input.Secondary)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}

	return nil, &CapsOutput{Caps: merged}, nil
}

func (h *Handler) mcpNonPrefixed(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input NonPrefixedInput,
) (*mcp.CallToolResult, *model.NonPrefixedResult, error) {
	return nil, &model.NonPrefixedResult{NonPrefixed: caps.FindNonPrefixed(input.Capabilities)}, nil
}

// mcpError converts negotiation errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	wdErr := toWebDriverError(err)
	if wdErr.StatusCode >= http.StatusInternalServerError {
		// Don't leak internal error details
		h.logger.Error("mcp internal error", "error", err.Error())
	}
	return fmt.Errorf("%s: %s", wdErr.Code, wdErr.Message)
}

// mcpResolve picks the constraint profile named in tool input.
func (h *Handler) mcpResolve(ctx context.Context, profileURL string) (*negotiation.ResolvedProfile, error) {
	resolved, err := negotiation.ResolveForMCP(ctx, h.negotiator, profileURL)
	if err != nil {
		var verErr *negotiation.VersionError
		if errors.As(err, &verErr) {
			return nil, fmt.Errorf("%s: %s", verErr.Code, verErr.Message)
		}
		return nil, h.mcpError(err)
	}

	// Log if using degraded mode (fetch failed but using fallback)
	if resolved.FetchError != nil {
		h.logger.Warn("using default constraint profile due to fetch error",
			"profile_url", profileURL,
			"error", resolved.FetchError.Error())
	}

	return resolved, nil
}
