// capsclient is a CLI tool for checking W3C capability requests.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	capsclient process -f FILE [-c TABLE | --profile-file FILE]
//	capsclient parse -f FILE [-c TABLE | --profile-file FILE]
//	capsclient lint -f FILE
//	capsclient negotiate -s URL -f FILE [--profile URL [--profile-version V]]
//
// FILE is a new session body ({"capabilities": {...}}) or the bare
// capabilities object. "-" reads standard input.
//
// Examples:
//
//	capsclient process -f session.json -c xcuitest.yaml
//	capsclient lint -f session.json || echo "add appium: prefixes"
//	capsclient negotiate -s http://localhost:8080 -f session.json --profile https://grid.example/xcuitest.yaml
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"webdriver-caps/internal/adapter"
	"webdriver-caps/internal/caps"
	"webdriver-caps/internal/model"
	"webdriver-caps/internal/negotiation"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Output streams, replaced in tests
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Global flags (apply to all commands)
var (
	quiet   bool
	noColor bool
	verbose bool
)

// errFindings makes lint exit non-zero without printing an error.
var errFindings = errors.New("non-prefixed capabilities found")

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		if !errors.Is(err, errFindings) {
			printError("%v", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		printUsage()
		return errors.New("missing command")
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "process":
		return runProcess(args)
	case "parse":
		return runParse(args)
	case "lint":
		return runLint(args)
	case "negotiate":
		return runNegotiate(args)
	case "-h", "-help", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	fmt.Fprintf(stderr, `capsclient - W3C capability negotiation tool

Usage:
  capsclient <command> [options]

Commands:
  process    Negotiate a capability request against a constraint table
  parse      Show every intermediate step of negotiation
  lint       List non-standard capabilities missing a vendor prefix
  negotiate  Send a new session request to a capsd server

Examples:
  # Negotiate locally against the built-in table
  capsclient process -f session.json

  # Negotiate against a custom table
  capsclient process -f session.json -c xcuitest.yaml

  # Fail a CI step on unprefixed capabilities
  capsclient lint -f session.json

  # Ask a running server, validating against a remote profile
  capsclient negotiate -s http://localhost:8080 -f session.json --profile https://grid.example/xcuitest.yaml --profile-version 1.2.0

Run 'capsclient <command> -h' for command-specific options.
`)
}

// newFlagSet creates a command flag set with the shared flags registered.
func newFlagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - only output the result")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Verbose - show full request/response")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: capsclient %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

// =============================================================================
// PROCESS COMMAND
// =============================================================================

func runProcess(args []string) error {
	fs := newFlagSet("process", "process -f FILE [options]")
	var file, tableFile, profileFile string
	fs.StringVarP(&file, "file", "f", "", "Capability request JSON, - for stdin (required)")
	fs.StringVarP(&tableFile, "constraints", "c", "", "Constraint table (YAML or JSON)")
	fs.StringVar(&profileFile, "profile-file", "", "Constraint profile document (YAML or JSON)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if noColor {
		disableColors()
	}
	if file == "" {
		fs.Usage()
		return errors.New("--file is required")
	}

	request, err := readRequest(file)
	if err != nil {
		return err
	}
	table, label, err := loadTable(tableFile, profileFile)
	if err != nil {
		return err
	}

	parsed, err := caps.Parse(request, table)
	if err != nil {
		return err
	}
	printWarnings(parsed.Warnings, parsed.NonPrefixed)

	matched, err := parsed.Result()
	if err != nil {
		return err
	}

	printSuccess("Capabilities matched %s", label)
	return printJSON(matched)
}

// =============================================================================
// PARSE COMMAND
// =============================================================================

func runParse(args []string) error {
	fs := newFlagSet("parse", "parse -f FILE [options]")
	var file, tableFile, profileFile string
	fs.StringVarP(&file, "file", "f", "", "Capability request JSON, - for stdin (required)")
	fs.StringVarP(&tableFile, "constraints", "c", "", "Constraint table (YAML or JSON)")
	fs.StringVar(&profileFile, "profile-file", "", "Constraint profile document (YAML or JSON)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if noColor {
		disableColors()
	}
	if file == "" {
		fs.Usage()
		return errors.New("--file is required")
	}

	request, err := readRequest(file)
	if err != nil {
		return err
	}
	table, label, err := loadTable(tableFile, profileFile)
	if err != nil {
		return err
	}

	parsed, err := caps.Parse(request, table)
	if err != nil {
		return err
	}

	if parsed.MatchedCaps == nil {
		printWarning("No alternative matched %s", label)
	} else {
		printSuccess("Capabilities matched %s", label)
	}
	return printJSON(parsed)
}

// =============================================================================
// LINT COMMAND
// =============================================================================

func runLint(args []string) error {
	fs := newFlagSet("lint", "lint -f FILE [options]")
	var file string
	fs.StringVarP(&file, "file", "f", "", "Capability request JSON, - for stdin (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if noColor {
		disableColors()
	}
	if file == "" {
		fs.Usage()
		return errors.New("--file is required")
	}

	request, err := readRequest(file)
	if err != nil {
		return err
	}

	found := caps.FindNonPrefixed(request)
	if len(found) == 0 {
		printSuccess("All non-standard capabilities have a vendor prefix")
		return nil
	}

	if quiet {
		for _, name := range found {
			fmt.Fprintln(stdout, name)
		}
		return errFindings
	}
	printWarning("%d capabilities have no vendor prefix", len(found))
	for _, name := range found {
		fmt.Fprintf(stdout, "  - %s%s%s (use appium:%s)\n", colorCyan, name, colorReset, name)
	}
	return errFindings
}

// =============================================================================
// NEGOTIATE COMMAND
// =============================================================================

func runNegotiate(args []string) error {
	fs := newFlagSet("negotiate", "negotiate -s URL -f FILE [options]")
	var server, file string
	var ref negotiation.ProfileRef
	fs.StringVarP(&server, "server", "s", "http://localhost:8080", "capsd base URL")
	fs.StringVarP(&file, "file", "f", "", "Capability request JSON, - for stdin (required)")
	fs.StringVar(&ref.URL, "profile", "", "Constraint profile URL sent in the Caps-Profile header")
	fs.StringVar(&ref.MinVersion, "profile-version", "", "Oldest acceptable profile version")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if noColor {
		disableColors()
	}
	if file == "" {
		fs.Usage()
		return errors.New("--file is required")
	}
	if ref.MinVersion != "" && ref.URL == "" {
		return errors.New("--profile-version requires --profile")
	}

	request, err := readRequest(file)
	if err != nil {
		return err
	}

	var session model.NegotiatedSession
	body := model.NewSessionRequest{Capabilities: request}
	if err := doRequest(context.Background(), server, "/session", ref, body, &session); err != nil {
		return err
	}

	printWarnings(session.Warnings, nil)
	printSuccess("Session capabilities negotiated with %s", session.Profile)
	return printJSON(session.Capabilities)
}

// =============================================================================
// INPUT HELPERS
// =============================================================================

// readRequest loads a capability request, unwrapping a new session body.
func readRequest(path string) (any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading request: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var request any
	if err := dec.Decode(&request); err != nil {
		return nil, fmt.Errorf("parsing request: %w", err)
	}

	if obj, ok := request.(map[string]any); ok {
		_, hasAlways := obj["alwaysMatch"]
		_, hasFirst := obj["firstMatch"]
		if inner, wrapped := obj["capabilities"]; wrapped && !hasAlways && !hasFirst {
			return inner, nil
		}
	}
	return request, nil
}

// loadTable picks the constraint table: an explicit table file, a profile
// document, or the built-in base table.
func loadTable(tableFile, profileFile string) (caps.Constraints, string, error) {
	if tableFile != "" && profileFile != "" {
		return nil, "", errors.New("--constraints and --profile-file are mutually exclusive")
	}

	if tableFile != "" {
		data, err := os.ReadFile(tableFile)
		if err != nil {
			return nil, "", fmt.Errorf("reading constraints: %w", err)
		}
		table, err := caps.ParseConstraints(data)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", tableFile, err)
		}
		return table, tableFile, nil
	}

	var source adapter.Adapter = adapter.Builtin{}
	if profileFile != "" {
		source = adapter.File{Path: profileFile}
	}
	profile, err := source.GetProfile(context.Background())
	if err != nil {
		return nil, "", err
	}
	return profile.Constraints, profile.Label(), nil
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

// doRequest posts body to the server and decodes the W3C "value" envelope
// into out. Error envelopes are returned as *model.WebDriverError.
func doRequest(ctx context.Context, server, path string, ref negotiation.ProfileRef, body, out any) error {
	reqJSON, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	reqURL := strings.TrimRight(server, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ref.URL != "" {
		header, err := negotiation.FormatCapsProfileHeader(ref)
		if err != nil {
			return fmt.Errorf("encoding %s header: %w", negotiation.CapsProfileHeader, err)
		}
		req.Header.Set(negotiation.CapsProfileHeader, header)
	}

	if verbose {
		printRequest(http.MethodPost, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if verbose {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		var envelope model.Envelope
		var value model.ErrorValue
		envelope.Value = &value
		if err := json.Unmarshal(respBody, &envelope); err != nil || value.Error == "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return &model.WebDriverError{Code: value.Error, Message: value.Message, StatusCode: resp.StatusCode}
	}

	envelope := model.Envelope{Value: out}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printRequest(method, path string, body []byte) {
	fmt.Fprintf(stderr, "\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	fmt.Fprintf(stderr, "%s\n", body)
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Fprintf(stderr, "\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Fprintf(stderr, "%s\n", body)
		return
	}
	fmt.Fprintln(stderr, pretty.String())
}

// printJSON writes v to stdout; it is the only output in quiet mode.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(stdout, string(data))
	return nil
}

func printWarnings(warnings, nonPrefixed []string) {
	for _, w := range warnings {
		printWarning("%s", w)
	}
	if len(nonPrefixed) > 0 {
		printWarning("No vendor prefix: %s", strings.Join(nonPrefixed, ", "))
	}
}

func printSuccess(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(stderr, "%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printError(format string, args ...any) {
	fmt.Fprintf(stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(stderr, "%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
	}
}
