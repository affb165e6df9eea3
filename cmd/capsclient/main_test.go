package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"webdriver-caps/internal/adapter"
	"webdriver-caps/internal/handler"
	"webdriver-caps/internal/model"
	"webdriver-caps/internal/negotiation"
)

const sessionJSON = `{
  "capabilities": {
    "alwaysMatch": {"platformName": "iOS", "appium:automationName": "XCUITest"},
    "firstMatch": [{"deviceName": "iPhone 15"}]
  }
}`

const iosOnlyTable = `
platformName:
  presence: true
  inclusion: [iOS]
`

// captureOutput redirects stdout and stderr for the duration of the test.
func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	prevOut, prevErr := stdout, stderr
	stdout, stderr = &out, &errOut
	quiet, noColor, verbose = false, false, false
	disableColors()
	t.Cleanup(func() {
		stdout, stderr = prevOut, prevErr
	})
	return &out, &errOut
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunUnknownCommand(t *testing.T) {
	_, errOut := captureOutput(t)

	err := run([]string{"teleport"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("run() error = %v", err)
	}
	if !strings.Contains(errOut.String(), "Usage:") {
		t.Error("expected usage on unknown command")
	}
}

func TestRunHelp(t *testing.T) {
	captureOutput(t)
	if err := run([]string{"help"}); err != nil {
		t.Errorf("run(help) error = %v", err)
	}
	if err := run([]string{"process", "--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("run(process --help) error = %v", err)
	}
}

func TestProcessBuiltinTable(t *testing.T) {
	out, errOut := captureOutput(t)
	path := writeFile(t, "session.json", sessionJSON)

	if err := run([]string{"process", "-f", path}); err != nil {
		t.Fatalf("process error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if got["automationName"] != "XCUITest" || got["deviceName"] != "iPhone 15" {
		t.Errorf("matched = %v", got)
	}
	if !strings.Contains(errOut.String(), "deviceName") {
		t.Errorf("expected non-prefixed warning, got %s", errOut.String())
	}
	if !strings.Contains(errOut.String(), "base@1.0.0") {
		t.Errorf("expected builtin profile label, got %s", errOut.String())
	}
}

func TestProcessCustomTableNoMatch(t *testing.T) {
	captureOutput(t)
	session := writeFile(t, "session.json", `{"firstMatch": [{"platformName": "Android"}]}`)
	table := writeFile(t, "table.yaml", iosOnlyTable)

	err := run([]string{"process", "-f", session, "-c", table})
	if err == nil {
		t.Fatal("expected no-match error")
	}
	if !strings.Contains(err.Error(), "Could not find matching capabilities") {
		t.Errorf("error = %v", err)
	}
}

func TestProcessProfileFile(t *testing.T) {
	out, errOut := captureOutput(t)
	session := writeFile(t, "session.json", `{"alwaysMatch": {"platformName": "iOS"}}`)
	profile := writeFile(t, "profile.yaml", "name: ios-only\nversion: 2.0.0\nconstraints:\n"+
		"  platformName:\n    presence: true\n    inclusion: [iOS]\n")

	if err := run([]string{"process", "-f", session, "--profile-file", profile}); err != nil {
		t.Fatalf("process error = %v", err)
	}
	if !strings.Contains(out.String(), `"platformName": "iOS"`) {
		t.Errorf("output = %s", out.String())
	}
	if !strings.Contains(errOut.String(), "ios-only@2.0.0") {
		t.Errorf("expected profile label, got %s", errOut.String())
	}
}

func TestProcessFlagErrors(t *testing.T) {
	captureOutput(t)
	session := writeFile(t, "session.json", sessionJSON)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file flag", []string{"process"}, "--file is required"},
		{"missing file", []string{"process", "-f", "/nonexistent/session.json"}, "reading request"},
		{"both tables", []string{"process", "-f", session, "-c", "a.yaml", "--profile-file", "b.yaml"}, "mutually exclusive"},
		{"unknown flag", []string{"process", "--bogus"}, "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run(%v) error = %v, want containing %q", tt.args, err, tt.want)
			}
		})
	}
}

func TestProcessStdin(t *testing.T) {
	out, _ := captureOutput(t)
	prev := stdin
	stdin = strings.NewReader(`{"alwaysMatch": {"platformName": "Android", "appium:deviceName": "Pixel"}}`)
	t.Cleanup(func() { stdin = prev })

	if err := run([]string{"process", "-q", "-f", "-"}); err != nil {
		t.Fatalf("process error = %v", err)
	}
	if !strings.Contains(out.String(), `"deviceName": "Pixel"`) {
		t.Errorf("output = %s", out.String())
	}
}

func TestParseShowsRejectedAlternatives(t *testing.T) {
	out, errOut := captureOutput(t)
	session := writeFile(t, "session.json", `{"firstMatch": [{"platformName": "Android"}, {"platformName": "iOS"}]}`)
	table := writeFile(t, "table.yaml", iosOnlyTable)

	if err := run([]string{"parse", "-f", session, "-c", table}); err != nil {
		t.Fatalf("parse error = %v", err)
	}

	var got struct {
		AllFirstMatchCaps       []map[string]any `json:"allFirstMatchCaps"`
		ValidatedFirstMatchCaps []map[string]any `json:"validatedFirstMatchCaps"`
		MatchedCaps             map[string]any   `json:"matchedCaps"`
		ValidationErrors        []string         `json:"validationErrors"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(got.AllFirstMatchCaps) != 2 || len(got.ValidatedFirstMatchCaps) != 1 {
		t.Errorf("all = %d, validated = %d", len(got.AllFirstMatchCaps), len(got.ValidatedFirstMatchCaps))
	}
	if got.MatchedCaps["platformName"] != "iOS" {
		t.Errorf("matchedCaps = %v", got.MatchedCaps)
	}
	if len(got.ValidationErrors) != 1 {
		t.Errorf("validationErrors = %v", got.ValidationErrors)
	}
	if !strings.Contains(errOut.String(), "matched") {
		t.Errorf("stderr = %s", errOut.String())
	}
}

func TestLint(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		quiet   bool
		wantErr error
		wantOut string
	}{
		{
			name:    "clean",
			body:    `{"alwaysMatch": {"platformName": "iOS", "appium:app": "/tmp/a.ipa"}}`,
			wantOut: "",
		},
		{
			name:    "findings",
			body:    sessionJSON,
			wantErr: errFindings,
			wantOut: "deviceName (use appium:deviceName)",
		},
		{
			name:    "quiet findings",
			body:    `{"firstMatch": [{"udid": "abc"}, {"app": "x"}]}`,
			quiet:   true,
			wantErr: errFindings,
			wantOut: "udid\napp\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := captureOutput(t)
			path := writeFile(t, "session.json", tt.body)

			args := []string{"lint", "-f", path}
			if tt.quiet {
				args = append(args, "-q")
			}
			err := run(args)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("lint error = %v, want %v", err, tt.wantErr)
			}
			if tt.quiet && out.String() != tt.wantOut {
				t.Errorf("output = %q, want %q", out.String(), tt.wantOut)
			}
			if !tt.quiet && !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output = %q, want containing %q", out.String(), tt.wantOut)
			}
		})
	}
}

func TestReadRequestUnwrapsEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"envelope", `{"capabilities": {"alwaysMatch": {"a": 1}}}`, "alwaysMatch"},
		{"bare", `{"alwaysMatch": {"capabilities": 1}}`, "alwaysMatch"},
		{"bare with capabilities key", `{"firstMatch": [], "capabilities": {}}`, "firstMatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "req.json", tt.body)
			got, err := readRequest(path)
			if err != nil {
				t.Fatalf("readRequest() error = %v", err)
			}
			obj, ok := got.(map[string]any)
			if !ok {
				t.Fatalf("readRequest() = %T", got)
			}
			if _, ok := obj[tt.want]; !ok {
				t.Errorf("readRequest() = %v, missing %s", obj, tt.want)
			}
		})
	}
}

func TestReadRequestKeepsNumbers(t *testing.T) {
	path := writeFile(t, "req.json", `{"alwaysMatch": {"appium:newCommandTimeout": 60}}`)
	got, err := readRequest(path)
	if err != nil {
		t.Fatalf("readRequest() error = %v", err)
	}
	always := got.(map[string]any)["alwaysMatch"].(map[string]any)
	if _, ok := always["appium:newCommandTimeout"].(json.Number); !ok {
		t.Errorf("number decoded as %T, want json.Number", always["appium:newCommandTimeout"])
	}
}

// testServer runs the real handler stack against the built-in profile.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	profile, err := adapter.Builtin{}.GetProfile(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	negotiator := negotiation.NewNegotiator(negotiation.NewHTTPProfileFetcher(), profile, negotiation.Options{Logger: logger})

	mux := http.NewServeMux()
	handler.New(negotiator, logger).RegisterRoutes(mux)
	srv := httptest.NewServer(negotiation.Middleware(negotiator, logger)(mux))
	t.Cleanup(srv.Close)
	return srv
}

func TestNegotiate(t *testing.T) {
	out, errOut := captureOutput(t)
	srv := testServer(t)
	path := writeFile(t, "session.json", sessionJSON)

	if err := run([]string{"negotiate", "-s", srv.URL, "-f", path}); err != nil {
		t.Fatalf("negotiate error = %v", err)
	}
	if !strings.Contains(out.String(), `"automationName": "XCUITest"`) {
		t.Errorf("output = %s", out.String())
	}
	if !strings.Contains(errOut.String(), "vendor prefix") {
		t.Errorf("expected server warning, got %s", errOut.String())
	}
}

func TestNegotiateRemoteProfile(t *testing.T) {
	captureOutput(t)
	profiles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		io.WriteString(w, "name: android-only\nversion: 1.0.0\nconstraints:\n"+
			"  platformName:\n    presence: true\n    inclusion: [Android]\n")
	}))
	defer profiles.Close()
	srv := testServer(t)
	path := writeFile(t, "session.json", sessionJSON)

	err := run([]string{"negotiate", "-s", srv.URL, "-f", path, "--profile", profiles.URL + "/android.yaml"})

	var wdErr *model.WebDriverError
	if !errors.As(err, &wdErr) {
		t.Fatalf("negotiate error = %v, want WebDriverError", err)
	}
	if wdErr.Code != model.CodeInvalidArgument || wdErr.StatusCode != http.StatusBadRequest {
		t.Errorf("error = %+v", wdErr)
	}
}

func TestNegotiateProfileVersion(t *testing.T) {
	captureOutput(t)
	profiles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "name: ios\nversion: 1.0.0\nconstraints:\n  platformName:\n    presence: true\n")
	}))
	defer profiles.Close()
	srv := testServer(t)
	path := writeFile(t, "session.json", sessionJSON)

	args := []string{"negotiate", "-s", srv.URL, "-f", path, "--profile", profiles.URL + "/ios.yaml"}
	if err := run(append(args, "--profile-version", "1.0.0")); err != nil {
		t.Fatalf("negotiate error = %v", err)
	}

	err := run(append(args, "--profile-version", "2.0.0"))
	var wdErr *model.WebDriverError
	if !errors.As(err, &wdErr) || !strings.HasPrefix(wdErr.Message, negotiation.ProfileVersionUnsupported) {
		t.Errorf("negotiate error = %v, want %s", err, negotiation.ProfileVersionUnsupported)
	}

	err = run([]string{"negotiate", "-f", path, "--profile-version", "1.0.0"})
	if err == nil || !strings.Contains(err.Error(), "requires --profile") {
		t.Errorf("negotiate error = %v, want missing --profile", err)
	}
}

func TestNegotiateVerbose(t *testing.T) {
	_, errOut := captureOutput(t)
	srv := testServer(t)
	path := writeFile(t, "session.json", sessionJSON)

	if err := run([]string{"negotiate", "-v", "-s", srv.URL + "/", "-f", path}); err != nil {
		t.Fatalf("negotiate error = %v", err)
	}
	for _, want := range []string{"REQUEST", "POST /session", "RESPONSE", "200"} {
		if !strings.Contains(errOut.String(), want) {
			t.Errorf("verbose output missing %q", want)
		}
	}
}
