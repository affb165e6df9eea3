package negotiation

import (
	"strings"
	"testing"
)

func TestParseCapsProfileHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    ProfileRef
		wantErr string
	}{
		{
			name:   "simple profile",
			header: `profile="https://grid.example/profiles/uiautomator2.yaml"`,
			want:   ProfileRef{URL: "https://grid.example/profiles/uiautomator2.yaml"},
		},
		{
			name:   "surrounding whitespace",
			header: `  profile="https://grid.example/xcuitest.json"  `,
			want:   ProfileRef{URL: "https://grid.example/xcuitest.json"},
		},
		{
			name:   "profile after other members",
			header: `driver="espresso", profile="https://foo.bar/p"`,
			want:   ProfileRef{URL: "https://foo.bar/p"},
		},
		{
			name:   "string version",
			header: `profile="https://grid.example/mac2.yaml";version="1.2.0"`,
			want:   ProfileRef{URL: "https://grid.example/mac2.yaml", MinVersion: "1.2.0"},
		},
		{
			name:   "token version",
			header: `profile="https://grid.example/mac2.yaml";version=v1.4.0`,
			want:   ProfileRef{URL: "https://grid.example/mac2.yaml", MinVersion: "v1.4.0"},
		},
		{
			name:   "integer major version",
			header: `profile="https://grid.example/mac2.yaml";version=2`,
			want:   ProfileRef{URL: "https://grid.example/mac2.yaml", MinVersion: "2"},
		},
		{
			name:   "unrelated parameters ignored",
			header: `profile="https://grid.example/mac2.yaml";ttl=60`,
			want:   ProfileRef{URL: "https://grid.example/mac2.yaml"},
		},
		{
			name:   "localhost URL",
			header: `profile="http://localhost:4723/constraints"`,
			want:   ProfileRef{URL: "http://localhost:4723/constraints"},
		},
		{
			name:   "escaped quote in URL",
			header: `profile="https://foo.bar/\"path\""`,
			want:   ProfileRef{URL: `https://foo.bar/"path"`},
		},
		{
			name:    "empty header",
			header:  "",
			wantErr: "empty",
		},
		{
			name:    "whitespace only",
			header:  "   ",
			wantErr: "empty",
		},
		{
			name:    "missing profile key",
			header:  `driver="flutter"`,
			wantErr: "profile key not found",
		},
		{
			name:    "token instead of string",
			header:  `profile=https://foo.bar`,
			wantErr: "non-empty string",
		},
		{
			name:    "malformed dictionary",
			header:  `profile="https://foo.bar`,
			wantErr: "malformed",
		},
		{
			name:    "inner list instead of item",
			header:  `profile=("https://a" "https://b")`,
			wantErr: "not a list",
		},
		{
			name:    "integer value",
			header:  `profile=42`,
			wantErr: "non-empty string",
		},
		{
			name:    "empty URL",
			header:  `profile=""`,
			wantErr: "non-empty string",
		},
		{
			name:    "non-semver version",
			header:  `profile="https://grid.example/p";version="latest"`,
			wantErr: "not a semantic version",
		},
		{
			name:    "boolean version",
			header:  `profile="https://grid.example/p";version`,
			wantErr: "string, token or integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCapsProfileHeader(tt.header)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("ParseCapsProfileHeader() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCapsProfileHeader() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseCapsProfileHeader() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFormatCapsProfileHeader(t *testing.T) {
	tests := []struct {
		ref  ProfileRef
		want string
	}{
		{ProfileRef{URL: "https://grid.example/xcuitest.yaml"}, `profile="https://grid.example/xcuitest.yaml"`},
		{ProfileRef{URL: "https://grid.example/p", MinVersion: "1.2.0"}, `profile="https://grid.example/p";version="1.2.0"`},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := FormatCapsProfileHeader(tt.ref)
			if err != nil {
				t.Fatalf("FormatCapsProfileHeader() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("FormatCapsProfileHeader() = %s, want %s", got, tt.want)
			}

			back, err := ParseCapsProfileHeader(got)
			if err != nil || back != tt.ref {
				t.Errorf("ParseCapsProfileHeader(%s) = %+v, %v", got, back, err)
			}
		})
	}
}
