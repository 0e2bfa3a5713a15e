// ABOUTME: Tests for version constants
// ABOUTME: Checks the version is semantic and the banner carries every field
package version

import (
	"strconv"
	"strings"
	"testing"
)

func TestVersionIsSemantic(t *testing.T) {
	parts := strings.Split(Version, ".")
	if len(parts) != 3 {
		t.Fatalf("Version %q is not major.minor.patch", Version)
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			t.Errorf("Version %q has non-numeric part %q", Version, p)
		}
	}
}

func TestIdentityDefined(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Product", Product},
		{"Manufacturer", Manufacturer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				t.Errorf("%s should not be empty", tt.name)
			}
			if len(tt.value) > 63 {
				t.Errorf("%s is too long for an mDNS TXT record", tt.name)
			}
		})
	}
}

func TestString(t *testing.T) {
	got := String()
	for _, want := range []string{Product, "v" + Version, Manufacturer} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}
