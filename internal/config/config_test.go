package config

import (
	"testing"
)

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func TestAllowedOriginsDefaults(t *testing.T) {
	t.Setenv("CLIENT_URL", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	origins := AllowedOrigins()

	for _, want := range defaultOrigins {
		if !contains(origins, want) {
			t.Errorf("origins %v missing default %q", origins, want)
		}
	}
}

func TestAllowedOriginsFromEnvironment(t *testing.T) {
	t.Setenv("CLIENT_URL", "https://app.example.com")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com ,")

	origins := AllowedOrigins()

	for _, want := range []string{
		"https://app.example.com",
		"https://a.example.com",
		"https://b.example.com",
	} {
		if !contains(origins, want) {
			t.Errorf("origins %v missing %q", origins, want)
		}
	}

	if contains(origins, "") {
		t.Errorf("origins %v contain an empty entry", origins)
	}
}

func TestAllowedOriginsReadsEnvironmentPerCall(t *testing.T) {
	t.Setenv("CLIENT_URL", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	before := AllowedOrigins()

	if contains(before, "https://late.example.com") {
		t.Fatalf("origins %v already contain the late entry", before)
	}

	t.Setenv("CLIENT_URL", "https://late.example.com")

	after := AllowedOrigins()

	if !contains(after, "https://late.example.com") {
		t.Errorf("origins %v missing value set after first call", after)
	}
}
