package storage

import (
	"context"
	"strings"
	"testing"
)

func TestSimulator_DeterministicURL(t *testing.T) {
	sim := NewSimulator("clubsite", "https://r2.example.com")

	a, err := sim.MirrorAvatar(context.Background(), "42", "hash1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := sim.MirrorAvatar(context.Background(), "42", "hash1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a != b {
		t.Errorf("same inputs must produce the same URL: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "https://r2.example.com/clubsite/avatars/") {
		t.Errorf("unexpected url %s", a)
	}

	c, _ := sim.MirrorAvatar(context.Background(), "42", "hash2")
	if c == a {
		t.Error("different hashes must produce different URLs")
	}
}

func TestSimulator_RejectsMissingInputs(t *testing.T) {
	sim := NewSimulator("", "")

	if _, err := sim.MirrorAvatar(context.Background(), "", "hash"); err == nil {
		t.Error("expected error for missing discord id")
	}
	if _, err := sim.MirrorAvatar(context.Background(), "42", ""); err == nil {
		t.Error("expected error for missing avatar hash")
	}
}

func TestSimulator_Defaults(t *testing.T) {
	sim := NewSimulator("", "")

	url, err := sim.MirrorAvatar(context.Background(), "42", "hash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(url, "/clubsite/avatars/") {
		t.Errorf("expected default bucket in url, got %s", url)
	}
}
