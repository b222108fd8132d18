package security

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiterStore_EnforcesBurst(t *testing.T) {
	// 1 token/s, burst of 3
	store := NewLimiterStore(rate.Limit(1), 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !store.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst should pass", i+1)
		}
	}

	if store.Allow("10.0.0.1") {
		t.Error("request beyond burst should be rejected")
	}
}

func TestLimiterStore_IsolatesClients(t *testing.T) {
	store := NewLimiterStore(rate.Limit(1), 1, time.Minute)

	if !store.Allow("10.0.0.1") {
		t.Fatal("first client should pass")
	}
	if store.Allow("10.0.0.1") {
		t.Error("first client should now be limited")
	}

	// a different IP has its own bucket
	if !store.Allow("10.0.0.2") {
		t.Error("second client must not share the first client's bucket")
	}
}

func TestLimiterStore_EmptyIPBucketsTogether(t *testing.T) {
	store := NewLimiterStore(rate.Limit(1), 1, time.Minute)

	if !store.Allow("") {
		t.Fatal("first anonymous request should pass")
	}
	if store.Allow("  ") {
		t.Error("blank IPs share the fallback bucket")
	}
}
