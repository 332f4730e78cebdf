// Streamwarden - Plex Session Reconciliation and Subscription Enforcement
// Copyright 2026 Streamwarden contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamwarden/streamwarden

package cache

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/streamwarden/streamwarden/internal/metrics"
)

func TestSetAndGet(t *testing.T) {
	c := New("test", 1*time.Minute)

	c.Set("poster:abc", "image-bytes")

	got, ok := c.Get("poster:abc")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != "image-bytes" {
		t.Errorf("Get = %v, want image-bytes", got)
	}
}

func TestGetMissing(t *testing.T) {
	c := New("test", 1*time.Minute)

	if _, ok := c.Get("nope"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestExpiration(t *testing.T) {
	c := New("test", 1*time.Minute)

	c.SetWithTTL("short", "v", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("expected entry to expire")
	}
}

func TestDelete(t *testing.T) {
	c := New("test", 1*time.Minute)

	c.Set("k", "v")
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestClear(t *testing.T) {
	c := New("test", 1*time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after clear")
	}
	stats := c.GetStats()
	if stats.TotalKeys != 0 {
		t.Errorf("TotalKeys = %d, want 0 after clear", stats.TotalKeys)
	}
}

func TestStatsAndHitRate(t *testing.T) {
	c := New("test", 1*time.Minute)

	c.Set("k", "v")
	c.Get("k")    // hit
	c.Get("nope") // miss

	stats := c.GetStats()
	if stats.Hits != 1 {
		t.Errorf("Hits = %d, want 1", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if rate := c.HitRate(); rate != 50.0 {
		t.Errorf("HitRate = %f, want 50.0", rate)
	}
}

func TestGenerateKeyStable(t *testing.T) {
	type params struct {
		Query string
		Year  int
	}

	k1 := GenerateKey("tmdb_search", params{Query: "Dune", Year: 2021})
	k2 := GenerateKey("tmdb_search", params{Query: "Dune", Year: 2021})
	k3 := GenerateKey("tmdb_search", params{Query: "Dune", Year: 1984})

	if k1 != k2 {
		t.Error("identical params should produce identical keys")
	}
	if k1 == k3 {
		t.Error("different params should produce different keys")
	}
}

func TestCacheExportsPrometheusCounters(t *testing.T) {
	c := New("counter-test", 1*time.Minute)

	hitsBefore := testutil.ToFloat64(metrics.CacheHits.WithLabelValues("counter-test"))
	missesBefore := testutil.ToFloat64(metrics.CacheMisses.WithLabelValues("counter-test"))

	c.Get("absent")
	c.Set("present", 1)
	c.Get("present")
	c.Get("present")

	hits := testutil.ToFloat64(metrics.CacheHits.WithLabelValues("counter-test")) - hitsBefore
	misses := testutil.ToFloat64(metrics.CacheMisses.WithLabelValues("counter-test")) - missesBefore

	if hits != 2 {
		t.Errorf("cache_hits_total delta = %v, want 2", hits)
	}
	if misses != 1 {
		t.Errorf("cache_misses_total delta = %v, want 1", misses)
	}
}
