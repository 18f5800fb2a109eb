package pickups

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/joshua0006/pineapple-tours--1--sub006/rezdy"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func writePickupFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func builtIndex(t *testing.T) *Index {
	t.Helper()
	dir := t.TempDir()
	writePickupFile(t, dir, "pwqf1y.json", `{
		"productCode": "PWQF1Y",
		"pickups": [
			{"locationName": "Cairns Esplanade", "address": "1 Esplanade", "minutesPrior": 20},
			{"locationName": "Northern Beaches", "minutesPrior": 35}
		]
	}`)
	writePickupFile(t, dir, "nopickups.json", `{"productCode": "WALKTOUR", "pickups": []}`)
	writePickupFile(t, dir, "broken.json", `{not json`)

	idx := NewIndex(dir, testLogger())
	if _, err := idx.RefreshIndex(); err != nil {
		t.Fatalf("RefreshIndex: %v", err)
	}
	return idx
}

func TestRefreshIndexSummary(t *testing.T) {
	idx := builtIndex(t)

	stats := idx.Stats()
	if stats.TotalProducts != 2 {
		t.Fatalf("TotalProducts = %d, want 2 (broken file skipped)", stats.TotalProducts)
	}
	if stats.ProductsWithPickups != 1 || stats.TotalLocations != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	meta := idx.Metadata()
	if meta.BuiltAt == nil || meta.ProductCount != 2 {
		t.Fatalf("metadata = %+v", meta)
	}
}

func TestLocalHitNeverCallsUpstream(t *testing.T) {
	idx := builtIndex(t)
	upstreamCalls := 0
	resolver := NewResolver(idx, func(ctx context.Context, productCode string) ([]rezdy.PickupLocation, error) {
		upstreamCalls++
		return nil, nil
	}, testLogger())

	res := resolver.Resolve(context.Background(), "PWQF1Y")
	if res.Source != SourceLocalFiles || res.Accuracy != "high" {
		t.Fatalf("resolution = %+v", res)
	}
	if len(res.Pickups) != 2 || res.Pickups[0].LocationName != "Cairns Esplanade" {
		t.Fatalf("pickups = %+v", res.Pickups)
	}
	if upstreamCalls != 0 {
		t.Fatalf("upstream called %d times for a locally indexed product", upstreamCalls)
	}
}

func TestLocalHitUpdatesTelemetry(t *testing.T) {
	idx := builtIndex(t)
	resolver := NewResolver(idx, nil, testLogger())

	before := idx.Metadata().TotalReads
	resolver.Resolve(context.Background(), "PWQF1Y")
	resolver.Resolve(context.Background(), "PWQF1Y")
	if got := idx.Metadata().TotalReads; got != before+2 {
		t.Fatalf("TotalReads = %d, want %d", got, before+2)
	}

	// A miss that falls to the terminal state leaves telemetry alone.
	resolver.Resolve(context.Background(), "UNKNOWN")
	if got := idx.Metadata().TotalReads; got != before+2 {
		t.Fatalf("miss mutated telemetry: TotalReads = %d", got)
	}
}

func TestUnindexedProductFallsBackToUpstream(t *testing.T) {
	idx := builtIndex(t)
	resolver := NewResolver(idx, func(ctx context.Context, productCode string) ([]rezdy.PickupLocation, error) {
		return []rezdy.PickupLocation{{LocationName: "Hotel Lobby"}}, nil
	}, testLogger())

	res := resolver.Resolve(context.Background(), "NEWTOUR")
	if res.Source != SourceRezdyAPI || res.Accuracy != "low" {
		t.Fatalf("resolution = %+v", res)
	}
	if len(res.Pickups) != 1 {
		t.Fatalf("pickups = %+v", res.Pickups)
	}
}

func TestConfirmedNoPickupsFallsBackToUpstream(t *testing.T) {
	// hasPickupData=false means "nothing locally", so the chain still
	// consults upstream for WALKTOUR.
	idx := builtIndex(t)
	upstreamCalls := 0
	resolver := NewResolver(idx, func(ctx context.Context, productCode string) ([]rezdy.PickupLocation, error) {
		upstreamCalls++
		return nil, nil
	}, testLogger())

	res := resolver.Resolve(context.Background(), "WALKTOUR")
	if res.Source != SourceNone {
		t.Fatalf("resolution = %+v", res)
	}
	if upstreamCalls != 1 {
		t.Fatalf("upstream called %d times, want 1", upstreamCalls)
	}
}

func TestUpstreamErrorResolvesToNone(t *testing.T) {
	idx := builtIndex(t)
	resolver := NewResolver(idx, func(ctx context.Context, productCode string) ([]rezdy.PickupLocation, error) {
		return nil, errors.New("rezdy api error 503")
	}, testLogger())

	res := resolver.Resolve(context.Background(), "NEWTOUR")
	if res.Source != SourceNone || res.Accuracy != "low" {
		t.Fatalf("resolution = %+v, want the empty terminal state", res)
	}
}

func TestEmptyProductCodeShortCircuits(t *testing.T) {
	idx := builtIndex(t)
	upstreamCalls := 0
	resolver := NewResolver(idx, func(ctx context.Context, productCode string) ([]rezdy.PickupLocation, error) {
		upstreamCalls++
		return nil, nil
	}, testLogger())

	if res := resolver.Resolve(context.Background(), "   "); res.Source != SourceNone {
		t.Fatalf("resolution = %+v", res)
	}
	if upstreamCalls != 0 {
		t.Fatal("blank product code reached upstream")
	}
}

func TestRefreshReplacesIndexAtomically(t *testing.T) {
	dir := t.TempDir()
	writePickupFile(t, dir, "a.json", `{"productCode": "A", "pickups": [{"locationName": "Stop A"}]}`)

	idx := NewIndex(dir, testLogger())
	if _, err := idx.RefreshIndex(); err != nil {
		t.Fatalf("RefreshIndex: %v", err)
	}
	if _, ok := idx.lookup("A"); !ok {
		t.Fatal("product A missing after first build")
	}

	// Replace the data set entirely; the old product must disappear.
	if err := os.Remove(filepath.Join(dir, "a.json")); err != nil {
		t.Fatal(err)
	}
	writePickupFile(t, dir, "b.json", `{"productCode": "B", "pickups": [{"locationName": "Stop B"}]}`)

	summary, err := idx.RefreshIndex()
	if err != nil {
		t.Fatalf("second RefreshIndex: %v", err)
	}
	if summary.TotalProducts != 1 || summary.ProductsWithPickups != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, ok := idx.lookup("A"); ok {
		t.Fatal("stale product survived the rebuild")
	}
	if _, ok := idx.lookup("B"); !ok {
		t.Fatal("product B missing after rebuild")
	}
}
