package geocode

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	pkgerrors "github.com/locationup/locationup-go/pkg/errors"
)

type fakeLookup struct {
	mu     sync.Mutex
	calls  int
	coords Coordinates
	err    error
}

func (f *fakeLookup) Lookup(ctx context.Context, city string) (Coordinates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Coordinates{}, f.err
	}
	return f.coords, nil
}

func (f *fakeLookup) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStorage struct {
	mu      sync.Mutex
	blob    string
	loadErr error
	saveErr error
	saves   int
}

func (f *fakeStorage) Load(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return "", f.loadErr
	}
	return f.blob, nil
}

func (f *fakeStorage) Save(ctx context.Context, blob string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.blob = blob
	return nil
}

func TestCacheIdempotence(t *testing.T) {
	ctx := context.Background()
	lookup := &fakeLookup{coords: Coordinates{Lat: 48.8566, Lng: 2.3522}}
	cache, err := NewCache(ctx, lookup, &fakeStorage{})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	first, ok := cache.Geocode(ctx, "Paris")
	if !ok {
		t.Fatal("expected first lookup to resolve")
	}
	second, ok := cache.Geocode(ctx, "Paris")
	if !ok {
		t.Fatal("expected second lookup to resolve")
	}
	if first != second {
		t.Fatalf("cached result drifted: %v vs %v", first, second)
	}
	if got := lookup.callCount(); got != 1 {
		t.Fatalf("expected exactly one upstream request, got %d", got)
	}
}

func TestCacheNormalizedVariantsShareEntry(t *testing.T) {
	ctx := context.Background()
	lookup := &fakeLookup{coords: Coordinates{Lat: 45.5019, Lng: -73.5674}}
	cache, err := NewCache(ctx, lookup, &fakeStorage{})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	for _, city := range []string{"Montréal", " montreal ", "MONTREAL"} {
		if _, ok := cache.Geocode(ctx, city); !ok {
			t.Fatalf("expected %q to resolve", city)
		}
	}
	if got := lookup.callCount(); got != 1 {
		t.Fatalf("expected one upstream request across variants, got %d", got)
	}
	if got := cache.Size(); got != 1 {
		t.Fatalf("expected one cache entry, got %d", got)
	}
}

func TestCacheLookupFailureDegradesToNoResult(t *testing.T) {
	ctx := context.Background()
	lookup := &fakeLookup{err: pkgerrors.New(pkgerrors.CodeDependency, "upstream down")}
	storage := &fakeStorage{}
	cache, err := NewCache(ctx, lookup, storage)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	if _, ok := cache.Geocode(ctx, "Paris"); ok {
		t.Fatal("expected failed lookup to report no result")
	}
	if got := cache.Size(); got != 0 {
		t.Fatalf("failed lookup must not populate the cache, got %d entries", got)
	}

	// The failure is not cached either: the next call retries upstream.
	lookup.mu.Lock()
	lookup.err = nil
	lookup.coords = Coordinates{Lat: 48.8566, Lng: 2.3522}
	lookup.mu.Unlock()
	if _, ok := cache.Geocode(ctx, "Paris"); !ok {
		t.Fatal("expected retry after transient failure to resolve")
	}
	if got := lookup.callCount(); got != 2 {
		t.Fatalf("expected two upstream requests, got %d", got)
	}
}

func TestCacheEmptyKeySkipsNetwork(t *testing.T) {
	ctx := context.Background()
	lookup := &fakeLookup{coords: Coordinates{Lat: 1, Lng: 2}}
	cache, err := NewCache(ctx, lookup, &fakeStorage{})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	for _, city := range []string{"", "   "} {
		if _, ok := cache.Geocode(ctx, city); ok {
			t.Fatalf("expected no result for %q", city)
		}
	}
	if got := lookup.callCount(); got != 0 {
		t.Fatalf("blank city names must not reach upstream, got %d calls", got)
	}
}

func TestCachePersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	storage := &fakeStorage{}
	lookup := &fakeLookup{coords: Coordinates{Lat: 48.8566, Lng: 2.3522}}

	cache, err := NewCache(ctx, lookup, storage)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	want, ok := cache.Geocode(ctx, "Paris")
	if !ok {
		t.Fatal("expected lookup to resolve")
	}
	if storage.saves == 0 {
		t.Fatal("expected a durable write after the miss")
	}

	// A fresh cache over the same storage serves the entry without upstream.
	reloaded, err := NewCache(ctx, &fakeLookup{err: pkgerrors.New(pkgerrors.CodeDependency, "must not be called")}, storage)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	got, ok := reloaded.Geocode(ctx, "Paris")
	if !ok {
		t.Fatal("expected reloaded cache to serve the entry")
	}
	if got != want {
		t.Fatalf("reloaded entry drifted: %v vs %v", got, want)
	}
}

func TestCacheToleratesCorruptBlob(t *testing.T) {
	ctx := context.Background()
	storage := &fakeStorage{blob: "{not json"}
	cache, err := NewCache(ctx, &fakeLookup{coords: Coordinates{Lat: 1, Lng: 2}}, storage)
	if err != nil {
		t.Fatalf("NewCache with corrupt blob: %v", err)
	}
	if got := cache.Size(); got != 0 {
		t.Fatalf("corrupt blob must yield an empty cache, got %d entries", got)
	}
	if _, ok := cache.Geocode(ctx, "Paris"); !ok {
		t.Fatal("expected lookup to resolve after corrupt blob")
	}
}

func TestCacheToleratesLoadFailure(t *testing.T) {
	ctx := context.Background()
	storage := &fakeStorage{loadErr: pkgerrors.New(pkgerrors.CodeDependency, "redis down")}
	cache, err := NewCache(ctx, &fakeLookup{coords: Coordinates{Lat: 1, Lng: 2}}, storage)
	if err != nil {
		t.Fatalf("NewCache with failing load: %v", err)
	}
	if _, ok := cache.Geocode(ctx, "Paris"); !ok {
		t.Fatal("expected lookup to resolve despite load failure")
	}
}

func TestCacheSaveFailureStillServesMemory(t *testing.T) {
	ctx := context.Background()
	storage := &fakeStorage{saveErr: pkgerrors.New(pkgerrors.CodeDependency, "redis down")}
	lookup := &fakeLookup{coords: Coordinates{Lat: 48.8566, Lng: 2.3522}}
	cache, err := NewCache(ctx, lookup, storage)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	if _, ok := cache.Geocode(ctx, "Paris"); !ok {
		t.Fatal("expected lookup to resolve despite save failure")
	}
	if _, ok := cache.Geocode(ctx, "Paris"); !ok {
		t.Fatal("expected in-memory hit despite save failure")
	}
	if got := lookup.callCount(); got != 1 {
		t.Fatalf("expected one upstream request, got %d", got)
	}
}

func TestCacheBlobShape(t *testing.T) {
	ctx := context.Background()
	storage := &fakeStorage{}
	cache, err := NewCache(ctx, &fakeLookup{coords: Coordinates{Lat: 48.8566, Lng: 2.3522}}, storage)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if _, ok := cache.Geocode(ctx, " Été "); !ok {
		t.Fatal("expected lookup to resolve")
	}

	var entries map[string]Coordinates
	if err := json.Unmarshal([]byte(storage.blob), &entries); err != nil {
		t.Fatalf("persisted blob is not a JSON object: %v", err)
	}
	if _, ok := entries["ete"]; !ok {
		t.Fatalf("expected blob keyed by normalized name, got %v", entries)
	}
}
