package core

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func TestPopulationCache_RoundTrip(t *testing.T) {
	input, err := BuildSyntheticPopulation("E07", BuilderOptions{
		Areas:            2,
		ResidentsPerArea: 40,
		Seed:             13,
	})
	if err != nil {
		t.Fatalf("BuildSyntheticPopulation: %v", err)
	}

	path := filepath.Join(t.TempDir(), "pop.cache")
	if err := SavePopulation(path, input); err != nil {
		t.Fatalf("SavePopulation: %v", err)
	}
	loaded, err := LoadPopulation(path)
	if err != nil {
		t.Fatalf("LoadPopulation: %v", err)
	}

	if loaded.Region != input.Region || loaded.Seed != input.Seed {
		t.Fatalf("header fields lost: %q/%d", loaded.Region, loaded.Seed)
	}
	if len(loaded.Areas) != len(input.Areas) || len(loaded.Citizens) != len(input.Citizens) {
		t.Fatalf("loaded %d areas, %d citizens", len(loaded.Areas), len(loaded.Citizens))
	}
	for i := range input.Citizens {
		a, b := &input.Citizens[i], &loaded.Citizens[i]
		if a.ID != b.ID || a.Household != b.Household || a.Schedule != b.Schedule || a.Status != b.Status {
			t.Fatalf("citizen %d does not round-trip", i)
		}
	}

	// The reloaded population must construct cleanly.
	if _, err := NewSimulator(loaded, Config{}); err != nil {
		t.Fatalf("NewSimulator on reloaded population: %v", err)
	}
}

func TestPopulationCache_VersionMismatch(t *testing.T) {
	input, err := BuildSyntheticPopulation("E07", BuilderOptions{Areas: 1, ResidentsPerArea: 8, Seed: 1})
	if err != nil {
		t.Fatalf("BuildSyntheticPopulation: %v", err)
	}
	var buf bytes.Buffer
	if err := writePopulation(&buf, input); err != nil {
		t.Fatalf("writePopulation: %v", err)
	}

	blob := buf.Bytes()
	blob[6] = 0xFF // corrupt the version tag

	if _, err := readPopulation(bytes.NewReader(blob)); !errors.Is(err, ErrCacheVersion) {
		t.Fatalf("err = %v, want ErrCacheVersion", err)
	}
}

func TestPopulationCache_RejectsForeignBlob(t *testing.T) {
	if _, err := readPopulation(bytes.NewReader([]byte("not a cache file at all"))); err == nil {
		t.Fatalf("expected error for foreign blob")
	}
}
