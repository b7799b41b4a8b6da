package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseArgs(t *testing.T) {
	var stderr bytes.Buffer
	a, err := parseArgs([]string{"--directory=/tmp/data", "--simulate", "--use-cache", "--seed=7", "E07000001"}, &stderr)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if a.region != "E07000001" || a.directory != "/tmp/data" || !a.simulate || !a.useCache || a.seed != 7 {
		t.Fatalf("parsed arguments = %+v", a)
	}
}

func TestParseArgs_RequiresRegion(t *testing.T) {
	var stderr bytes.Buffer
	if _, err := parseArgs([]string{"--simulate"}, &stderr); err == nil {
		t.Fatalf("expected error without region code")
	}
}

// TestRun_EndToEnd exercises the full driver: a scenario file, a
// simulated run and the statistics outputs.
func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	scenario := `{
  "region": "tiny",
  "seed": 9,
  "disease": {"exposure_chance": 1.0, "death_rate": 0, "exposed_time": 2, "infected_time": 2, "max_time_step": 12},
  "areas": [{"code": "A1", "centroid": [0, 0], "buildings": [{"kind": "household"}]}],
  "citizens": [
    {"age": 30, "household": {"area": "A1", "local": 0}},
    {"age": 32, "household": {"area": "A1", "local": 0}},
    {"age": 8,  "household": {"area": "A1", "local": 0}, "infected": true}
  ],
  "initial_infected": 0
}`
	if err := os.WriteFile(filepath.Join(dir, "tiny.json"), []byte(scenario), 0o644); err != nil {
		t.Fatalf("writing scenario: %v", err)
	}

	out := filepath.Join(dir, "run")
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"--directory=" + dir,
		"--simulate",
		"--progress=false",
		"--output_name=" + out,
		"tiny",
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("run exited %d\nstdout: %s\nstderr: %s", code, stdout.String(), stderr.String())
	}

	stats, err := os.ReadFile(out + "_statistics.csv")
	if err != nil {
		t.Fatalf("statistics output missing: %v", err)
	}
	if !strings.HasPrefix(string(stats), "tick,susceptible,") {
		t.Fatalf("statistics csv malformed:\n%s", stats)
	}
	summary, err := os.ReadFile(out + "_summary.txt")
	if err != nil {
		t.Fatalf("summary output missing: %v", err)
	}
	if !strings.Contains(string(summary), "A1") {
		t.Fatalf("summary does not mention the exposed area:\n%s", summary)
	}
}

func TestRun_UseCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	// First run builds a synthetic population and writes the cache.
	code := run([]string{"--directory=" + dir, "--use-cache", "--seed=4", "REG"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("first run exited %d: %s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "REG_population.cache")); err != nil {
		t.Fatalf("population cache not written: %v", err)
	}

	// Second run loads it.
	stdout.Reset()
	code = run([]string{"--directory=" + dir, "--use-cache", "--seed=4", "REG"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("second run exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Loaded region REG") {
		t.Fatalf("unexpected stdout: %s", stdout.String())
	}
}

func TestRun_BadFlagsExitNonZero(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--no-such-flag"}, &stdout, &stderr); code == 0 {
		t.Fatalf("bad flags should exit non-zero")
	}
}
