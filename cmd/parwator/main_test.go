package main

import "testing"

func TestParseFlagsRequiresDimensions(t *testing.T) {
	if _, err := parseFlags([]string{"--itercnt", "5"}); err == nil {
		t.Fatal("expected an error when --width/--height are omitted")
	}
}

func TestParseFlagsAppliesDefaultPopulation(t *testing.T) {
	cfg, err := parseFlags([]string{"--width", "100", "--height", "100", "--itercnt", "1"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.fish != 1000 {
		t.Fatalf("default fish = %d, want 1000 (w*h/10)", cfg.fish)
	}
	if cfg.shark != 333 {
		t.Fatalf("default shark = %d, want 333 (w*h/30)", cfg.shark)
	}
}

func TestParseFlagsDefaultPopulationFloorsAtOne(t *testing.T) {
	cfg, err := parseFlags([]string{"--width", "2", "--height", "2", "--itercnt", "1"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.fish != 1 || cfg.shark != 1 {
		t.Fatalf("default population = fish=%d shark=%d, want 1/1 for a tiny grid", cfg.fish, cfg.shark)
	}
}

func TestParseFlagsHonorsExplicitSeed(t *testing.T) {
	cfg, err := parseFlags([]string{"--width", "10", "--height", "10", "--itercnt", "1", "--seed", "42"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.seed != 42 {
		t.Fatalf("seed = %d, want 42", cfg.seed)
	}
}

func TestParseFlagsRejectsOversizedPopulation(t *testing.T) {
	if _, err := parseFlags([]string{"--width", "10", "--height", "10", "--itercnt", "1", "--fish", "99999999999"}); err == nil {
		t.Fatal("expected an error for a fish count exceeding a 32-bit cell count")
	}
}
