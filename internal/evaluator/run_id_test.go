package evaluator

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

// TestFormatRunID verifies the run ID format.
func TestFormatRunID(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	got := FormatRunID(now, "abcdef")
	if got != "20250102T030405Z-abcdef" {
		t.Fatalf("unexpected run id: %s", got)
	}
}

// TestNewRunIDWithRand verifies the suffix comes from the leading random bytes
// and the timestamp is normalized to UTC.
func TestNewRunIDWithRand(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	seed := bytes.Repeat([]byte{0xff}, 16)
	copy(seed, []byte{1, 2, 3, 4, 5, 6})
	got, err := NewRunIDWithRand(now, bytes.NewReader(seed))
	if err != nil {
		t.Fatalf("new run id: %v", err)
	}
	if got != "20250102T020405Z-010203040506" {
		t.Fatalf("unexpected run id: %s", got)
	}
	if _, err := NewRunIDWithRand(now, strings.NewReader("ab")); err == nil {
		t.Fatalf("expected short reader to fail")
	}
	if _, err := NewRunIDWithRand(now, nil); err == nil {
		t.Fatalf("expected nil reader to fail")
	}
}

// TestOutputPaths verifies run output layout.
func TestOutputPaths(t *testing.T) {
	if _, err := NewOutputPaths("", "run"); err == nil {
		t.Fatalf("expected empty root to fail")
	}
	paths, err := NewOutputPaths("/tmp/out", "run-1")
	if err != nil {
		t.Fatalf("new output paths: %v", err)
	}
	if paths.ResultsPath("test") != "/tmp/out/run-1/results/test.json" {
		t.Fatalf("unexpected results path: %s", paths.ResultsPath("test"))
	}
	if paths.LogPath("test.log") != "/tmp/out/run-1/logs/test.log" {
		t.Fatalf("unexpected log path: %s", paths.LogPath("test.log"))
	}
}
