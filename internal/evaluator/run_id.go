package evaluator

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Run IDs sort by start time: UTC timestamp, then 12 hex digits of a random UUID.
const runIDLayout = "20060102T150405Z"

// NewRunID returns an ID for a run starting now.
func NewRunID() (string, error) {
	return NewRunIDWithRand(time.Now(), rand.Reader)
}

// NewRunIDWithRand draws the suffix from r.
func NewRunIDWithRand(now time.Time, r io.Reader) (string, error) {
	if r == nil {
		return "", errors.New("run id: nil random source")
	}
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return "", fmt.Errorf("run id: %w", err)
	}
	return FormatRunID(now, hex.EncodeToString(id[:6])), nil
}

func FormatRunID(now time.Time, suffix string) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format(runIDLayout), suffix)
}
