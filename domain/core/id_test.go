package core

import (
	"errors"
	"testing"
	"time"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	if !ID("").IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}
	if ID("not-empty").IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

// TestParseRegionID tests region ID parsing and trimming
func TestParseRegionID(t *testing.T) {
	tests := []struct {
		input    string
		expected RegionID
		hasError bool
	}{
		{"Region_A", RegionID("Region_A"), false},
		{"  Region_B ", RegionID("Region_B"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseRegionID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

func TestTimestampStringSortable(t *testing.T) {
	earlier := NewTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC))
	later := NewTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 7, time.UTC))
	if !(earlier.String() < later.String()) {
		t.Errorf("Expected %s < %s", earlier.String(), later.String())
	}
}

func TestFieldErrorClassification(t *testing.T) {
	err := NewValidationError("temperature", "must be finite")
	if !IsValidationError(err) {
		t.Error("Expected validation error")
	}
	if IsSpecError(err) {
		t.Error("Validation error should not be a spec error")
	}
	if FieldOf(err) != "temperature" {
		t.Errorf("Expected field temperature, got %q", FieldOf(err))
	}

	spec := NewSpecError(ErrDegenerateBounds, "voltage", "lower >= upper")
	if !IsSpecError(spec) || !errors.Is(spec, ErrDegenerateBounds) {
		t.Error("Expected degenerate bounds spec error")
	}
}

func TestTimestampStringFixedWidth(t *testing.T) {
	whole := NewTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	fraction := NewTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 500, time.UTC))
	if whole.String() != "2026-01-02T03:04:05.000000000Z" {
		t.Errorf("Unexpected format %s", whole.String())
	}
	if !(whole.String() < fraction.String()) {
		t.Errorf("Expected %s < %s", whole.String(), fraction.String())
	}
}
