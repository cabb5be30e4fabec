package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// v7 keeps history keys sortable by creation time
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RequestID ID
	RegionID  ID
)

// String conversions for domain IDs
func (id RequestID) String() string { return ID(id).String() }
func (id RegionID) String() string  { return ID(id).String() }

// NewRequestID creates a fresh request identifier
func NewRequestID() RequestID {
	return RequestID(NewID())
}

// ParseRequestID parses a string into RequestID
func ParseRequestID(s string) (RequestID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("request ID cannot be empty")
	}
	return RequestID(s), nil
}

// ParseRegionID parses a string into RegionID
func ParseRegionID(s string) (RegionID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("region ID cannot be empty")
	}
	return RegionID(trimmed), nil
}
