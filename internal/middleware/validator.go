package middleware

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ValidateLimit parses a pagination limit, defaulting to 20 and capping at 100.
func ValidateLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// ValidatePassID checks that id is a UUID as issued for regeneration passes.
func ValidatePassID(id string) error {
	if id == "" {
		return fmt.Errorf("pass ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid pass ID format")
	}
	return nil
}
