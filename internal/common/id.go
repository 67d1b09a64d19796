package common

import (
	"github.com/google/uuid"
)

// NewID generates a unique identifier for a stored entity.
func NewID() string {
	return uuid.New().String()
}
