package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApiKey authenticates to exactly one Account. Only the hash of the
// secret half and a short non-secret preview are stored; the full
// secret is returned to the caller once, at creation.
type ApiKey struct {
	ID         uuid.UUID
	AccountID  int64
	KeyHash    string
	KeyPreview string
	Name       string
	Enabled    bool
	CreatedAt  time.Time
	LastUsedAt *time.Time
}
