// Package domain holds the entity model shared by stores, services, and
// transport. Structs mirror the persisted schema; behavior lives in the
// owning packages.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ID is an opaque entity identifier.
type ID = uuid.UUID

// NewID mints a fresh identifier.
func NewID() ID { return uuid.New() }

// Clock abstracts time.Now so tests control the timeline.
type Clock func() time.Time

// Date normalizes a timestamp to a calendar date (UTC midnight). Check dates
// and due dates are calendar dates; comparing them at UTC midnight keeps
// day arithmetic exact.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
