package exchange

import (
	"time"

	"github.com/google/uuid"
)

// AuditFilter narrows audit log reads. Zero values match everything.
type AuditFilter struct {
	Entity AuditEntity
	Action AuditAction
	UserID uuid.UUID
	From   time.Time
	To     time.Time
}

// Matches reports whether the entry passes the filter.
func (f AuditFilter) Matches(e AuditLogEntry) bool {
	if f.Entity != "" && e.Entity != f.Entity {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.UserID != uuid.Nil && e.UserID != f.UserID {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}
