package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/prrrssa/sarsabz/internal/exchange"
)

// handleAuditLog reads the audit trail. Query params: entity, action, user_id,
// from, to (RFC 3339).
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := exchange.AuditFilter{
		Entity: exchange.AuditEntity(q.Get("entity")),
		Action: exchange.AuditAction(q.Get("action")),
	}
	if v := q.Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			badRequest(w, "invalid user_id")
			return
		}
		filter.UserID = id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(w, "invalid from timestamp")
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(w, "invalid to timestamp")
			return
		}
		filter.To = t
	}

	entries, err := s.audit.AuditLog(r.Context(), filter)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAuditEntryResponse(e))
	}
	toJSON(w, http.StatusOK, out)
}
