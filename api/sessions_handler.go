package api

import (
	"net/http"
	"sort"
)

// ListSessions handles GET /auth/sessions (admin only). It reports the
// active session records with their pads redacted, oldest first.
func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	records := a.sessions.List()
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Created.Equal(records[j].Created) {
			return records[i].Created.Before(records[j].Created)
		}
		return records[i].SessionID < records[j].SessionID
	})

	limit, offset := parsePagination(r)
	start, end, meta := paginateSlice(len(records), limit, offset)

	summaries := make([]SessionSummary, 0, end-start)
	for _, rec := range records[start:end] {
		summaries = append(summaries, SessionSummary{
			SessionID:    rec.SessionID,
			Username:     rec.Username,
			Created:      rec.Created,
			ExpiresAt:    rec.ExpiresAt,
			LastAccess:   rec.LastAccess,
			LastOriginIP: rec.LastOriginIP,
		})
	}

	a.audit.log(AuditSessionsListed, r)
	writeJSON(w, http.StatusOK, ListSessionsResponse{
		Sessions:       summaries,
		PaginationMeta: meta,
	})
}
