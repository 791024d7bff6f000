package api

import "time"

// SessionStore abstracts escrow-record CRUD so that sessions can live
// in-memory (default) or as one durable record per key.
type SessionStore interface {
	// Get retrieves a record by session id, updating its last-access
	// stamp. Returns false if the record does not exist or has
	// expired; expired records are treated as absent even before the
	// next sweep removes them.
	Get(id string) (SessionRecord, bool)
	// Put creates or replaces the record for a session id.
	Put(id string, rec SessionRecord)
	// Delete removes a record. Deleting an absent id is not an error.
	Delete(id string)
	// List returns all non-expired records, in no particular order.
	List() []SessionRecord
}

// SessionRecord is the server-side half of an escrowed credential: the
// pad that, combined with the client-held token, recovers the original
// username and password.
type SessionRecord struct {
	SessionID          string    `json:"session_id"`
	Created            time.Time `json:"created"`
	ExpiresAt          time.Time `json:"expires_at"`
	Pad                string    `json:"pad"`
	LastAccess         time.Time `json:"last_access"`
	LastOriginIP       string    `json:"last_origin_ip"`
	Username           string    `json:"username"`
	DeleteUserOnExpiry bool      `json:"delete_user_on_expiry"`
}

// defaultSweepInterval rate-limits the opportunistic eviction sweep.
// Eviction is advisory cleanup; Get already treats expired records as
// absent in between sweeps.
const defaultSweepInterval = 24 * time.Hour

// EvictHook is called with the id of every record removed by expiry,
// sweep, or Delete, so per-session auxiliary storage can be released.
type EvictHook func(id string)
