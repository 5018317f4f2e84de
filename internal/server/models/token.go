package models

// TokenRecord is the persisted token for a single owner (server or user).
// At most one record exists per owner; regeneration replaces the token in
// place via upsert rather than inserting a second row.
type TokenRecord struct {
	ID      int64
	OwnerID int64
	Token   string
}
