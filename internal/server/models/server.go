// Package models defines server-side data models persisted in the database.
package models

import "time"

// Server is a tenant application that brokers access for its users and files.
//
// Rev is the content hash used for optimistic concurrency control: it is
// recomputed on every successful create/update and must be echoed back
// unchanged by clients on the next update. LastConnection and the two
// timestamps are volatile and never participate in the hash.
type Server struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Password       string     `json:"password,omitempty"`
	LastConnection *time.Time `json:"last_connection,omitempty"`
	CreatedTime    time.Time  `json:"created_time"`
	UpdatedTime    time.Time  `json:"updated_time"`
	Rev            string     `json:"_rev,omitempty"`
}
