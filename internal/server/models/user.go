package models

import "time"

// User is a person account. Admin users operate the system; application
// (non-admin) users belong to end applications and get short-lived tokens.
type User struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Password       string     `json:"password,omitempty"`
	IsAdmin        bool       `json:"is_admin"`
	LastConnection *time.Time `json:"last_connection,omitempty"`
	CreatedTime    time.Time  `json:"created_time"`
	UpdatedTime    time.Time  `json:"updated_time"`
	Rev            string     `json:"_rev,omitempty"`
}
