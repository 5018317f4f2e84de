package models

import "time"

// File describes metadata for a binary payload owned by a server. The payload
// itself lives in object storage under StorageKey.
type File struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ServerID    int64     `json:"server_id"`
	StorageKey  string    `json:"storage_key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedTime time.Time `json:"created_time"`
	UpdatedTime time.Time `json:"updated_time"`
	Rev         string    `json:"_rev,omitempty"`
}
