package models

import "time"

// Recording is the stored metadata for an uploaded session recording. The
// session lifecycle never writes these rows; the recording service labels them
// with the session id/name it was handed.
type Recording struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	FilePath     string    `json:"-"`
	Size         int64     `json:"size"`
	SessionID    *int64    `json:"sessionId,omitempty"`
	SessionName  string    `json:"sessionName,omitempty"`
	Status       string    `json:"status"`
	StorageType  string    `json:"storageType"`
	CreatedAt    time.Time `json:"createdAt"`
}
