package models

import "time"

// ArchiveInfo is metadata about an uploaded support archive.
type ArchiveInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "analyzing", "error"
}
