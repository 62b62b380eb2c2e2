package model

import "time"

// FileInfo describes one attachment. The sandbox owns files by
// FilePath; the storage layer owns files by FileID; the session holds
// both keys and the Task Runner reconciles them (spec §3, §4.5).
type FileInfo struct {
	FileID      string         `json:"file_id"`
	Filename    string         `json:"filename"`
	FilePath    string         `json:"file_path,omitempty"`
	Size        int64          `json:"size"`
	ContentType string         `json:"content_type,omitempty"`
	UploadDate  time.Time      `json:"upload_date"`
	UserID      string         `json:"user_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ToolResult is the uniform return value of every tool invocation.
type ToolResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}
