package runner

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/opsforge/agentcore/pkg/model"
)

// uploadDir is the sandbox path sync_to_sandbox writes attachments
// under, matching original_source's hardcoded "/home/ubuntu/upload/"
// (spec §4.5).
const uploadDir = "/home/ubuntu/upload/"

// syncAttachmentsToSandbox downloads each fileID from storage into the
// sandbox's upload directory and returns the resulting sandbox-local
// paths, the form flow.Run's attachments argument expects. Best-effort
// per file: a failed download or write is logged and the file is
// dropped from the result rather than failing the whole message.
func (r *Runner) syncAttachmentsToSandbox(ctx context.Context, session *model.Session, fileIDs []string) []string {
	paths := make([]string, 0, len(fileIDs))
	for _, fileID := range fileIDs {
		if path, ok := r.syncFileToSandbox(ctx, session, fileID); ok {
			paths = append(paths, path)
		}
	}
	return paths
}

func (r *Runner) syncFileToSandbox(ctx context.Context, session *model.Session, fileID string) (string, bool) {
	filename := fileID
	if session != nil {
		if info, found := session.FileByID(fileID); found {
			filename = info.Filename
		}
	}

	rc, err := r.files.Download(ctx, fileID)
	if err != nil {
		r.log.Warn("sync to sandbox: download failed", "file_id", fileID, "error", err)
		return "", false
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		r.log.Warn("sync to sandbox: read failed", "file_id", fileID, "error", err)
		return "", false
	}

	path := uploadDir + filename
	if err := r.sandbox.WriteFile(ctx, path, data); err != nil {
		r.log.Warn("sync to sandbox: write failed", "file_id", fileID, "error", err)
		return "", false
	}

	info := model.FileInfo{
		FileID:     fileID,
		Filename:   filename,
		FilePath:   path,
		Size:       int64(len(data)),
		UploadDate: time.Now().UTC(),
		UserID:     r.userID,
	}
	if err := r.sessions.AddFile(ctx, r.sessionID, info); err != nil {
		r.log.Warn("sync to sandbox: record file failed", "file_id", fileID, "error", err)
	}
	return path, true
}

// syncFileToStorage reads path from the sandbox and uploads it under a
// fresh FileID, replacing any storage copy already recorded at that
// path (spec §4.5 sync_to_storage). Entirely best-effort: every
// failure is logged, never returned, so a missing or unreadable
// attachment never fails the tool/message event it is attached to —
// matching original_source's bare `except Exception: logger.exception`
// around the same operation.
func (r *Runner) syncFileToStorage(ctx context.Context, path string) {
	session, err := r.sessions.FindByID(ctx, r.sessionID)
	if err != nil {
		r.log.Warn("sync to storage: load session failed", "path", path, "error", err)
		return
	}

	data, err := r.sandbox.ReadFile(ctx, path)
	if err != nil {
		r.log.Warn("sync to storage: read failed", "path", path, "error", err)
		return
	}

	if session != nil {
		if existing, found := session.FileByPath(path); found {
			if err := r.files.Remove(ctx, existing.FileID); err != nil {
				r.log.Warn("sync to storage: remove stale copy failed", "file_id", existing.FileID, "error", err)
			}
			if err := r.sessions.RemoveFile(ctx, r.sessionID, existing.FileID); err != nil {
				r.log.Warn("sync to storage: forget stale copy failed", "file_id", existing.FileID, "error", err)
			}
		}
	}

	info, err := r.files.Upload(ctx, bytes.NewReader(data), filepath.Base(path), r.userID)
	if err != nil {
		r.log.Warn("sync to storage: upload failed", "path", path, "error", err)
		return
	}
	info.FilePath = path
	if err := r.sessions.AddFile(ctx, r.sessionID, *info); err != nil {
		r.log.Warn("sync to storage: record file failed", "path", path, "error", err)
	}
}
