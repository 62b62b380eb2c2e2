package model

import "time"

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionWaiting   SessionStatus = "waiting"
	SessionCompleted SessionStatus = "completed"
)

// SessionType distinguishes an ordinary chat session from one created
// by the ticket dispatcher.
type SessionType string

const (
	SessionChat   SessionType = "chat"
	SessionTicket SessionType = "ticket"
)

// Session is one end-user conversation with an agent. Events is
// append-only in wall-clock and logical order; Files is keyed by
// FileID with FilePath unique within the session.
type Session struct {
	ID                 string        `json:"id"`
	UserID             string        `json:"user_id"`
	AgentID            string        `json:"agent_id"`
	SandboxID          string        `json:"sandbox_id,omitempty"`
	TaskID             string        `json:"task_id,omitempty"`
	Title              string        `json:"title,omitempty"`
	Events             []Event       `json:"events"`
	Files              []FileInfo    `json:"files"`
	Status             SessionStatus `json:"status"`
	SessionType        SessionType   `json:"session_type"`
	IsShared           bool          `json:"is_shared"`
	UnreadMessageCount int           `json:"unread_message_count"`
	LatestMessage      string        `json:"latest_message,omitempty"`
	LatestMessageAt    *time.Time    `json:"latest_message_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// NewSession allocates a fresh, Pending session for userID bound to
// agentID.
func NewSession(id, userID, agentID string, sessionType SessionType) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          id,
		UserID:      userID,
		AgentID:     agentID,
		Status:      SessionPending,
		SessionType: sessionType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// FileByPath performs the linear scan the spec requires for
// get_file_by_path.
func (s *Session) FileByPath(path string) (*FileInfo, bool) {
	for i := range s.Files {
		if s.Files[i].FilePath == path {
			return &s.Files[i], true
		}
	}
	return nil, false
}

// FileByID performs the linear scan sync_to_sandbox needs to recover a
// previously uploaded attachment's filename (spec §4.5).
func (s *Session) FileByID(id string) (*FileInfo, bool) {
	for i := range s.Files {
		if s.Files[i].FileID == id {
			return &s.Files[i], true
		}
	}
	return nil, false
}

// LastPlan scans Events in reverse for the most recently recorded
// Plan, the Plan–Act Flow's resume/cold-start source of truth
// (original_source's session.get_last_plan()).
func (s *Session) LastPlan() *Plan {
	for i := len(s.Events) - 1; i >= 0; i-- {
		if s.Events[i].Type == EventPlan && s.Events[i].Plan != nil {
			return s.Events[i].Plan
		}
	}
	return nil
}
