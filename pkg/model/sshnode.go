package model

import "time"

// MaxSSHNodesPerUser is the per-user node quota (spec §4.7, §8).
const MaxSSHNodesPerUser = 8

// SSHAuthType selects how Run authenticates to a node.
type SSHAuthType string

const (
	SSHAuthPassword   SSHAuthType = "password"
	SSHAuthPrivateKey SSHAuthType = "private_key"
)

// SSHNode is a registered server a session's agent (or the user
// directly) may SSH into.
type SSHNode struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Name            string      `json:"name"`
	SSHEnabled      bool        `json:"ssh_enabled"`
	SSHHost         string      `json:"ssh_host"`
	SSHPort         int         `json:"ssh_port"`
	SSHUsername     string      `json:"ssh_username"`
	SSHAuthType     SSHAuthType `json:"ssh_auth_type"`
	SSHPassword     string      `json:"ssh_password,omitempty"`
	SSHPrivateKey   string      `json:"ssh_private_key,omitempty"`
	SSHPassphrase   string      `json:"ssh_passphrase,omitempty"`
	SSHRequireApproval bool     `json:"ssh_require_approval"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// DefaultSSHPort is used when a node's SSHPort is unset.
const DefaultSSHPort = 22

// ActorType names who issued an SSH operation.
type ActorType string

const (
	ActorUser      ActorType = "user"
	ActorAssistant ActorType = "assistant"
)

// OperationSource distinguishes a direct user takeover from an
// AI-issued command that was approved.
type OperationSource string

const (
	SourceDirect   OperationSource = "direct"
	SourceAI       OperationSource = "ai"
	SourceApproval OperationSource = "approval"
)

// SSHOperationLog records one command execution against a node,
// regardless of actor or outcome.
type SSHOperationLog struct {
	ID        string          `json:"id"`
	NodeID    string          `json:"node_id"`
	ActorType ActorType       `json:"actor_type"`
	Source    OperationSource `json:"source"`
	Command   string          `json:"command"`
	Output    string          `json:"output"`
	Success   bool            `json:"success"`
	CreatedAt time.Time       `json:"created_at"`
}

// ApprovalStatus is the lifecycle of one SSHCommandApproval.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// SSHCommandApproval is a pending record representing an AI-issued SSH
// command awaiting a user decision (spec Glossary). A Pending approval
// transitions at most once (spec §8).
type SSHCommandApproval struct {
	ID                  string         `json:"id"`
	NodeID              string         `json:"node_id"`
	SessionID           string         `json:"session_id"`
	Command             string         `json:"command"`
	Status              ApprovalStatus `json:"status"`
	RequestedByToolCallID string       `json:"requested_by_tool_call_id"`
	CreatedAt           time.Time      `json:"created_at"`
	DecidedAt           *time.Time     `json:"decided_at,omitempty"`
}

// NodeHealthStatus is the derived health of a node from its overview probe.
type NodeHealthStatus string

const (
	NodeHealthy  NodeHealthStatus = "healthy"
	NodeWarning  NodeHealthStatus = "warning"
	NodeCritical NodeHealthStatus = "critical"
)

// NodeOverview is the parsed, threshold-evaluated result of the
// canonical multi-probe SSH command (spec §4.7).
type NodeOverview struct {
	Hostname      string           `json:"hostname"`
	OSRelease     string           `json:"os_release"`
	Kernel        string           `json:"kernel"`
	Uptime        string           `json:"uptime"`
	LoadAverage1m float64          `json:"load_average_1m"`
	MemTotalKB    int64            `json:"mem_total_kb"`
	MemAvailKB    int64            `json:"mem_available_kb"`
	MemUsedPct    float64          `json:"mem_used_pct"`
	DiskUsedPct   float64          `json:"disk_used_pct"`
	Status        NodeHealthStatus `json:"status"`
}
