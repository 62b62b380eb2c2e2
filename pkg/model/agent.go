package model

import "time"

// Message is one turn in an agent's rolling memory for a given slot.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Agent is the LLM-configured persona + memory used by one Session.
// Memories are keyed by role name ("planner", "execution") and mutated
// in place by the agents that own those slots.
type Agent struct {
	ID          string               `json:"id"`
	ModelName   string               `json:"model_name"`
	Temperature float32              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Memories    map[string][]Message `json:"memories"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// NewAgent builds an Agent with empty memory slots from LLM defaults.
func NewAgent(id, modelName string, temperature float32, maxTokens int) *Agent {
	now := time.Now().UTC()
	return &Agent{
		ID:          id,
		ModelName:   modelName,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Memories:    make(map[string][]Message),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Memory returns the message slice for the named slot, or nil if the
// slot has no messages yet; the map is not modified.
func (a *Agent) Memory(slot string) []Message {
	return a.Memories[slot]
}

// AppendMemory appends msg to the named slot and bumps UpdatedAt.
func (a *Agent) AppendMemory(slot string, msg Message) {
	a.Memories[slot] = append(a.Memories[slot], msg)
	a.UpdatedAt = time.Now().UTC()
}

// SetMemory replaces the named slot wholesale (used by compaction and
// rollback).
func (a *Agent) SetMemory(slot string, msgs []Message) {
	a.Memories[slot] = msgs
	a.UpdatedAt = time.Now().UTC()
}
