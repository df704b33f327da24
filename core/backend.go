package core

import (
	"context"
	"time"
)

// Priority orders backend requests in the scheduler queue. Higher values
// dispatch first; equal priorities dispatch in arrival order.
type Priority = int

// Common priority levels. Callers may use any int; these name the usual tiers.
const (
	PriorityBackground Priority = 1
	PriorityRoutine    Priority = 3
	PriorityElevated   Priority = 5
	PriorityUrgent     Priority = 8
)

// BackendRequest is the structured or free-text payload sent to the
// reasoning backend. The exact prompt wording is a caller concern; the
// scheduler treats the payload as opaque.
type BackendRequest struct {
	System    string `json:"system,omitempty"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// TokenUsage captures token accounting for one backend response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// BackendResponse is the backend's answer: raw text plus optional structured
// fields extracted by the adapter. Latency is filled by the scheduler.
type BackendResponse struct {
	Text    string         `json:"text"`
	Fields  map[string]any `json:"fields,omitempty"`
	Usage   TokenUsage     `json:"usage"`
	Latency time.Duration  `json:"latency"`
}

// ReasoningBackend is the external model dependency. Calls may fail with a
// RateLimitError carrying a retry-after duration, or with any transient
// error; latency is variable. Implementations live under backend/.
type ReasoningBackend interface {
	Complete(ctx context.Context, req BackendRequest) (*BackendResponse, error)
}
