// Package action defines the typed, executable units of work derived from a
// generated file map, and the parser that produces them.
package action

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminates the action union.
type Type string

const (
	TypeWriteFile  Type = "write_file"
	TypeDeleteFile Type = "delete_file"
	TypeInstall    Type = "install"
	TypeRun        Type = "run"
	TypePreview    Type = "preview"
	TypeDeploy     Type = "deploy"
)

// WriteMode qualifies a write_file action.
type WriteMode string

const (
	WriteCreate    WriteMode = "create"
	WriteUpdate    WriteMode = "update"
	WriteOverwrite WriteMode = "overwrite"
)

// Action is one discrete, executable unit of work. Actions are created once
// per parse, are immutable, and are consumed exactly once by an executor.
// Exactly one of the payload fields corresponding to Type is populated.
type Action struct {
	Type      Type   `json:"type"`
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`

	// write_file / delete_file
	Path    string    `json:"path,omitempty"`
	Content string    `json:"content,omitempty"`
	Mode    WriteMode `json:"mode,omitempty"`

	// install
	Packages       []string `json:"packages,omitempty"`
	PackageManager string   `json:"packageManager,omitempty"`

	// run
	Command string            `json:"command,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// preview
	Port int    `json:"port,omitempty"`
	URL  string `json:"url,omitempty"`

	// deploy
	Platform string            `json:"platform,omitempty"`
	Config   map[string]string `json:"config,omitempty"`
}

// Result is the executor's per-action outcome, correlated by action id. The
// executor attaches an outcome but never mutates the action itself.
type Result struct {
	ActionID string            `json:"actionId"`
	Success  bool              `json:"success"`
	Output   string            `json:"output,omitempty"`
	Error    string            `json:"error,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EventType discriminates UI-facing progress events.
type EventType string

const (
	EventChat       EventType = "chat"
	EventFileCreate EventType = "file:create"
	EventFileUpdate EventType = "file:update"
	EventCommand    EventType = "command"
)

// Event is a UI projection of the action list. Events are derived
// deterministically and carry no independent state.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
	Path    string    `json:"path,omitempty"`
	Cmd     string    `json:"cmd,omitempty"`
	Status  string    `json:"status,omitempty"`
}

func newID() string {
	return uuid.NewString()
}

func now() int64 {
	return time.Now().UnixMilli()
}
