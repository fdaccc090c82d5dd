package model

import (
	"fmt"
	"time"
)

type LogType string

const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogWarning LogType = "warning"
	LogError   LogType = "error"
)

// SystemSource marks orchestrator-level entries excluded from archived agent conversations.
const SystemSource = "System"

// LogEntry is one line of the user-visible running log feed.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Type      LogType   `json:"type"`
}

func (e LogEntry) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format(time.RFC3339), e.Source, e.Message)
}
