package models

import (
	"fmt"
	"time"
)

// Status records how a history entry finished
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusUnknown Status = "unknown"
)

// ParseStatus converts a status name into a Status
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusSuccess, StatusFailed, StatusUnknown:
		return Status(s), nil
	case "":
		return StatusUnknown, nil
	}
	return "", fmt.Errorf("invalid status %q (want success, failed or unknown)", s)
}

// Entry represents one executed command in the history log.
// Entries are never modified after they are published in a Tree.
type Entry struct {
	ID        int64
	Timestamp int64
	Mapset    string
	Command   string
	Status    Status
	Runtime   *int64 // Runtime in milliseconds, nil if not captured
}

// NewEntry creates a new Entry with the current timestamp
func NewEntry(command, mapset string) *Entry {
	return &Entry{
		Timestamp: time.Now().Unix(),
		Mapset:    mapset,
		Command:   command,
		Status:    StatusUnknown,
	}
}

// Time returns the entry timestamp as a local time
func (e *Entry) Time() time.Time {
	return time.Unix(e.Timestamp, 0)
}
