package models

import "time"

type Status string

const (
	StatusInbox      Status = "inbox"
	StatusHeld       Status = "held"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusRejected   Status = "rejected"
)

var statuses = []Status{StatusInbox, StatusHeld, StatusInProgress, StatusDone, StatusRejected}

// ParseStatus returns the Status named s and whether it is one of the
// recognised values.
func ParseStatus(s string) (Status, bool) {
	for _, st := range statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsActive reports whether letters in this status count against the
// owner's keep limit.
func (s Status) IsActive() bool {
	return s == StatusHeld || s == StatusInProgress
}

// IsTerminal reports whether s ends the default flow.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusRejected
}

type Letter struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
