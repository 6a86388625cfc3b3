// Package models defines the records the server persists.
package models

import "time"

type Owner struct {
	ID           string
	DisplayName  string
	PasswordSalt string
	PasswordHash string
	KeepLimit    int
	IsAdmin      bool
	CreatedAt    time.Time
}

// Profile is the public projection of an owner shown to senders.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	KeepLimit   int    `json:"keepLimit"`
}

func (o *Owner) Profile() Profile {
	return Profile{ID: o.ID, DisplayName: o.DisplayName, KeepLimit: o.KeepLimit}
}
