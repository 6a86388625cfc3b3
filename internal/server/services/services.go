// Package services holds the suggestion box business logic: accounts and
// sessions, the letter lifecycle and the quota that bounds it. Services
// talk to storage only through repomanager and run every count-then-write
// sequence inside one transaction whose write is a conditional statement.
package services

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nsendoda/suggestion-box/internal/common"
	"github.com/nsendoda/suggestion-box/internal/server/models"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// utc wraps c so that stored timestamps share one offset; SQLite compares
// them as text.
func utc(c Clock) Clock {
	return func() time.Time { return c().UTC() }
}

const (
	minPasswordLen    = 6
	maxDisplayNameLen = 40
	maxContentLen     = 200
)

var ownerIDPattern = regexp.MustCompile(`^[a-z0-9_-]{3,32}$`)

// NormalizeOwnerID trims and lowercases id.
func NormalizeOwnerID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func validOwnerID(id string) bool {
	return ownerIDPattern.MatchString(id)
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > maxContentLen {
		return "", common.ErrInvalidContent
	}
	return content, nil
}

// localize renders the letter's timestamps in loc.
func localize(l *models.Letter, loc *time.Location) *models.Letter {
	l.CreatedAt = l.CreatedAt.In(loc)
	l.UpdatedAt = l.UpdatedAt.In(loc)
	return l
}
