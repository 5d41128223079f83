package domain

import (
	"strings"
	"time"
)

// WindowCounter is the number of admitted requests since Start
type WindowCounter struct {
	Count int       `json:"count"`
	Start time.Time `json:"windowStart"`
}

// LimitCounters holds one counter per rate limit window
type LimitCounters struct {
	FiveMin WindowCounter `json:"fiveMin"`
	OneHour WindowCounter `json:"oneHour"`
	OneDay  WindowCounter `json:"oneDay"`
}

// Window returns a pointer to the named window counter, or nil for an unknown name
func (c *LimitCounters) Window(name string) *WindowCounter {
	switch name {
	case WindowFiveMin:
		return &c.FiveMin
	case WindowOneHour:
		return &c.OneHour
	case WindowOneDay:
		return &c.OneDay
	default:
		return nil
	}
}

// Account is a caller identity that bears rate limit counters
type Account struct {
	ID           string
	Email        string
	Type         string
	APIKeyPrefix string
	APIKeyHash   string
	Counters     LimitCounters
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Unlimited reports whether the account bypasses rate limiting
func (a *Account) Unlimited() bool {
	return a.Type == AccountTypeUnlimited
}

// NormalizeEmail lower-cases and trims an email so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
