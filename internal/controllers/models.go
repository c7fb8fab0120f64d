package controllers

import (
	"errors"
	"fmt"
	"time"
)

// ErrCoolingDown is returned while a failed key waits for its retry window
var ErrCoolingDown = errors.New("persona fetch cooling down after failure")

// Persona is a generated controller identity for one airport on one day
type Persona struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
	Nationality string `json:"nationality,omitempty"`
}

// FullName returns "First Last"
func (p Persona) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Key identifies a controller slot
type Key struct {
	Code string
	Date string // YYYY-MM-DD
}

// KeyFor builds the key for an airport on the UTC calendar day of t
func KeyFor(code string, t time.Time) Key {
	return Key{Code: code, Date: t.UTC().Format(time.DateOnly)}
}

// Seed is the deterministic seed sent to the persona service
func (k Key) Seed() string {
	return fmt.Sprintf("%s-%s", k.Code, k.Date)
}

// Status describes a controller slot. Only StatusResolved means the airport is open.
type Status int

const (
	StatusPending Status = iota
	StatusResolved
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// MarshalText lets Status render as a string in JSON responses
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Closed reports whether the airport has no controller to talk to
func (s Status) Closed() bool {
	return s != StatusResolved
}
