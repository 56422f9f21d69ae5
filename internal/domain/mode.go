package domain

import "fmt"

// Mode is the coordinator's current unit of interest. Exactly one is active.
// The set of implementations is closed: IdleMode, ListMode and DetailMode.
type Mode interface {
	// Equal reports structural equality with another mode
	Equal(other Mode) bool

	// String returns a short description for logging
	String() string

	isMode()
}

// IdleMode means nothing is requested and nothing is published.
type IdleMode struct{}

// ListMode is an ordered list of resources a scrolling view wants.
type ListMode struct {
	Requests []Request
}

// DetailMode holds the resources of one detail screen, scoped by entity.
type DetailMode struct {
	EntityID string
	Requests []Request
}

func (IdleMode) isMode()   {}
func (ListMode) isMode()   {}
func (DetailMode) isMode() {}

func (IdleMode) Equal(other Mode) bool {
	_, ok := other.(IdleMode)
	return ok
}

func (m ListMode) Equal(other Mode) bool {
	o, ok := other.(ListMode)
	return ok && requestsEqual(m.Requests, o.Requests)
}

func (m DetailMode) Equal(other Mode) bool {
	o, ok := other.(DetailMode)
	return ok && m.EntityID == o.EntityID && requestsEqual(m.Requests, o.Requests)
}

func (IdleMode) String() string { return "idle" }

func (m ListMode) String() string {
	return fmt.Sprintf("list(%d)", len(m.Requests))
}

func (m DetailMode) String() string {
	return fmt.Sprintf("detail(%s, %d)", m.EntityID, len(m.Requests))
}

// ModeRequests returns the request list of a mode (nil for idle).
func ModeRequests(m Mode) []Request {
	switch v := m.(type) {
	case ListMode:
		return v.Requests
	case DetailMode:
		return v.Requests
	default:
		return nil
	}
}
