package chat

import (
	"errors"
	"strings"
)

// ErrUnknownParticipant is returned when a sender is not part of the session roster.
var ErrUnknownParticipant = errors.New("unknown participant")

// Identity names a chat participant.
type Identity string

func (i Identity) String() string {
	return string(i)
}

// Roster is the closed set of participants allowed in a session.
type Roster []Identity

// ParseRoster splits a comma separated list of names, e.g. "Alice,Bob".
func ParseRoster(raw string) Roster {
	var roster Roster
	seen := make(map[Identity]bool)
	for _, part := range strings.Split(raw, ",") {
		name := Identity(strings.TrimSpace(part))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		roster = append(roster, name)
	}
	return roster
}

// Contains reports whether id is a member of the roster.
func (r Roster) Contains(id Identity) bool {
	for _, member := range r {
		if member == id {
			return true
		}
	}
	return false
}

// Resolve matches raw against the roster case-insensitively.
func (r Roster) Resolve(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	for _, member := range r {
		if strings.EqualFold(string(member), trimmed) {
			return member, nil
		}
	}
	return "", ErrUnknownParticipant
}

// Peers returns every participant other than id.
func (r Roster) Peers(id Identity) []Identity {
	peers := make([]Identity, 0, len(r))
	for _, member := range r {
		if member != id {
			peers = append(peers, member)
		}
	}
	return peers
}
