package chat

import "time"

// Turn is one chat message as it was appended to the session log.
// Turns are immutable once appended.
type Turn struct {
	Sender    Identity  `json:"sender"`
	Message   string    `json:"message"`
	Sequence  int       `json:"sequence"`
	CreatedAt time.Time `json:"createdAt"`
}
