// Package session stores the join dialogue state of each applicant chat.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownState is returned when a stored state cannot be decoded.
var ErrUnknownState = errors.New("session: unknown state")

// State is the dialogue state of an applicant. The absence of a stored state
// means the applicant has not started (or has finished) a join request.
//
// The set of implementations is closed: ReceiveReason, AwaitApproval and Blocked.
type State interface {
	Kind() Kind
	isState()
}

// Kind names a State variant in storage.
type Kind string

const (
	KindReceiveReason Kind = "receive_reason"
	KindAwaitApproval Kind = "await_approval"
	KindBlocked       Kind = "blocked"
)

// ReceiveReason waits for the applicant to explain why they want to join.
type ReceiveReason struct{}

// AwaitApproval waits for a moderator to act on the notification MessageID.
type AwaitApproval struct {
	MessageID int
}

// Blocked persists until a moderator unblocks the applicant.
type Blocked struct{}

func (ReceiveReason) Kind() Kind { return KindReceiveReason }
func (AwaitApproval) Kind() Kind { return KindAwaitApproval }
func (Blocked) Kind() Kind       { return KindBlocked }

func (ReceiveReason) isState() {}
func (AwaitApproval) isState() {}
func (Blocked) isState()       {}

type record struct {
	Kind      Kind `json:"kind"`
	MessageID int  `json:"message_id,omitempty"`
}

// Marshal encodes a state for storage.
func Marshal(s State) ([]byte, error) {
	rec := record{Kind: s.Kind()}
	if a, ok := s.(AwaitApproval); ok {
		rec.MessageID = a.MessageID
	}
	return json.Marshal(rec)
}

// Unmarshal decodes a state written by Marshal.
func Unmarshal(data []byte) (State, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	switch rec.Kind {
	case KindReceiveReason:
		return ReceiveReason{}, nil
	case KindAwaitApproval:
		return AwaitApproval{MessageID: rec.MessageID}, nil
	case KindBlocked:
		return Blocked{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownState, rec.Kind)
	}
}
