package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const MaxCandidatesPerRole = 10

// SignalMailbox holds the latest WebRTC negotiation messages of a session for
// peers that poll instead of holding a socket.
type SignalMailbox struct {
	Offer            json.RawMessage   `json:"offer,omitempty"`
	Answer           json.RawMessage   `json:"answer,omitempty"`
	ReadyCaller      bool              `json:"ready_caller,omitempty"`
	ReadyCallee      bool              `json:"ready_callee,omitempty"`
	ReadySignal      json.RawMessage   `json:"ready_signal,omitempty"`
	CandidatesCaller []json.RawMessage `json:"candidates_caller,omitempty"`
	CandidatesCallee []json.RawMessage `json:"candidates_callee,omitempty"`
}

func DecodeSignalMailbox(data []byte) (*SignalMailbox, error) {
	m := &SignalMailbox{}
	if len(data) == 0 || string(data) == "null" {
		return m, nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode signal mailbox: %w", err)
	}
	return m, nil
}

// Apply records one signal message sent by sender in role. The stored copy is
// stamped with sender_id. Kinds other than offer, answer, ready and candidate
// are relayed to the peer but have no slot, so they leave the mailbox as is.
func (m *SignalMailbox) Apply(role SignalRole, sender uuid.UUID, signal json.RawMessage) error {
	var fields map[string]any
	if err := json.Unmarshal(signal, &fields); err != nil || fields == nil {
		return ErrInvalidSignal
	}
	kind, _ := fields["type"].(string)
	fields["sender_id"] = sender.String()

	stamped, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}

	switch kind {
	case "offer":
		m.Offer = stamped
	case "answer":
		m.Answer = stamped
	case "ready":
		if role == RoleCaller {
			m.ReadyCaller = true
		} else {
			m.ReadyCallee = true
		}
		m.ReadySignal = stamped
	case "candidate":
		if role == RoleCaller {
			m.CandidatesCaller = appendCandidate(m.CandidatesCaller, stamped)
		} else {
			m.CandidatesCallee = appendCandidate(m.CandidatesCallee, stamped)
		}
	}
	return nil
}

func appendCandidate(list []json.RawMessage, c json.RawMessage) []json.RawMessage {
	list = append(list, c)
	if len(list) > MaxCandidatesPerRole {
		list = list[len(list)-MaxCandidatesPerRole:]
	}
	return list
}

func (m *SignalMailbox) Encode() ([]byte, error) {
	return json.Marshal(m)
}
