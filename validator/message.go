package validator

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/cryptotheoryum/adex-validator/common"
)

// MessageType tags the closed set of validator message variants.
type MessageType string

const (
	// MessageNewState is a leader-authored state proposal.
	MessageNewState MessageType = "NewState"
	// MessageApproveState is a follower-authored attestation.
	MessageApproveState MessageType = "ApproveState"
	// MessageInvalidNewState records a rejected proposal.
	MessageInvalidNewState MessageType = "InvalidNewState"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageNewState, MessageApproveState, MessageInvalidNewState:
		return true
	default:
		return false
	}
}

// BalanceSet maps account addresses to non-negative amounts. Iteration
// order carries no meaning; two sets are equal iff they contain the
// same address/amount pairs.
type BalanceSet map[string]common.BigInt

// Sum returns the total of all amounts in the set.
func (b BalanceSet) Sum() *big.Int {
	total := new(big.Int)
	for _, amount := range b {
		total.Add(total, &amount.Int)
	}
	return total
}

// Equal reports whether both sets contain the same pairs.
func (b BalanceSet) Equal(other BalanceSet) bool {
	if len(b) != len(other) {
		return false
	}
	for account, amount := range b {
		o, ok := other[account]
		if !ok || amount.Cmp(&o.Int) != 0 {
			return false
		}
	}
	return true
}

// Validate checks that the set is a valid non-empty mapping with no
// negative entries.
func (b BalanceSet) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("empty balance set")
	}
	for account, amount := range b {
		if account == "" {
			return fmt.Errorf("balance entry with empty account")
		}
		if amount.Sign() < 0 {
			return fmt.Errorf("negative balance for account %s", account)
		}
	}
	return nil
}

// Message is a validator message as exchanged between validators and
// stored in the channel's log. It is a tagged variant: Balances is
// present on NewState only, Reason on InvalidNewState only.
type Message struct {
	Type      MessageType      `json:"type"`
	StateRoot common.StateRoot `json:"stateRoot"`
	Signature string           `json:"signature"`
	Balances  BalanceSet       `json:"balances,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// DecodeMessage decodes and validates a wire-format message once, at
// the system boundary. Downstream code relies on the variant being
// well-formed and performs no further field-presence checks.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed validator message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the tagged-variant invariants.
func (m *Message) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("unknown message type '%s'", m.Type)
	}
	if err := m.StateRoot.Validate(); err != nil {
		return err
	}
	switch m.Type {
	case MessageNewState:
		if err := m.Balances.Validate(); err != nil {
			return fmt.Errorf("NewState: %w", err)
		}
	case MessageApproveState:
		if len(m.Balances) != 0 {
			return fmt.Errorf("ApproveState: unexpected balances")
		}
	case MessageInvalidNewState:
		if m.Reason == "" {
			return fmt.Errorf("InvalidNewState: missing reason")
		}
	}
	return nil
}

// StoredMessage is a message at rest in the channel's log, together
// with its envelope. Messages are append-only; they are never updated
// or deleted.
type StoredMessage struct {
	ChannelID common.ChannelID `json:"channelId"`
	From      string           `json:"from"`
	// Received orders messages within a channel. It is assigned at
	// append time and is unique and strictly increasing per channel,
	// including within a single submitted batch.
	Received int64   `json:"received"`
	Message  Message `json:"msg"`
}
