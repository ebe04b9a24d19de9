// Package validator implements the consensus core of the payment-channel
// validator: fee distribution, state root computation, leader proposal
// validation, and checkpoint resolution over the validator message log.
package validator

import (
	"fmt"
	"math/big"
	"time"

	"github.com/cryptotheoryum/adex-validator/common"
)

// Validator describes one of a channel's two designated validators.
type Validator struct {
	ID  string        `json:"id"`
	Fee common.BigInt `json:"fee"`
}

// Channel is a payment channel as agreed by both validators. Channels
// are created externally and are immutable once created; the core only
// reads them.
type Channel struct {
	ID         common.ChannelID `json:"id"`
	Deposit    common.BigInt    `json:"deposit"`
	ValidUntil time.Time        `json:"validUntil"`
	// Validators holds the leader first, then the follower.
	Validators [2]Validator `json:"validators"`
}

// Leader returns the validator that proposes new channel states.
func (c *Channel) Leader() *Validator {
	return &c.Validators[0]
}

// Follower returns the validator that verifies proposed states.
func (c *Channel) Follower() *Validator {
	return &c.Validators[1]
}

// TotalFee returns the sum of both validators' configured fees.
func (c *Channel) TotalFee() *big.Int {
	return new(big.Int).Add(&c.Validators[0].Fee.Int, &c.Validators[1].Fee.Int)
}

// Validate checks channel well-formedness at the submission boundary.
func (c *Channel) Validate() error {
	if err := c.ID.Validate(); err != nil {
		return err
	}
	if c.Deposit.Sign() <= 0 {
		return fmt.Errorf("channel %s: deposit must be positive", c.ID)
	}
	for i := range c.Validators {
		v := &c.Validators[i]
		if v.ID == "" {
			return fmt.Errorf("channel %s: validator %d has no id", c.ID, i)
		}
		if v.Fee.Sign() < 0 {
			return fmt.Errorf("channel %s: validator %s has negative fee", c.ID, v.ID)
		}
	}
	if c.Validators[0].ID == c.Validators[1].ID {
		return fmt.Errorf("channel %s: leader and follower must be distinct", c.ID)
	}
	if c.TotalFee().Cmp(&c.Deposit.Int) > 0 {
		return fmt.Errorf("channel %s: total validator fee exceeds deposit", c.ID)
	}
	if !c.ValidUntil.After(time.Now()) {
		return fmt.Errorf("channel %s: validity deadline is not in the future", c.ID)
	}
	return nil
}
