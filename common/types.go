// Package common contains types shared across the validator node.
package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Arbitrary-precision integer. Wrapper around big.Int to allow for
// custom JSON and Postgres marshaling. Balance amounts cross the wire
// as base-10 decimal strings; the conversion is exact in both directions.
type BigInt struct {
	big.Int
}

func NewBigInt(v int64) BigInt {
	return BigInt{*big.NewInt(v)}
}

// BigIntFromDecimal parses a non-negative base-10 decimal string.
func BigIntFromDecimal(s string) (BigInt, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return BigInt{}, fmt.Errorf("malformed decimal amount '%s'", s)
	}
	if i.Sign() < 0 {
		return BigInt{}, fmt.Errorf("negative amount '%s'", s)
	}
	return BigInt{*i}, nil
}

func (b BigInt) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *BigInt) UnmarshalText(text []byte) error {
	return b.Int.UnmarshalText(text)
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, b.String())), nil
}

func (b *BigInt) UnmarshalJSON(text []byte) error {
	v := strings.Trim(string(text), "\"")
	return b.Int.UnmarshalJSON([]byte(v))
}

// ScanNumeric implements pgtype.NumericScanner so amounts can be read
// directly from NUMERIC columns without precision loss.
func (b *BigInt) ScanNumeric(n pgtype.Numeric) error {
	if !n.Valid {
		return errors.New("NULL values can't be decoded; scan into a **BigInt to handle NULLs")
	}
	bigInt, err := numericToBigInt(n)
	if err != nil {
		return err
	}
	*b = bigInt
	return nil
}

// NumericValue implements pgtype.NumericValuer.
func (b BigInt) NumericValue() (pgtype.Numeric, error) {
	return pgtype.Numeric{Int: &b.Int, Exp: 0, Valid: true}, nil
}

// numericToBigInt converts a pgtype.Numeric to a BigInt. Fails if the
// value has a fractional part.
func numericToBigInt(n pgtype.Numeric) (BigInt, error) {
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return BigInt{}, fmt.Errorf("cannot convert %v to integer", n)
	}
	if n.Exp == 0 {
		return BigInt{Int: *n.Int}, nil
	}

	big10 := big.NewInt(10)
	bi := new(big.Int).Set(n.Int)
	if n.Exp > 0 {
		mul := new(big.Int).Exp(big10, big.NewInt(int64(n.Exp)), nil)
		bi.Mul(bi, mul)
		return BigInt{Int: *bi}, nil
	}

	div := new(big.Int).Exp(big10, big.NewInt(int64(-n.Exp)), nil)
	remainder := new(big.Int)
	bi.DivMod(bi, div, remainder)
	if remainder.Sign() != 0 {
		return BigInt{}, fmt.Errorf("cannot convert %v to integer", n)
	}
	return BigInt{Int: *bi}, nil
}

// ChannelID is the hex-encoded 32-byte identifier of a payment channel.
type ChannelID string

// ChannelIDSize is the length of a raw channel identifier, in bytes.
const ChannelIDSize = 32

// Validate checks that the identifier is well-formed lowercase hex of
// the expected length.
func (id ChannelID) Validate() error {
	return validateHex(string(id), ChannelIDSize, "channel id")
}

// Bytes returns the raw identifier. The identifier must be valid.
func (id ChannelID) Bytes() []byte {
	raw, err := hex.DecodeString(string(id))
	if err != nil {
		panic(fmt.Sprintf("common: invalid channel id '%s'", id))
	}
	return raw
}

// StateRoot is the hex-encoded 32-byte commitment to a channel's
// balance set.
type StateRoot string

// StateRootSize is the length of a raw state root, in bytes.
const StateRootSize = 32

// StateRootFromBytes hex-encodes a raw state root digest.
func StateRootFromBytes(raw []byte) StateRoot {
	return StateRoot(hex.EncodeToString(raw))
}

// Validate checks that the root is well-formed lowercase hex of the
// expected length.
func (r StateRoot) Validate() error {
	return validateHex(string(r), StateRootSize, "state root")
}

func validateHex(s string, size int, what string) error {
	if len(s) != 2*size {
		return fmt.Errorf("malformed %s '%s': expected %d hex chars", what, s, 2*size)
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != size {
		return fmt.Errorf("malformed %s '%s'", what, s)
	}
	if strings.ToLower(s) != s {
		return fmt.Errorf("malformed %s '%s': expected lowercase hex", what, s)
	}
	return nil
}

// ContextKey is used to set values in a web request context.
type ContextKey string

const (
	// RequestIDContextKey is used to set a request id for tracing
	// in a request context.
	RequestIDContextKey ContextKey = "request_id"
)
