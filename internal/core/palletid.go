package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Pallet id defaults: "PALLET" followed by a 5-digit zero-padded sequence.
const (
	DefaultPalletPrefix   = "PALLET"
	DefaultSequenceWidth  = 5
	DefaultPalletCapacity = 20
)

// PalletFormat describes how pallet ids are issued and how full a pallet may get.
type PalletFormat struct {
	Prefix   string
	Width    int // Digits in the zero-padded sequence
	Capacity int // Parcels per pallet
}

// DefaultPalletFormat returns the standard PALLET00001 / 20 parcels format.
func DefaultPalletFormat() PalletFormat {
	return PalletFormat{
		Prefix:   DefaultPalletPrefix,
		Width:    DefaultSequenceWidth,
		Capacity: DefaultPalletCapacity,
	}
}

// Validate checks the format can issue ids.
func (f PalletFormat) Validate() error {
	if f.Prefix == "" {
		return fmt.Errorf("pallet prefix must not be empty")
	}
	if strings.ContainsAny(f.Prefix, "0123456789") {
		return fmt.Errorf("pallet prefix %q must not contain digits", f.Prefix)
	}
	if f.Width <= 0 || f.Width > 18 {
		return fmt.Errorf("pallet sequence width %d must be 1-18", f.Width)
	}
	if f.Capacity <= 0 {
		return fmt.Errorf("pallet capacity %d must be positive", f.Capacity)
	}
	return nil
}

// MaxSequence returns the largest sequence number the width can express.
func (f PalletFormat) MaxSequence() int64 {
	n := int64(1)
	for i := 0; i < f.Width; i++ {
		n *= 10
	}
	return n - 1
}

// FormatID renders a sequence number as a pallet id.
func (f PalletFormat) FormatID(seq int64) (string, error) {
	if seq <= 0 {
		return "", fmt.Errorf("pallet sequence %d must be positive", seq)
	}
	if seq > f.MaxSequence() {
		return "", fmt.Errorf("%w: %d exceeds %d digits", ErrSequenceExhausted, seq, f.Width)
	}
	return fmt.Sprintf("%s%0*d", f.Prefix, f.Width, seq), nil
}

// ParseID extracts the sequence number from a pallet id.
//
// The remainder after the prefix must be all decimal digits. Ids written with
// a narrower or wider padding are accepted as long as they are numeric, so a
// store populated under a different width still yields a correct maximum.
func (f PalletFormat) ParseID(id string) (int64, error) {
	rest, ok := strings.CutPrefix(id, f.Prefix)
	if !ok {
		return 0, fmt.Errorf("missing prefix %q", f.Prefix)
	}
	if rest == "" {
		return 0, fmt.Errorf("missing sequence number")
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("sequence %q is not numeric", rest)
		}
	}
	seq, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sequence %q: %w", rest, err)
	}
	return seq, nil
}
