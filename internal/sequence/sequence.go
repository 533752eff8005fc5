// Package sequence allocates gapless, prefixed document numbers for
// billing documents.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Class identifies an independent numbering series.
type Class string

const (
	ClassInvoice    Class = "invoice"
	ClassDyeingBill Class = "dyeing_bill"
)

// Width is the minimum zero-padded width of the numeric suffix.
const Width = 5

// ErrCorruption indicates the last issued number no longer matches the
// prefix-NNNNN shape. Allocation must stop rather than restart the
// series, since restarting would reissue an existing number.
var ErrCorruption = errors.New("sequence: corrupted document number")

// Store persists the latest issued number per series. Numbers are kept
// in a dedicated counter row rather than read back from the documents
// themselves, so a deleted document can never cause its number to be
// reissued. LastNumber must hold the series row locked until the
// caller's transaction ends.
type Store interface {
	// LastNumber returns the latest number issued for (class, prefix)
	// and false when the series has not been started.
	LastNumber(ctx context.Context, class Class, prefix string) (string, bool, error)
	// SaveLast records number as the latest issued for (class, prefix).
	SaveLast(ctx context.Context, class Class, prefix, number string) error
}

// Format renders the canonical document number for sequence value n.
func Format(prefix string, n int) string {
	return fmt.Sprintf("%s-%0*d", prefix, Width, n)
}

// Parse extracts the sequence value from number, which must be prefix
// followed by a dash and a numeric suffix.
func Parse(prefix, number string) (int, error) {
	suffix, ok := strings.CutPrefix(number, prefix+"-")
	if !ok {
		return 0, fmt.Errorf("%w: %q does not start with %q", ErrCorruption, number, prefix+"-")
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: suffix %q is not a positive number", ErrCorruption, suffix)
	}
	return n, nil
}

// Next allocates and records the next number of the series. It must
// run inside the same transaction as the document insert so that a
// rolled-back insert also rolls the counter back, keeping the series
// gapless.
func Next(ctx context.Context, store Store, class Class, prefix string) (string, error) {
	last, ok, err := store.LastNumber(ctx, class, prefix)
	if err != nil {
		return "", fmt.Errorf("sequence: read last number: %w", err)
	}

	n := 0
	if ok {
		if n, err = Parse(prefix, last); err != nil {
			return "", fmt.Errorf("%w (class %s)", err, class)
		}
	}

	number := Format(prefix, n+1)
	if err := store.SaveLast(ctx, class, prefix, number); err != nil {
		return "", fmt.Errorf("sequence: save last number: %w", err)
	}
	return number, nil
}
