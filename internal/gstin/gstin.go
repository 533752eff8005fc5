// Package gstin decodes Indian GST identification numbers into their
// structural components. Decoding is pure and performs no I/O; the
// optional registry lookup lives in registry.go.
package gstin

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Length is the fixed length of a GSTIN.
const Length = 15

// structural layout: 2-digit state code, 10-character PAN
// (5 letters, 4 digits, 1 letter), entity code, literal Z, checksum.
var pattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

var (
	// ErrLength indicates the input is not exactly 15 characters.
	ErrLength = errors.New("gstin: must be exactly 15 characters")
	// ErrFormat indicates the input does not match the GSTIN structure.
	ErrFormat = errors.New("gstin: malformed identifier")
	// ErrUnknownState indicates an unrecognised state code prefix.
	ErrUnknownState = errors.New("gstin: unknown state code")
)

// EntityKind is the default legal-name template inferred from the
// holder entity code.
type EntityKind string

const (
	EntityIndividual EntityKind = "INDIVIDUAL"
	EntityCompany    EntityKind = "COMPANY"
	EntityHUF        EntityKind = "HUF"
	EntityFirm       EntityKind = "FIRM"
	EntityAssoc      EntityKind = "ASSOCIATION"
	EntityTrust      EntityKind = "TRUST"
	EntityBusiness   EntityKind = "BUSINESS"
)

// Decoded carries the structural components of a valid GSTIN.
type Decoded struct {
	GSTIN      string `json:"gstin"`
	StateCode  string `json:"state_code"`
	StateName  string `json:"state_name"`
	PAN        string `json:"pan"`
	EntityCode string `json:"entity_code"`
	Checksum   string `json:"checksum"`
}

// Decode normalises and validates raw, returning its components.
// Validation failures are one of ErrLength, ErrFormat or
// ErrUnknownState, each wrapped with the offending detail.
func Decode(raw string) (Decoded, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))

	if len(id) != Length {
		return Decoded{}, fmt.Errorf("%w: got %d", ErrLength, len(id))
	}
	if !pattern.MatchString(id) {
		return Decoded{}, ErrFormat
	}

	code := id[:2]
	name, ok := StateName(code)
	if !ok {
		return Decoded{}, fmt.Errorf("%w: %s", ErrUnknownState, code)
	}

	return Decoded{
		GSTIN:      id,
		StateCode:  code,
		StateName:  name,
		PAN:        id[2:12],
		EntityCode: id[12:13],
		Checksum:   id[14:15],
	}, nil
}

// EntityKind maps the holder entity code to a default legal-name
// template. Codes outside the known letters fall back to a generic
// business template.
func (d Decoded) EntityKind() EntityKind {
	switch d.EntityCode {
	case "P":
		return EntityIndividual
	case "C":
		return EntityCompany
	case "H":
		return EntityHUF
	case "F":
		return EntityFirm
	case "A":
		return EntityAssoc
	case "T":
		return EntityTrust
	default:
		return EntityBusiness
	}
}

// IsValid reports whether raw decodes without error.
func IsValid(raw string) bool {
	_, err := Decode(raw)
	return err == nil
}
