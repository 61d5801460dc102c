package domain

import (
	"fmt"
	"strconv"
	"strings"

	dErrors "custodia/pkg/domain-errors"
)

// ErasureCode is the durable, human-readable reference assigned to an erasure
// request, quoted in regulator correspondence and retention reports. Format is
// ER-<year>-<NNN>: the four-digit year the request was received and a
// zero-padded sequence unique within that year (three digits minimum, wider
// once a year passes 999 requests).
//
// A code is assigned exactly once and never reused, including codes held by
// rejected or cancelled requests.
type ErasureCode string

const erasureCodePrefix = "ER"

// FormatErasureCode builds the canonical code for a year/sequence pair.
func FormatErasureCode(year, seq int) ErasureCode {
	return ErasureCode(fmt.Sprintf("%s-%04d-%03d", erasureCodePrefix, year, seq))
}

// ParseErasureCode constructs an ErasureCode from external input, enforcing
// the canonical shape.
//
// Errors: CodeInvalidInput when empty or malformed.
func ParseErasureCode(s string) (ErasureCode, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "erasure code cannot be empty")
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] != erasureCodePrefix {
		return "", dErrors.New(dErrors.CodeInvalidInput, "erasure code must look like ER-<year>-<seq>")
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 || year < 1 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "erasure code year must be four digits")
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil || len(parts[2]) < 3 || seq < 1 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "erasure code sequence must be a positive, zero-padded number")
	}
	// Reject non-canonical padding such as ER-2024-0001 for seq 1.
	if FormatErasureCode(year, seq) != ErasureCode(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "erasure code sequence has non-canonical padding")
	}
	return ErasureCode(s), nil
}

// Year extracts the year component. Zero on a malformed or empty code.
func (c ErasureCode) Year() int {
	parts := strings.Split(string(c), "-")
	if len(parts) != 3 {
		return 0
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return year
}

// Sequence extracts the within-year sequence component. Zero on a malformed
// or empty code.
func (c ErasureCode) Sequence() int {
	parts := strings.Split(string(c), "-")
	if len(parts) != 3 {
		return 0
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0
	}
	return seq
}

// IsZero reports whether no code has been assigned.
func (c ErasureCode) IsZero() bool { return c == "" }

// String returns the code as stored and displayed.
func (c ErasureCode) String() string { return string(c) }
