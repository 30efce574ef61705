package blob

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMagic is returned when the input is not a motion database.
	ErrInvalidMagic = errors.New("blob: invalid magic")
	// ErrVersionMismatch is returned when the format version differs from
	// FormatVersion.
	ErrVersionMismatch = errors.New("blob: format version mismatch")
	// ErrChecksumMismatch is returned when the stored checksum does not match.
	ErrChecksumMismatch = errors.New("blob: checksum mismatch")
	// ErrCorrupt is returned when the payload cannot be decoded.
	ErrCorrupt = errors.New("blob: corrupt payload")
)

// IntegrityError reports a referential-integrity violation between tables.
type IntegrityError struct {
	Table string
	Index int
	Msg   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("blob: integrity: %s[%d]: %s", e.Table, e.Index, e.Msg)
}

func integrityf(table string, index int, format string, args ...any) error {
	return &IntegrityError{Table: table, Index: index, Msg: fmt.Sprintf(format, args...)}
}
