package motiondb

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/motiondb/blob"
	"github.com/hupe1980/motiondb/blobstore"
)

var (
	// ErrClosed is returned when using a closed Database.
	ErrClosed = errors.New("motiondb: database closed")
	// ErrNotFound is returned when a stored database does not exist.
	ErrNotFound = errors.New("motiondb: not found")
	// ErrCorrupt is returned when stored bytes are not a valid database.
	ErrCorrupt = errors.New("motiondb: corrupt database")
	// ErrIncompatible is returned for databases written by another format version.
	ErrIncompatible = errors.New("motiondb: incompatible format version")
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("motiondb: k must be positive")
	// ErrInvalidCodeBook is returned for codebook ids outside the database.
	ErrInvalidCodeBook = errors.New("motiondb: invalid codebook")
	// ErrEmptyQuery is returned for searches without a valid fragment.
	ErrEmptyQuery = errors.New("motiondb: query has no fragment")
)

// ErrLayoutMismatch indicates a query fragment whose feature count does not
// match the encoding it is compared against.
type ErrLayoutMismatch struct {
	Kind     FragmentKind
	Expected int
	Actual   int
}

func (e *ErrLayoutMismatch) Error() string {
	return fmt.Sprintf("motiondb: %s fragment has %d features, expected %d", e.Kind, e.Actual, e.Expected)
}

// translateError maps errors of the storage and blob layers onto the
// package sentinels, keeping the original in the chain.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, blob.ErrVersionMismatch):
		return fmt.Errorf("%w: %w", ErrIncompatible, err)
	case errors.Is(err, blob.ErrInvalidMagic),
		errors.Is(err, blob.ErrChecksumMismatch),
		errors.Is(err, blob.ErrCorrupt),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	var ie *blob.IntegrityError
	if errors.As(err, &ie) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return err
}
