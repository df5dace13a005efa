package kvdoc

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDocType is returned when a selector has no docType discriminator.
	ErrMissingDocType = errors.New("selector.docType is required")

	// ErrNotFound is returned when a point lookup finds no value.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrHistoryUnavailable is returned when the store cannot produce a
	// history cursor for a key.
	ErrHistoryUnavailable = errors.New("history unavailable")

	// ErrParentNotFound is returned when a dependent record references a
	// parent record that does not exist.
	ErrParentNotFound = errors.New("parent not found")

	// ErrInvalidKey is returned for keys and identifiers that break the
	// key namespace rules.
	ErrInvalidKey = errors.New("invalid key")

	// ErrIteratorConsumed is returned when a single-pass sequence is ranged
	// over a second time.
	ErrIteratorConsumed = errors.New("iterator already consumed")
)

type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s does not exist", e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type AlreadyExistsError struct {
	Key string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists", e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

type HistoryUnavailableError struct {
	Key string
	Err error
}

func (e *HistoryUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("history for %s unavailable: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("history for %s unavailable", e.Key)
}

func (e *HistoryUnavailableError) Is(target error) bool {
	return target == ErrHistoryUnavailable
}

func (e *HistoryUnavailableError) Unwrap() error {
	return e.Err
}

// ParentNotFoundError reports a child record whose parent is missing.
type ParentNotFoundError struct {
	ParentKey string
	ChildKey  string
}

func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("cannot create %s: parent %s not found", e.ChildKey, e.ParentKey)
}

func (e *ParentNotFoundError) Is(target error) bool {
	return target == ErrParentNotFound || target == ErrNotFound
}

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

func invalidKeyErrf(key string, format string, args ...any) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidKey, key, fmt.Sprintf(format, args...))
}
