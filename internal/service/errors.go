package service

import (
	"errors"
	"fmt"
)

// Ledger errors the presentation layer branches on with errors.Is.
var (
	// ErrInvalidAmount: amount missing, non-positive or non-numeric.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnknownCategory: category id does not resolve at mutation time.
	// Normal flow always resolves categories via get-or-create first, so
	// hitting this means an internal consistency fault.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrRecordNotFound covers both a missing id and an id owned by another
	// user. The two cases are deliberately indistinguishable.
	ErrRecordNotFound = errors.New("record not found")

	// ErrClassificationUnavailable: the external classifier failed or
	// returned output nothing could be parsed from.
	ErrClassificationUnavailable = errors.New("classification unavailable")

	// ErrStorageUnavailable: a transaction failed to commit. Nothing was
	// partially applied; the caller may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// wrapStorage tags a storage-layer failure so callers see one generic
// retryable condition while the underlying chain stays inspectable.
func wrapStorage(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorageUnavailable, err))
}
