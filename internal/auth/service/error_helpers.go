package service

import (
	"errors"
	"net/http"

	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
)

// storageFailure keeps the store's error in the chain so it still matches
// ErrStorage, and upgrades an open breaker to ErrServiceUnavailable.
func storageFailure(err error) error {
	if errors.Is(err, commonerrors.ErrCircuitOpen) {
		return ErrServiceUnavailable.WithCause(err)
	}
	if errors.Is(err, commonerrors.ErrStorage) {
		return err
	}
	return commonerrors.ErrStorage.WithCause(err)
}

func newInternalError(code, message string, cause error) commonerrors.DomainError {
	err := commonerrors.NewDomainError(
		code,
		commonerrors.CategoryInternal,
		http.StatusInternalServerError,
		message,
	)
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}
