package token

import (
	"net/http"

	commonerrors "github.com/AlibekovAA/authcore/internal/common/errors"
)

var (
	ErrTokenMalformed = commonerrors.NewDomainError(
		"TOKEN_MALFORMED",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"token is malformed",
	)

	ErrTokenInvalidSignature = commonerrors.NewDomainError(
		"TOKEN_INVALID_SIGNATURE",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"token signature is invalid",
	)

	ErrTokenExpired = commonerrors.NewDomainError(
		"TOKEN_EXPIRED",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"token has expired",
	)
)
