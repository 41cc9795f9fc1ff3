package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness violation on insert.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnauthenticated indicates no usable credential was presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates a malformed or forged token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a well-formed token past its expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrAlreadyAuthenticated is returned when authenticating a session
	// that already carries a principal. Callers treat it as benign.
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
	// ErrAccountExists is returned on registration against a non-guest record.
	ErrAccountExists = errors.New("account exists")
	// ErrMergeConflict indicates a concurrent writer won the cart merge.
	ErrMergeConflict = errors.New("merge conflict")
	// ErrCartImmutable is returned on mutation of a merged or converted cart.
	ErrCartImmutable = errors.New("cart is immutable")
)
