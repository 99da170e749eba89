package model

import "errors"

var (
	// User related errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	// Token related errors
	ErrTokenNotFound = errors.New("token not found")

	// Case related errors
	ErrCaseNotFound = errors.New("case not found")

	ErrProfileNotFound = errors.New("profile not found")
)
