package model

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyEvaluated  = errors.New("evaluation already submitted")
	ErrNotAssigned       = errors.New("no active assignment for evaluator")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrUserBlocked       = errors.New("user is blocked")
)
