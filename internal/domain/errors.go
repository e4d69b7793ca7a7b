package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL        = errors.New("invalid image url")
	ErrInvalidCategory   = errors.New("unknown image category")
	ErrInvalidCredential = errors.New("shop domain and access token are required")
	ErrInvalidImage      = errors.New("upload is not a supported image")
	ErrResourceNotFound  = errors.New("resource not found")
	ErrMissingLocator    = errors.New("locator is missing required identifiers")
	ErrNotImplemented    = errors.New("replacement not implemented for this resource")
	ErrFileNotReady      = errors.New("uploaded file has no image url yet")
)

// ReplacementError reports which step of a replacement failed.
// Side effects committed before Step are not rolled back.
type ReplacementError struct {
	Category Category
	Step     string
	Err      error
}

func (e *ReplacementError) Error() string {
	return fmt.Sprintf("replace %s image: %s: %v", e.Category, e.Step, e.Err)
}

func (e *ReplacementError) Unwrap() error {
	return e.Err
}
