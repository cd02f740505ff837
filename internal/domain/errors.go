package domain

import (
	"errors"
	"fmt"
)

// Locator failures.
var (
	ErrNoImageData         = errors.New("no image data")
	ErrNoSuitableExtension = errors.New("no suitable file extension")
	ErrGatewayHashNotFound = errors.New("no content hash for gateway")
	ErrNotAnImage          = errors.New("not an image")
	ErrMissingName         = errors.New("record has no name")
	ErrDuplicateName       = errors.New("file name already claimed in this run")
)

// Download failures.
var (
	ErrIO           = errors.New("io error")
	ErrWrite        = errors.New("write error")
	ErrTransport    = errors.New("transport error")
	ErrSizeMismatch = errors.New("size mismatch")
	ErrDecode       = errors.New("decode error")
)

// LocatorError is returned when no fetchable asset can be derived from a record.
type LocatorError struct {
	Name string
	Err  error
}

func (e *LocatorError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("locate: %v", e.Err)
	}
	return fmt.Sprintf("locate %q: %v", e.Name, e.Err)
}

func (e *LocatorError) Unwrap() error { return e.Err }

// DownloadError is returned when fetching a located asset fails.
type DownloadError struct {
	Name string
	URL  string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %q: %v", e.Name, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// PageFetchError ends pagination for the whole run.
//
// StatusCode is zero when the request never produced a response or the
// response body could not be decoded.
type PageFetchError struct {
	Page       int
	StatusCode int
	Message    string
	Err        error
}

func (e *PageFetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch page %d: status %d: %s", e.Page, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("fetch page %d: %v", e.Page, e.Err)
	default:
		return fmt.Sprintf("fetch page %d: %s", e.Page, e.Message)
	}
}

func (e *PageFetchError) Unwrap() error { return e.Err }
