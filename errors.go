package docximage

import "github.com/JJJJJJack/go-docx-image/internal/types"

type (
	// ConfigurationError reports a missing accessor, a hook called before
	// the host wired its context, or a malformed package.
	ConfigurationError = types.ConfigurationError
	// TypeMismatchError reports an accessor result of the wrong shape.
	TypeMismatchError = types.TypeMismatchError
)

var (
	ErrConfiguration = types.ErrConfiguration
	ErrTypeMismatch  = types.ErrTypeMismatch
)

// Size is a width and height in pixels.
type Size = types.Size

// Future is the value asynchronous accessors return instead of a result.
type Future[T any] = types.Future[T]

// Go runs fn in its own goroutine and returns a future for its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	return types.Go(fn)
}
