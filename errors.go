package shadow

import (
	"errors"

	"github.com/pthm/shadow/lib/encoding"
)

// Sentinel errors for component operations.
var (
	ErrNotProducer       = errors.New("shadow: template producer must be a function")
	ErrNoElement         = errors.New("shadow: component has no *shadow.Element; call shadow.New in its constructor")
	ErrInvalidTag        = errors.New("shadow: invalid tag name")
	ErrUndiscoverableTag = errors.New("shadow: tag name could not be derived")
	ErrTagCollision      = errors.New("shadow: tag already defined by another class")
	ErrUnknownTag        = errors.New("shadow: no class defined for tag")
	ErrUnregistered      = errors.New("shadow: component type is not registered")
	ErrAlreadyMounted    = errors.New("shadow: element already mounted")
	ErrNotMounted        = errors.New("shadow: element not mounted")
	ErrSnapshotInvalid   = errors.New("shadow: state snapshot rejected")
)

// IsUsageError reports whether err is a programming error surfaced by the
// runtime rather than a recoverable condition.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrNotProducer) || errors.Is(err, ErrNoElement)
}

// IsRegistrationError reports whether err came from defining or linking a
// component class.
func IsRegistrationError(err error) bool {
	return errors.Is(err, ErrInvalidTag) ||
		errors.Is(err, ErrUndiscoverableTag) ||
		errors.Is(err, ErrTagCollision) ||
		errors.Is(err, ErrUnknownTag) ||
		errors.Is(err, ErrUnregistered)
}

// wrapEncodingError maps snapshot codec failures onto ErrSnapshotInvalid.
func wrapEncodingError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, encoding.ErrInvalidFormat) ||
		errors.Is(err, encoding.ErrSignatureInvalid) ||
		errors.Is(err, encoding.ErrDecryptFailed) {
		return errors.Join(ErrSnapshotInvalid, err)
	}
	return err
}
