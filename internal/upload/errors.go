package upload

import "errors"

var (
	// ErrAborted is the error of an upload cancelled with Abort.
	//
	// Callers usually treat it as "cancelled" rather than as a failure.
	ErrAborted = errors.New("abort")

	// ErrTransport matches every *TransportError with errors.Is.
	ErrTransport = errors.New("error")
)

// TransportError is the error of an upload that failed at the network
// level, for example because of a DNS failure or a reset connection.
//
// Responses with error status codes are not TransportErrors.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return ErrTransport.Error()
	}
	return ErrTransport.Error() + ": " + e.Err.Error()
}

// Is makes errors.Is(err, ErrTransport) true.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAborted reports whether err means the upload was cancelled.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
