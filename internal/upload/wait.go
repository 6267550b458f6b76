package upload

import "context"

// Wait waits for a started upload, aborting it if the context ends first.
//
// This is how timeouts are layered on an upload: the result is ErrAborted
// unless the upload had already completed.
func Wait(ctx context.Context, u *Upload, f *Future) (*Response, error) {
	select {
	case <-f.Done():
	case <-ctx.Done():
		u.Abort()
	}
	return f.Wait()
}
