package publisher

// EnqueueError reports that the broker client refused the hand-off.
// Nothing was sent; the caller may try again.
type EnqueueError struct {
	Err error
}

func (e *EnqueueError) Error() string {
	if e == nil || e.Err == nil {
		return "enqueue failed"
	}
	return "enqueue failed: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *EnqueueError) Unwrap() error { return e.Err }
