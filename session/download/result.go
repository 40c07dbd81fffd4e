package download

import (
	"context"
	"slices"
)

// Result represents an in-flight or completed async download. It
// settles exactly once, with either the written path or an error.
type Result struct {
	adder  Adder
	done   chan struct{}
	path   string
	err    error
	cancel context.CancelFunc
	queue  *Queue
}

// settle is only called by the goroutine owning r, before done closes.
func (r *Result) settle(path string, err error) {
	r.path, r.err = path, err
	if err != nil {
		r.queue.recordErr(err)
	}
}

// Add another download to the same batch.
// It calls the injected Adder and reuses the existing Queue.
// WithBatch cannot be used with this method.
//
// Validation errors (unresolvable file name, conflicting options) are
// recorded in the queue so that [Result.Wait] returns them; the caller
// does not need to check each Add individually.
func (r *Result) Add(ctx context.Context, uri, dest string, optFns ...Option) *Result {
	result, err := r.adder(ctx, uri, dest, slices.Concat([]Option{withBatch(r.queue)}, optFns)...)
	if err != nil {
		return Failed(r.adder, r.queue, err)
	}
	return result
}

// Failed returns an already settled Result carrying err, recorded on q.
func Failed(adder Adder, q *Queue, err error) *Result {
	done := make(chan struct{})
	close(done)
	q.recordErr(err)
	return &Result{
		adder:  adder,
		done:   done,
		err:    err,
		cancel: func() {},
		queue:  q,
	}
}

// Done returns a channel that is closed when the specific download completes.
func (r *Result) Done() <-chan struct{} { return r.done }

// Err blocks until this download completes and returns its error.
func (r *Result) Err() error {
	<-r.done
	return r.err
}

// Path blocks until this download completes and returns the written
// path, or an error if it failed.
func (r *Result) Path() (string, error) {
	<-r.done
	return r.path, r.err
}

// Wait blocks until all downloads in the batch complete.
// Returns all errors joined.
func (r *Result) Wait() error {
	return r.queue.Wait()
}

// Shutdown stops downloads in the batch that have not started yet; they
// settle with ErrGroupShutdown. Running downloads are not interrupted.
func (r *Result) Shutdown() {
	r.queue.Shutdown()
}

// Cancel cancels this download's context.
func (r *Result) Cancel() {
	r.cancel()
}
