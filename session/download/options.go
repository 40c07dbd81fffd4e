package download

import (
	"errors"
	"hash"
)

// Option defines optional settings for downloading files.
//
// WithChecksum enables checksum validation of the decoded file.
// h is a hash.Hash instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
//
// WithProgress enables periodic download progress logging via the
// logger supplied to Handle.
//
// WithSkipExisting causes Handle to return nil immediately when
// the destination file already exists, avoiding a redundant download.
//
// WithBatch only applies to async downloads: it creates a [Queue]
// limited to maxConcurrent simultaneous downloads.
type Option func(*options) error

type options struct {
	checksum     *checksumVerifier
	progress     bool
	skipExisting bool
	batch        *int
	queue        *Queue
}

func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		opts.checksum = &checksumVerifier{hash: h, expected: expected}
		return nil
	}
}

func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}

func WithBatch(maxConcurrent int) Option {
	return func(opts *options) error {
		opts.batch = &maxConcurrent
		return nil
	}
}

// withBatch joins an existing queue; used by Result.Add.
func withBatch(q *Queue) Option {
	return func(opts *options) error {
		opts.queue = q
		return nil
	}
}

func apply(optFns []Option) (options, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return options{}, err
		}
	}

	if opts.batch != nil && opts.queue != nil {
		return options{}, errors.New("WithBatch cannot be used when adding to an existing batch")
	}

	return opts, nil
}

// Validate reports the first error among optFns without running a download.
func Validate(optFns ...Option) error {
	_, err := apply(optFns)
	return err
}

// QueueFor returns the queue an async download with optFns runs on:
// the batch being added to, a new queue limited by WithBatch, or a new
// unlimited queue.
func QueueFor(optFns ...Option) (*Queue, error) {
	opts, err := apply(optFns)
	if err != nil {
		return nil, err
	}

	switch {
	case opts.queue != nil:
		return opts.queue, nil
	case opts.batch != nil:
		return NewQueue(*opts.batch), nil
	default:
		return NewQueue(0), nil
	}
}
