package stream

import (
	"context"
	"errors"
	"io"
)

const defaultReadSize = 4 * 1024

type drainConfig struct {
	tee      io.Writer
	readSize int
}

// DrainOption configures Drain.
type DrainOption func(*drainConfig)

// WithTee copies every raw byte read from the source to w, verbatim, before
// it is decoded. Used to capture the wire stream for debugging.
func WithTee(w io.Writer) DrainOption {
	return func(c *drainConfig) {
		c.tee = w
	}
}

// WithReadSize sets the maximum fragment size read per call.
func WithReadSize(n int) DrainOption {
	return func(c *drainConfig) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// Drain reads src until EOF, feeding every fragment to d, and closes d.
//
// A read error or context cancellation is returned as a *TransportError.
// d is closed in every case, so a record completed by the bytes received
// before the failure is still delivered.
func Drain(ctx context.Context, src io.Reader, d *Decoder, opts ...DrainOption) error {
	cfg := &drainConfig{readSize: defaultReadSize}
	for _, opt := range opts {
		opt(cfg)
	}

	defer d.Close()

	buf := make([]byte, cfg.readSize)
	for {
		if err := ctx.Err(); err != nil {
			return &TransportError{Err: errors.Join(ErrStreamClosed, err)}
		}

		n, err := src.Read(buf)
		if n > 0 {
			if cfg.tee != nil {
				if _, werr := cfg.tee.Write(buf[:n]); werr != nil {
					return &TransportError{Err: werr}
				}
			}
			d.Feed(string(buf[:n]))
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return &TransportError{Err: errors.Join(ErrStreamClosed, ctxErr)}
			}
			return &TransportError{Err: err}
		}
	}
}
