package server

import (
	"errors"
	"io"
	"strconv"

	"github.com/klauspost/compress/gzip"
)

// The response body sink is a stack of small codec layers. The innermost
// layer intercepts Close: closing the sink means "response complete", never
// "close the connection". Outer layers propagate Close inward after writing
// their terminator bytes.

// interceptWriter writes body bytes to the connection writer and counts them.
// Close flushes the connection writer and moves the response to COMPLETE
// without touching the underlying socket.
type interceptWriter struct {
	res    *Response
	closed bool
}

func (w *interceptWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errResponseComplete
	}
	n, err := w.res.bw.Write(p)
	w.res.written += int64(n)
	return n, err
}

func (w *interceptWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.res.state = stateComplete
	if err := w.res.bw.Flush(); err != nil {
		return err
	}
	w.res.runHooks()
	return nil
}

var errSingleByteChunk = errors.New("refusing to write a 1-byte chunk")

// chunkedWriter frames each write as `hex-size CRLF data CRLF` and emits the
// `0 CRLF CRLF` terminator on close. Writes of a single byte are rejected;
// they would flood the wire with framing overhead.
type chunkedWriter struct {
	res    *Response
	inner  io.WriteCloser
	closed bool
}

func (w *chunkedWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errResponseComplete
	}
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) == 1 {
		return 0, errSingleByteChunk
	}
	if _, err := io.WriteString(w.inner, strconv.FormatInt(int64(len(p)), 16)+"\r\n"); err != nil {
		return 0, err
	}
	n, err := w.inner.Write(p)
	if err != nil {
		return n, err
	}
	if _, err := io.WriteString(w.inner, "\r\n"); err != nil {
		return n, err
	}
	// Flushing per chunk lets server-sent events reach the client promptly;
	// it is off by default for throughput.
	if w.res.flushChunks {
		if err := w.res.bw.Flush(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (w *chunkedWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if _, err := io.WriteString(w.inner, "0\r\n\r\n"); err != nil {
		return err
	}
	return w.inner.Close()
}

// gzipSink layers gzip content encoding over the body sink. Every write is
// followed by a sync flush so the compressed bytes reach the layers below
// immediately instead of sitting in the deflate buffer until Close; without
// it, streamed responses would not leave the server incrementally. Close
// finishes the gzip stream and then closes the inner layer.
type gzipSink struct {
	gz    *gzip.Writer
	inner io.WriteCloser
}

func newGzipSink(inner io.WriteCloser) *gzipSink {
	return &gzipSink{gz: gzip.NewWriter(inner), inner: inner}
}

func (w *gzipSink) Write(p []byte) (int, error) {
	n, err := w.gz.Write(p)
	if err != nil {
		return n, err
	}
	if err := w.gz.Flush(); err != nil {
		return n, err
	}
	return n, nil
}

func (w *gzipSink) Close() error {
	if err := w.gz.Close(); err != nil {
		return err
	}
	return w.inner.Close()
}
