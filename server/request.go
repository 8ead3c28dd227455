package server

import (
	"io"
	"strings"
)

type bodyMode int

const (
	bodyNone bodyMode = iota
	bodyFixed
	bodyChunked
)

// Request is an immutable view of one parsed HTTP request. It is valid until
// the handler returns and the exchange moves on to the next request in the
// keep-alive pipeline.
type Request struct {
	// Method is the request method, uppercased.
	Method string
	// Target is the raw request-target exactly as received.
	Target string
	// Proto is the protocol version, "HTTP/1.1" or "HTTP/1.0".
	Proto string

	headers       []Header
	merged        map[string]string
	mode          bodyMode
	contentLength int64
	closeAfter    bool

	in   *Input
	conn *Connection
	body io.ReadCloser

	// authValue carries claims attached by an authenticating handler so that
	// downstream handlers can inspect them.
	authValue any
}

// Header returns the value of the named header. Lookup is case-insensitive;
// duplicate fields have been joined with ", " in wire order. The empty string
// means the field is absent.
func (r *Request) Header(name string) string {
	return r.merged[strings.ToLower(name)]
}

// Headers returns the header fields in wire order with their original
// capitalization. The returned slice must not be modified.
func (r *Request) Headers() []Header {
	return r.headers
}

// HasBody reports whether the request declared a body, either via
// Content-Length or chunked transfer coding.
func (r *Request) HasBody() bool {
	return r.mode != bodyNone
}

// ContentLength returns the declared body length, or -1 when the body is
// chunked or absent.
func (r *Request) ContentLength() int64 {
	if r.mode != bodyFixed {
		return -1
	}
	return r.contentLength
}

// Body returns a reader over the request body. Reading yields exactly the
// declared bytes (or the concatenated chunk data for chunked requests) and
// then io.EOF. Closing the body drains any unread remainder without closing
// the underlying connection. For requests without a body it returns an empty
// reader.
func (r *Request) Body() io.ReadCloser {
	if r.body == nil {
		switch r.mode {
		case bodyFixed:
			r.body = &fixedBody{r: r.in.r, remaining: r.contentLength}
		case bodyChunked:
			r.body = &chunkedBody{in: r.in}
		default:
			r.body = emptyBody{}
		}
	}
	return r.body
}

// Trailers returns the trailer fields that followed the terminal chunk of a
// chunked body. It is nil until the body has been read to completion.
func (r *Request) Trailers() []Header {
	if cb, ok := r.body.(*chunkedBody); ok {
		return cb.trailers
	}
	return nil
}

// closeBody drains and closes the body so the connection is positioned at the
// next request. Safe to call whether or not the handler touched the body.
func (r *Request) closeBody() error {
	if r.mode == bodyNone {
		return nil
	}
	return r.Body().Close()
}

type emptyBody struct{}

func (emptyBody) Read([]byte) (int, error) { return 0, io.EOF }
func (emptyBody) Close() error             { return nil }
