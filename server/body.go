package server

import (
	"bufio"
	"io"
)

// fixedBody reads at most the declared number of bytes from the connection
// and reports io.EOF thereafter. It never closes the underlying stream; its
// own Close drains the unread remainder so the connection is positioned at
// the next request.
type fixedBody struct {
	r         *bufio.Reader
	remaining int64
	closed    bool
}

func (b *fixedBody) Read(p []byte) (int, error) {
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	if b.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.r.Read(p)
	b.remaining -= int64(n)
	if err == io.EOF && b.remaining > 0 {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (b *fixedBody) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.remaining > 0 {
		if _, err := io.CopyN(io.Discard, b.r, b.remaining); err != nil {
			return err
		}
		b.remaining = 0
	}
	return nil
}

// chunkedBody presents a chunked transfer coding as a contiguous byte stream.
// io.EOF is reported after the terminal chunk; trailers from the terminal
// chunk are retained. Close consumes and discards remaining chunks, leaving
// the connection open.
type chunkedBody struct {
	in       *Input
	cur      []byte
	done     bool
	closed   bool
	trailers []Header
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	for len(b.cur) == 0 {
		if b.done {
			return 0, io.EOF
		}
		chunk, err := b.in.ReadChunk()
		if err != nil {
			return 0, err
		}
		if chunk.IsLast() {
			b.done = true
			b.trailers = chunk.Trailers
			return 0, io.EOF
		}
		b.cur = chunk.Data
	}
	n := copy(p, b.cur)
	b.cur = b.cur[n:]
	return n, nil
}

func (b *chunkedBody) Close() error {
	if b.closed {
		return nil
	}
	b.cur = nil
	for !b.done {
		chunk, err := b.in.ReadChunk()
		if err != nil {
			b.closed = true
			return err
		}
		if chunk.IsLast() {
			b.done = true
			b.trailers = chunk.Trailers
		}
	}
	b.closed = true
	return nil
}
