package server

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/google/uuid"
)

// Connection owns one TCP peer: the socket, the buffered reader and writer,
// and exactly one currently-active exchange. The initial exchange is HTTP;
// a successful WebSocket handshake swaps in the frame loop while the
// buffered streams carry over.
type Connection struct {
	id  string
	srv *Server
	nc  net.Conn
	br  *bufio.Reader
	bw  *bufio.Writer
	log *slog.Logger

	exch exchange
	next exchange
}

func newConnection(srv *Server, nc net.Conn) *Connection {
	c := &Connection{
		id:  uuid.NewString(),
		srv: srv,
		nc:  nc,
		br:  bufio.NewReaderSize(nc, srv.opts.InputBufferSize),
		bw:  bufio.NewWriterSize(nc, srv.opts.OutputBufferSize),
	}
	c.log = srv.opts.Logger.With(
		slog.String("conn_id", c.id),
		slog.String("remote_addr", nc.RemoteAddr().String()),
	)
	c.exch = newHTTPExchange(c)
	return c
}

// ID returns the connection's identifier, unique per accepted socket.
func (c *Connection) ID() string { return c.id }

// RemoteAddr returns the peer address.
func (c *Connection) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// upgrade installs the next exchange. The current exchange returns from its
// process loop after the in-flight iteration and run picks up the
// replacement on the same task.
func (c *Connection) upgrade(next exchange) {
	c.next = next
}

func (c *Connection) upgradePending() bool { return c.next != nil }

// run drives the connection until its exchange completes without a pending
// replacement, then closes the socket.
func (c *Connection) run() {
	defer func() {
		// Recover programmer errors raised by an exchange (e.g. a handler
		// that committed a response but never completed it) so a single bad
		// handler cannot crash the whole server process.
		if r := recover(); r != nil {
			c.log.Error("connection panic recovered", slog.Any("recover", r))
		}
		c.nc.Close()
		c.srv.removeConnection(c)
		c.log.Debug("connection closed")
	}()
	c.log.Debug("connection accepted")
	for {
		err := c.exch.process()
		if err != nil {
			if !isDisconnectError(err) {
				c.log.Warn("connection error", slog.Any("error", err))
			}
			return
		}
		if c.next != nil {
			c.exch, c.next = c.next, nil
			c.log.Debug("connection upgraded to websocket")
			continue
		}
		return
	}
}

// isDisconnectError reports whether err is an expected consequence of the
// peer or the server closing the socket, which is not worth logging.
func isDisconnectError(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}
