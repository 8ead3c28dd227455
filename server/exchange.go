package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// exchange is the active protocol handler on a connection: HTTP keep-alive
// or a WebSocket session. process blocks until the exchange is done or the
// connection has been upgraded.
type exchange interface {
	process() error
}

// httpExchange runs the keep-alive request loop: parse a request, dispatch it
// through the handler chain, enforce body draining and response completion,
// then either loop for the next pipelined request or terminate.
type httpExchange struct {
	conn *Connection
	in   *Input
	log  *slog.Logger
}

func newHTTPExchange(conn *Connection) *httpExchange {
	opts := &conn.srv.opts
	return &httpExchange{
		conn: conn,
		in:   NewInput(conn.br, opts.MaxRequestBodySize, opts.MaxChunkSize),
		log:  conn.log,
	}
}

func (e *httpExchange) process() error {
	for {
		req, err := e.in.ReadRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Client closed between requests.
				return nil
			}
			var bad *BadRequestError
			if errors.As(err, &bad) {
				e.log.Debug("rejecting malformed request", slog.String("reason", bad.Message))
				e.writeBadRequest(bad.Message)
				return nil
			}
			return err
		}
		req.conn = e.conn

		res := newResponse(req, e.conn.bw, e.conn.srv.opts.FlushChunks)
		for _, h := range e.conn.srv.handlerChain() {
			if err := h.Handle(req, res); err != nil {
				return fmt.Errorf("handler: %w", err)
			}
			if res.Committed() {
				break
			}
		}
		if !res.Committed() {
			res.Status(404).ContentType("text/plain")
			if err := res.WriteString("Not found."); err != nil {
				return err
			}
		}
		if !res.Completed() {
			// A handler committed headers but left the body sink open. This is
			// a programmer error, not a protocol condition; the connection
			// layer recovers it and tears the connection down.
			panic(fmt.Sprintf("handler for %s %s committed a response but did not complete it", req.Method, req.Target))
		}
		if err := req.closeBody(); err != nil {
			var bad *BadRequestError
			if errors.As(err, &bad) {
				// Malformed body framing discovered while draining; the
				// response is already on the wire, so just drop the
				// connection.
				e.log.Debug("dropping connection with malformed body", slog.String("reason", bad.Message))
				return nil
			}
			return err
		}
		if e.conn.upgradePending() {
			return nil
		}
		if res.CloseRequested() {
			return nil
		}
	}
}

// writeBadRequest emits the canonical minimal 400 and leaves the connection
// to be closed by the caller.
func (e *httpExchange) writeBadRequest(msg string) {
	fmt.Fprintf(e.conn.bw,
		"HTTP/1.1 400 \r\ncontent-type: text/plain\r\ncontent-length: %d\r\nconnection: close\r\n\r\n%s",
		len(msg), msg)
	if err := e.conn.bw.Flush(); err != nil {
		e.log.Debug("failed to write 400 response", slog.Any("error", err))
	}
}
