package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// wsMaxOutboundFrameSize is the largest single outbound frame; longer
// messages are fragmented.
const wsMaxOutboundFrameSize = 1 << 20

// wsCompressMinSize is the smallest outbound message worth compressing.
// RFC 7692 §6.1 allows opting out per message.
const wsCompressMinSize = 256

// WebSocketHandler receives the events of one WebSocket session. Every
// event callback may return a replacement handler for subsequent events;
// returning nil keeps the current handler. This lets application state
// machines advance without extra fields: state ← step(state, event).
//
// OnClose is invoked exactly once when the session ends, with the client's
// close code, the close code of a protocol violation that ended the session,
// or 1006 when the connection ended without a close frame.
type WebSocketHandler interface {
	OnStart(s *WebSocketSession) WebSocketHandler
	OnText(s *WebSocketSession, text string) WebSocketHandler
	OnBinary(s *WebSocketSession, data []byte) WebSocketHandler
	OnPing(s *WebSocketSession, payload []byte) WebSocketHandler
	OnPong(s *WebSocketSession, payload []byte) WebSocketHandler
	OnClose(code int, reason string)
}

// BaseWebSocketHandler is a WebSocketHandler with no-op callbacks, except
// that pings are answered with a pong carrying the identical payload. Embed
// it to implement only the events you care about.
type BaseWebSocketHandler struct{}

func (BaseWebSocketHandler) OnStart(*WebSocketSession) WebSocketHandler           { return nil }
func (BaseWebSocketHandler) OnText(*WebSocketSession, string) WebSocketHandler    { return nil }
func (BaseWebSocketHandler) OnBinary(*WebSocketSession, []byte) WebSocketHandler  { return nil }
func (BaseWebSocketHandler) OnPong(*WebSocketSession, []byte) WebSocketHandler    { return nil }
func (BaseWebSocketHandler) OnClose(int, string)                                  {}
func (BaseWebSocketHandler) OnPing(s *WebSocketSession, payload []byte) WebSocketHandler {
	_ = s.SendPong(payload)
	return nil
}

var errSessionClosed = errors.New("websocket session closed")

// WebSocketSession is the WebSocket exchange on an upgraded connection. It
// runs the inbound frame loop and offers thread-safe outbound sends: the
// writer lock serializes concurrent senders into whole, non-interleaved
// frames on the wire.
type WebSocketSession struct {
	conn *Connection
	in   *wsInput
	comp *wsCompression
	log  *slog.Logger

	handler WebSocketHandler

	// Fragmentation reassembly state, owned by the frame loop.
	inFragmented   bool
	fragOpcode     byte
	fragCompressed bool
	fragBuf        []byte

	writeMu   sync.Mutex
	closeSent bool
}

func newWebSocketSession(conn *Connection, h WebSocketHandler, comp *wsCompression, maxPayload int64) *WebSocketSession {
	if maxPayload <= 0 {
		maxPayload = wsDefaultMaxPayload
	}
	return &WebSocketSession{
		conn:    conn,
		in:      &wsInput{r: conn.br, maxPayload: maxPayload, compressed: comp != nil},
		comp:    comp,
		log:     conn.log,
		handler: h,
	}
}

// Compressed reports whether permessage-deflate was negotiated for this
// session.
func (s *WebSocketSession) Compressed() bool { return s.comp != nil }

// process runs the frame loop until the close handshake, stream end, or a
// protocol violation. The handler's OnClose always runs exactly once.
func (s *WebSocketSession) process() error {
	defer func() {
		if s.comp != nil {
			s.comp.Close()
		}
	}()

	h := s.handler
	if next := h.OnStart(s); next != nil {
		h = next
	}

	// Abnormal closure unless a close frame arrives.
	closeCode := wsCloseStatusAbnormalClosure
	closeReason := ""

	defer func() {
		h.OnClose(closeCode, closeReason)
	}()

	for {
		f, err := s.in.ReadFrame()
		if err != nil {
			var pe *ProtocolError
			if errors.As(err, &pe) {
				s.sendCloseLocked(pe.Code, pe.Reason)
				closeCode, closeReason = pe.Code, pe.Reason
				return nil
			}
			// EOF without a close frame, or the socket died under us.
			return nil
		}

		switch f.opcode {
		case wsCloseMessage:
			code := wsCloseStatusNoStatusReceived
			reason := ""
			if len(f.payload) >= 2 {
				code = int(binary.BigEndian.Uint16(f.payload[:2]))
				// The reason is surfaced as raw bytes; no UTF-8 validation.
				reason = string(f.payload[2:])
			}
			echo := code
			if echo == wsCloseStatusNoStatusReceived {
				echo = wsCloseStatusNormalClosure
			}
			s.sendCloseLocked(echo, "")
			closeCode, closeReason = code, reason
			return nil

		case wsPingMessage:
			h = wsStep(h, h.OnPing(s, f.payload))

		case wsPongMessage:
			h = wsStep(h, h.OnPong(s, f.payload))

		default:
			next, pe := s.handleDataFrame(h, f)
			if pe != nil {
				s.sendCloseLocked(pe.Code, pe.Reason)
				closeCode, closeReason = pe.Code, pe.Reason
				return nil
			}
			h = next
		}
	}
}

// handleDataFrame advances the fragmentation state machine for a TEXT,
// BINARY, or CONTINUATION frame and dispatches any completed message.
func (s *WebSocketSession) handleDataFrame(h WebSocketHandler, f *wsFrame) (WebSocketHandler, *ProtocolError) {
	if f.opcode == wsContinuationFrame {
		if !s.inFragmented {
			return h, protocolErrorf(wsCloseStatusProtocolError, "invalid continuation frame")
		}
		if f.rsv1 {
			return h, protocolErrorf(wsCloseStatusProtocolError, "compressed bit set on continuation frame")
		}
		if int64(len(s.fragBuf)+len(f.payload)) > s.in.maxPayload {
			return h, protocolErrorf(wsCloseStatusMessageTooBig,
				"fragmented message exceeds maximum allowed of %d bytes", s.in.maxPayload)
		}
		s.fragBuf = append(s.fragBuf, f.payload...)
		if !f.fin {
			return h, nil
		}
		payload, opcode, compressed := s.fragBuf, s.fragOpcode, s.fragCompressed
		s.inFragmented, s.fragBuf, s.fragOpcode, s.fragCompressed = false, nil, 0, false
		return s.dispatchMessage(h, opcode, payload, compressed)
	}

	if s.inFragmented {
		return h, protocolErrorf(wsCloseStatusProtocolError,
			"new message started before final frame for previous message was received")
	}
	if f.fin {
		return s.dispatchMessage(h, f.opcode, f.payload, f.rsv1)
	}
	s.inFragmented = true
	s.fragOpcode = f.opcode
	s.fragCompressed = f.rsv1
	s.fragBuf = append([]byte(nil), f.payload...)
	return h, nil
}

func (s *WebSocketSession) dispatchMessage(h WebSocketHandler, opcode byte, payload []byte, compressed bool) (WebSocketHandler, *ProtocolError) {
	if compressed && s.comp != nil {
		var err error
		payload, err = s.comp.Decompress(payload)
		if err != nil {
			return h, protocolErrorf(wsCloseStatusInvalidPayloadData, "invalid compressed message payload")
		}
	}
	if opcode == wsTextMessage {
		return wsStep(h, h.OnText(s, string(payload))), nil
	}
	return wsStep(h, h.OnBinary(s, payload)), nil
}

func wsStep(cur, next WebSocketHandler) WebSocketHandler {
	if next != nil {
		return next
	}
	return cur
}

// SendText sends one text message. Messages at or above the compression
// threshold are deflated when the extension was negotiated; messages longer
// than the maximum frame size are fragmented. Safe for concurrent use.
func (s *WebSocketSession) SendText(text string) error {
	return s.sendMessage(wsTextMessage, []byte(text))
}

// SendBinary sends one binary message with the same framing policy as
// SendText. Safe for concurrent use.
func (s *WebSocketSession) SendBinary(data []byte) error {
	return s.sendMessage(wsBinaryMessage, data)
}

func (s *WebSocketSession) sendMessage(opcode byte, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closeSent {
		return errSessionClosed
	}

	compressed := false
	if s.comp != nil && len(payload) >= wsCompressMinSize {
		cp, err := s.comp.Compress(payload)
		if err != nil {
			return err
		}
		payload = cp
		compressed = true
	}

	bw := s.conn.bw
	var fh [wsMaxFrameHeaderSize]byte
	if len(payload) <= wsMaxOutboundFrameSize {
		n := wsFillFrameHeader(fh[:], true, true, compressed, opcode, len(payload))
		if _, err := bw.Write(fh[:n]); err != nil {
			return err
		}
		if _, err := bw.Write(payload); err != nil {
			return err
		}
		return bw.Flush()
	}

	// Fragment: opcode and RSV1 on the first frame only, FIN on the last.
	for first := true; ; first = false {
		chunk := payload
		if len(chunk) > wsMaxOutboundFrameSize {
			chunk = chunk[:wsMaxOutboundFrameSize]
		}
		payload = payload[len(chunk):]
		final := len(payload) == 0
		n := wsFillFrameHeader(fh[:], first, final, compressed && first, opcode, len(chunk))
		if _, err := bw.Write(fh[:n]); err != nil {
			return err
		}
		if _, err := bw.Write(chunk); err != nil {
			return err
		}
		if final {
			return bw.Flush()
		}
	}
}

// SendPing sends a ping control frame. The payload must not exceed 125
// bytes.
func (s *WebSocketSession) SendPing(payload []byte) error {
	return s.sendControl(wsPingMessage, payload)
}

// SendPong sends a pong control frame. The payload must not exceed 125
// bytes.
func (s *WebSocketSession) SendPong(payload []byte) error {
	return s.sendControl(wsPongMessage, payload)
}

func (s *WebSocketSession) sendControl(opcode byte, payload []byte) error {
	if len(payload) > wsMaxControlPayloadSize {
		return fmt.Errorf("control frame payload exceeds %d bytes", wsMaxControlPayloadSize)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closeSent {
		return errSessionClosed
	}
	return s.writeControlFrame(opcode, payload)
}

// SendClose sends a close frame with the given status code and reason. Only
// the first close frame is sent; later calls are no-ops.
func (s *WebSocketSession) SendClose(code int, reason string) error {
	return s.sendCloseLocked(code, reason)
}

func (s *WebSocketSession) sendCloseLocked(code int, reason string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closeSent {
		return nil
	}
	s.closeSent = true
	return s.writeControlFrame(wsCloseMessage, wsCreateCloseMessage(code, reason))
}

func (s *WebSocketSession) writeControlFrame(opcode byte, payload []byte) error {
	bw := s.conn.bw
	var fh [wsMaxFrameHeaderSize]byte
	n := wsFillFrameHeader(fh[:], true, true, false, opcode, len(payload))
	if _, err := bw.Write(fh[:n]); err != nil {
		return err
	}
	if _, err := bw.Write(payload); err != nil {
		return err
	}
	return bw.Flush()
}
