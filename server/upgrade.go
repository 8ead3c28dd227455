package server

import (
	"strconv"
	"strings"
)

// WebSocketOptions configures a WebSocket upgrade.
type WebSocketOptions struct {
	// Protocol, when non-empty, is echoed as sec-websocket-protocol.
	Protocol string
	// Compression enables permessage-deflate negotiation (RFC 7692).
	Compression bool
	// MaxMessageSize bounds inbound frame payloads and reassembled
	// fragmented messages. Zero means the 16 MiB default.
	MaxMessageSize int64
}

// UpgradeWebSocket performs the RFC 6455 server handshake on the current
// request. On success it sends the 101 response and installs a WebSocket
// exchange on the connection; the HTTP exchange returns after the current
// iteration and the connection continues with the frame loop, keeping its
// I/O buffers.
//
// On a failed validation the 400 response is sent and the error returned.
func UpgradeWebSocket(req *Request, res *Response, h WebSocketHandler, opts WebSocketOptions) error {
	if err := validateUpgrade(req); err != nil {
		if !res.Committed() {
			res.Status(400).ContentType("text/plain").CloseAfter()
			_ = res.WriteString(err.Error())
		}
		return err
	}

	var comp *wsCompression
	extHeader := ""
	if opts.Compression {
		if params, ok := wsNegotiateCompression(req.Header("sec-websocket-extensions")); ok {
			comp = newWSCompression(params.serverNoContextTakeover, params.clientNoContextTakeover)
			extHeader = params.responseHeader()
		}
	}

	res.Status(101).
		SetHeader("connection", "Upgrade").
		SetHeader("upgrade", "websocket").
		SetHeader("sec-websocket-accept", wsAcceptKey(req.Header("sec-websocket-key")))
	if extHeader != "" {
		res.SetHeader("sec-websocket-extensions", extHeader)
	}
	if opts.Protocol != "" {
		res.SetHeader("sec-websocket-protocol", opts.Protocol)
	}
	if err := res.NoContent(); err != nil {
		return err
	}

	req.conn.upgrade(newWebSocketSession(req.conn, h, comp, opts.MaxMessageSize))
	return nil
}

// validateUpgrade checks the handshake requirements of RFC 6455 §4.2.1.
func validateUpgrade(req *Request) error {
	if !strings.EqualFold(req.Header("upgrade"), "websocket") {
		return badRequestf("Missing or invalid Upgrade header field for WebSocket handshake")
	}
	if !headerContainsToken(req.Header("connection"), "upgrade") {
		return badRequestf("Connection header field does not contain the upgrade token")
	}
	if req.Header("sec-websocket-key") == "" {
		return badRequestf("Missing Sec-WebSocket-Key header field")
	}
	if strings.TrimSpace(req.Header("sec-websocket-version")) != "13" {
		return badRequestf("Unsupported Sec-WebSocket-Version, expected 13")
	}
	return nil
}

type wsExtensionParams struct {
	serverNoContextTakeover bool
	clientNoContextTakeover bool
}

func (p wsExtensionParams) responseHeader() string {
	h := "permessage-deflate"
	if p.serverNoContextTakeover {
		h += "; server_no_context_takeover"
	}
	if p.clientNoContextTakeover {
		h += "; client_no_context_takeover"
	}
	return h
}

// wsNegotiateCompression scans the client's sec-websocket-extensions offers
// left to right and accepts the first permessage-deflate offer whose
// parameters we support. Only the full 15-bit window is implemented, so any
// explicit window-bits value other than 15 rejects the offer, as does any
// unknown parameter.
func wsNegotiateCompression(header string) (wsExtensionParams, bool) {
	for _, offer := range strings.Split(header, ",") {
		params, ok := wsParseDeflateOffer(strings.Trim(offer, " \t"))
		if ok {
			return params, true
		}
	}
	return wsExtensionParams{}, false
}

func wsParseDeflateOffer(offer string) (wsExtensionParams, bool) {
	var out wsExtensionParams
	parts := strings.Split(offer, ";")
	if !strings.EqualFold(strings.Trim(parts[0], " \t"), "permessage-deflate") {
		return out, false
	}
	for _, p := range parts[1:] {
		name, value, hasValue := strings.Cut(strings.Trim(p, " \t"), "=")
		name = strings.ToLower(strings.Trim(name, " \t"))
		value = strings.Trim(value, " \t\"")
		switch name {
		case "server_no_context_takeover":
			if hasValue {
				return out, false
			}
			out.serverNoContextTakeover = true
		case "client_no_context_takeover":
			if hasValue {
				return out, false
			}
			out.clientNoContextTakeover = true
		case "server_max_window_bits":
			// The value is required for this parameter.
			if !hasValue || !wsIsWindowBits15(value) {
				return out, false
			}
		case "client_max_window_bits":
			// A bare parameter declares a client capability and is fine.
			if hasValue && !wsIsWindowBits15(value) {
				return out, false
			}
		default:
			return out, false
		}
	}
	return out, true
}

func wsIsWindowBits15(value string) bool {
	n, err := strconv.Atoi(value)
	return err == nil && n == 15
}
