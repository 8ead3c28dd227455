package server

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
)

// wsWindowSize is the DEFLATE sliding-window size; only the full 15-bit
// window is supported during negotiation.
const wsWindowSize = 32 * 1024

// wsDeflateTail is the empty-stored-block tail appended before inflating a
// message (RFC 7692 §7.2.2), followed by a final empty block so the reader
// terminates instead of reporting an unexpected EOF.
var wsDeflateTail = []byte{0x00, 0x00, 0xff, 0xff, 0x01, 0x00, 0x00, 0xff, 0xff}

// wsCompression holds the negotiated permessage-deflate parameters and the
// raw-DEFLATE engines for one WebSocket session. The engines are owned by
// the session and released when it ends.
type wsCompression struct {
	serverNoContextTakeover bool
	clientNoContextTakeover bool

	cw  *flate.Writer
	buf bytes.Buffer

	dr   io.ReadCloser
	dict []byte // decompressor sliding window, nil under client_no_context_takeover
}

func newWSCompression(serverNoContextTakeover, clientNoContextTakeover bool) *wsCompression {
	return &wsCompression{
		serverNoContextTakeover: serverNoContextTakeover,
		clientNoContextTakeover: clientNoContextTakeover,
	}
}

// Compress deflates one outbound message and strips the trailing
// 0x00 0x00 0xFF 0xFF of the sync flush (RFC 7692 §7.2.1). The LZ77 context
// is preserved across messages unless server_no_context_takeover was agreed,
// in which case the deflater is reset first. The stream is never finished:
// finishing would destroy the sliding window.
func (c *wsCompression) Compress(p []byte) ([]byte, error) {
	if len(p) == 0 {
		return nil, nil
	}
	if c.cw == nil {
		// The fast levels (1-6) drop their match history after flushing a
		// block shorter than 128 bytes; the higher levels keep the window.
		cw, err := flate.NewWriter(&c.buf, flate.BestCompression)
		if err != nil {
			return nil, err
		}
		c.cw = cw
	} else if c.serverNoContextTakeover {
		c.cw.Reset(&c.buf)
	}
	c.buf.Reset()
	if _, err := c.cw.Write(p); err != nil {
		return nil, err
	}
	if err := c.cw.Flush(); err != nil {
		return nil, err
	}
	out := c.buf.Bytes()
	// A sync flush always ends with the 4-byte empty stored block.
	out = out[:len(out)-4]
	cp := make([]byte, len(out))
	copy(cp, out)
	return cp, nil
}

// Decompress inflates one inbound message after appending the stored-block
// tail (RFC 7692 §7.2.2). Under client_no_context_takeover each message is
// inflated independently; otherwise the sliding window of prior messages is
// carried as the inflater dictionary.
func (c *wsCompression) Decompress(p []byte) ([]byte, error) {
	data := make([]byte, 0, len(p)+len(wsDeflateTail))
	data = append(data, p...)
	data = append(data, wsDeflateTail...)
	src := bytes.NewReader(data)
	if c.dr == nil {
		c.dr = flate.NewReaderDict(src, c.dict)
	} else if err := c.dr.(flate.Resetter).Reset(src, c.dict); err != nil {
		return nil, err
	}
	out, err := io.ReadAll(c.dr)
	if err != nil {
		return nil, err
	}
	if !c.clientNoContextTakeover {
		c.dict = appendWindow(c.dict, out)
	}
	return out, nil
}

// Close releases the deflate engines.
func (c *wsCompression) Close() {
	if c.dr != nil {
		c.dr.Close()
		c.dr = nil
	}
	c.cw = nil
	c.dict = nil
}

// appendWindow appends out to the window, keeping only the trailing
// wsWindowSize bytes.
func appendWindow(window, out []byte) []byte {
	window = append(window, out...)
	if len(window) > wsWindowSize {
		window = window[len(window)-wsWindowSize:]
	}
	return window
}
