package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Response states. A response is PENDING until its status line and headers
// are committed to the wire, BODY while its body sink is open, and COMPLETE
// once the sink is closed (or immediately after commit when there is no body).
const (
	statePending = iota
	stateBody
	stateComplete
)

// compressMinLength is the default body size below which automatic gzip
// compression is skipped; compressing tiny payloads expands them.
const compressMinLength = 850

var (
	errResponseCommitted = errors.New("response headers already committed")
	errResponseComplete  = errors.New("response already complete")
)

// Response builds and emits one HTTP response. Properties may be changed
// freely until the first write commits the status line and headers; after
// that they are frozen.
type Response struct {
	state  int
	status int
	reason string

	headers       []Header // lowercase names, insertion order
	connectionSet bool

	chunked       bool
	compress      bool
	contentLength int64
	closeAfter    bool
	flushChunks   bool
	compressMin   int

	req  *Request
	bw   *bufio.Writer
	body io.WriteCloser

	written int64
	hooks   []func(*Response)
}

func newResponse(req *Request, bw *bufio.Writer, flushChunks bool) *Response {
	return &Response{
		status:        200,
		contentLength: -1,
		compressMin:   compressMinLength,
		req:           req,
		bw:            bw,
		flushChunks:   flushChunks,
	}
}

// Status sets the response status code.
func (res *Response) Status(code int) *Response {
	res.status = code
	return res
}

// Reason sets the status-line reason text. The default is empty.
func (res *Response) Reason(text string) *Response {
	res.reason = text
	return res
}

// ContentType sets the content-type header.
func (res *Response) ContentType(ct string) *Response {
	return res.SetHeader("content-type", ct)
}

// ContentLength declares a fixed body length, disabling auto-chunking.
func (res *Response) ContentLength(n int64) *Response {
	res.contentLength = n
	return res
}

// Chunked forces chunked transfer coding for the body.
func (res *Response) Chunked() *Response {
	res.chunked = true
	return res
}

// Compress requests gzip content encoding. It takes effect only when the
// client's accept-encoding includes gzip.
func (res *Response) Compress() *Response {
	res.compress = true
	return res
}

// CloseAfter requests that the connection be closed once this response has
// been written.
func (res *Response) CloseAfter() *Response {
	res.closeAfter = true
	return res
}

// SetHeader appends a response header. Names are lowercased; headers are
// emitted in insertion order. Setting a connection header suppresses the
// automatic keep-alive/close emission.
func (res *Response) SetHeader(name, value string) *Response {
	lower := strings.ToLower(name)
	if lower == "connection" {
		res.connectionSet = true
	}
	res.headers = append(res.headers, Header{Name: lower, LowerName: lower, Value: value})
	return res
}

// Committed reports whether the status line and headers have been written.
func (res *Response) Committed() bool { return res.state != statePending }

// Completed reports whether the response, including any body, is fully on
// the wire.
func (res *Response) Completed() bool { return res.state == stateComplete }

// StatusCode returns the status code that was (or will be) sent.
func (res *Response) StatusCode() int { return res.status }

// BytesWritten returns the number of body bytes emitted so far, including
// framing overhead of the chunked coding.
func (res *Response) BytesWritten() int64 { return res.written }

// CloseRequested reports whether the connection will close after this
// response. Meaningful once the response is committed.
func (res *Response) CloseRequested() bool { return res.closeAfter }

// onComplete registers a hook invoked once when the response reaches
// COMPLETE.
func (res *Response) onComplete(fn func(*Response)) {
	res.hooks = append(res.hooks, fn)
}

func (res *Response) runHooks() {
	for _, fn := range res.hooks {
		fn(res)
	}
	res.hooks = nil
}

// WriteString sends s as the complete response body. When s is below the
// compression threshold, automatic compression is skipped and a fixed
// content-length is used even if chunking was requested.
func (res *Response) WriteString(s string) error {
	if res.state != statePending {
		return errResponseCommitted
	}
	willCompress := res.compress && len(s) >= res.compressMin && acceptsGzip(res.req)
	if len(s) < res.compressMin {
		res.compress = false
		res.chunked = false
		res.contentLength = int64(len(s))
	} else if !willCompress {
		res.compress = false
		if !res.chunked && res.contentLength < 0 {
			res.contentLength = int64(len(s))
		}
	}
	w, err := res.BodyWriter()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, s); err != nil {
		return err
	}
	return w.Close()
}

// Stream copies r to the response body and completes the response.
func (res *Response) Stream(r io.Reader) error {
	w, err := res.BodyWriter()
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		return err
	}
	return w.Close()
}

// BodyWriter commits the response with a body and returns the body sink.
// Closing the sink completes the response without closing the connection.
func (res *Response) BodyWriter() (io.WriteCloser, error) {
	switch res.state {
	case statePending:
		if err := res.beginResponse(true); err != nil {
			return nil, err
		}
	case stateComplete:
		return nil, errResponseComplete
	}
	return res.body, nil
}

// NoContent commits the response without a body and completes it.
func (res *Response) NoContent() error {
	if res.state != statePending {
		return errResponseCommitted
	}
	return res.beginResponse(false)
}

// beginResponse emits the status line and headers and, when a body follows,
// assembles the output stack: close-interceptor, then the chunked encoder,
// then the gzip encoder outermost.
func (res *Response) beginResponse(withBody bool) error {
	compress := withBody && res.compress && acceptsGzip(res.req)
	res.compress = compress

	if _, err := fmt.Fprintf(res.bw, "HTTP/1.1 %d %s\r\n", res.status, res.reason); err != nil {
		return err
	}
	if compress {
		if err := res.writeHeaderLine("content-encoding", "gzip"); err != nil {
			return err
		}
	}
	for _, h := range res.headers {
		if err := res.writeHeaderLine(h.Name, h.Value); err != nil {
			return err
		}
	}
	chunked := false
	if withBody {
		if res.chunked || res.contentLength < 0 {
			chunked = true
			if err := res.writeHeaderLine("transfer-encoding", "chunked"); err != nil {
				return err
			}
		} else {
			if err := res.writeHeaderLine("content-length", strconv.FormatInt(res.contentLength, 10)); err != nil {
				return err
			}
		}
	}
	res.closeAfter = res.closeAfter || res.req.closeAfter
	if !res.connectionSet {
		v := "keep-alive"
		if res.closeAfter {
			v = "close"
		}
		if err := res.writeHeaderLine("connection", v); err != nil {
			return err
		}
	}
	if _, err := res.bw.WriteString("\r\n"); err != nil {
		return err
	}

	if !withBody {
		res.state = stateComplete
		if err := res.bw.Flush(); err != nil {
			return err
		}
		res.runHooks()
		return nil
	}

	res.state = stateBody
	var w io.WriteCloser = &interceptWriter{res: res}
	if chunked {
		w = &chunkedWriter{res: res, inner: w}
	}
	if compress {
		w = newGzipSink(w)
	}
	res.body = w
	return nil
}

func (res *Response) writeHeaderLine(name, value string) error {
	_, err := fmt.Fprintf(res.bw, "%s: %s\r\n", name, value)
	return err
}

func acceptsGzip(req *Request) bool {
	if req == nil {
		return false
	}
	ae := req.Header("accept-encoding")
	for _, enc := range strings.Split(ae, ",") {
		enc = strings.Trim(enc, " \t")
		if i := strings.IndexByte(enc, ';'); i >= 0 {
			enc = strings.TrimRight(enc[:i], " \t")
		}
		if strings.EqualFold(enc, "gzip") {
			return true
		}
	}
	return false
}
