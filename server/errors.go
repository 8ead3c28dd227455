package server

import "fmt"

// BadRequestError reports malformed bytes on the HTTP wire. The message is
// sent verbatim as the plain-text body of the 400 response, so it should be
// a complete sentence describing the defect.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string { return e.Message }

func badRequestf(format string, args ...any) *BadRequestError {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

// ProtocolError reports a WebSocket protocol violation together with the
// RFC 6455 close code the server must send before ending the session.
type ProtocolError struct {
	Code   int
	Reason string
}

func (e *ProtocolError) Error() string { return e.Reason }

func protocolErrorf(code int, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Reason: fmt.Sprintf(format, args...)}
}
