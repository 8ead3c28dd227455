package server

import (
	"log/slog"
	"time"
)

// AccessLogHandler logs one structured line per request once its response
// completes. It never commits a response itself, so it belongs at the front
// of the handler chain.
type AccessLogHandler struct {
	// Logger receives the access log lines. Defaults to slog.Default().
	Logger *slog.Logger
}

func (h *AccessLogHandler) Handle(req *Request, res *Response) error {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	res.onComplete(func(r *Response) {
		logger.Info("request",
			slog.String("method", req.Method),
			slog.String("target", req.Target),
			slog.Int("status", r.StatusCode()),
			slog.Int64("bytes", r.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("conn_id", req.conn.ID()),
		)
	})
	return nil
}
