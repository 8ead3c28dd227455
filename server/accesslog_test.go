package server

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncedBuffer guards a bytes.Buffer so the test can poll it while the
// connection task writes log lines.
type syncedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAccessLogHandler(t *testing.T) {
	t.Parallel()

	out := &syncedBuffer{}
	logger := slog.New(slog.NewTextHandler(out, nil))

	client := dialTestServer(t, &AccessLogHandler{Logger: logger}, helloChain())
	writeAll(t, client, "GET /logged HTTP/1.1\r\nHost: a\r\n\r\n")
	readExactly(t, client, "HTTP/1.1 200 \r\ncontent-length: 12\r\nconnection: keep-alive\r\n\r\nHello World!")

	deadline := time.Now().Add(2 * time.Second)
	for {
		line := out.String()
		if strings.Contains(line, "method=GET") && strings.Contains(line, "target=/logged") &&
			strings.Contains(line, "status=200") && strings.Contains(line, "bytes=12") {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("access log line not observed, got %q", line)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
