package server

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressionRoundTripWithContextTakeover(t *testing.T) {
	t.Parallel()

	comp := newWSCompression(false, false)
	defer comp.Close()

	messages := []string{
		"first message with some shared phrasing",
		"second message with some shared phrasing",
		strings.Repeat("repetition compresses well ", 50),
		"",
		"final message with some shared phrasing",
	}

	var sizes []int
	for i, msg := range messages {
		deflated, err := comp.Compress([]byte(msg))
		if err != nil {
			t.Fatalf("compress %d: %v", i, err)
		}
		if msg == "" {
			if len(deflated) != 0 {
				t.Errorf("empty input should compress to empty, got %d bytes", len(deflated))
			}
			continue
		}
		sizes = append(sizes, len(deflated))
		inflated, err := comp.Decompress(deflated)
		if err != nil {
			t.Fatalf("decompress %d: %v", i, err)
		}
		if string(inflated) != msg {
			t.Fatalf("round trip %d: got %d bytes, want %d", i, len(inflated), len(msg))
		}
	}
	// With a preserved LZ77 window, later messages that repeat earlier
	// phrasing deflate smaller than the first occurrence.
	if sizes[1] >= sizes[0] {
		t.Errorf("context takeover not effective: first=%d second=%d", sizes[0], sizes[1])
	}
}

func TestCompressionRoundTripNoContextTakeover(t *testing.T) {
	t.Parallel()

	comp := newWSCompression(true, true)
	defer comp.Close()

	msg := "the same message, compressed independently each time"
	var first []byte
	for i := 0; i < 3; i++ {
		deflated, err := comp.Compress([]byte(msg))
		if err != nil {
			t.Fatalf("compress %d: %v", i, err)
		}
		if i == 0 {
			first = append([]byte(nil), deflated...)
		} else if !bytes.Equal(deflated, first) {
			// With the deflater reset before each message, identical inputs
			// produce identical outputs.
			t.Errorf("compress %d differs from first pass", i)
		}
		inflated, err := comp.Decompress(deflated)
		if err != nil {
			t.Fatalf("decompress %d: %v", i, err)
		}
		if string(inflated) != msg {
			t.Fatalf("round trip %d mismatch", i)
		}
	}
}

func TestCompressionLargePayload(t *testing.T) {
	t.Parallel()

	comp := newWSCompression(false, false)
	defer comp.Close()

	payload := bytes.Repeat([]byte("0123456789abcdef"), 8192) // 128 KiB
	deflated, err := comp.Compress(payload)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(deflated) >= len(payload) {
		t.Errorf("highly repetitive payload did not shrink: %d -> %d", len(payload), len(deflated))
	}
	inflated, err := comp.Decompress(deflated)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(inflated, payload) {
		t.Error("large payload round trip mismatch")
	}
}

func TestCompressionStripsSyncFlushTail(t *testing.T) {
	t.Parallel()

	comp := newWSCompression(true, true)
	defer comp.Close()

	deflated, err := comp.Compress([]byte("peek at the tail"))
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if bytes.HasSuffix(deflated, []byte{0x00, 0x00, 0xff, 0xff}) {
		t.Error("sync flush tail was not stripped")
	}
}
