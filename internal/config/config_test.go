package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lantern.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
listen_addr: "127.0.0.1:9001"
input_buffer_size: 16384
max_request_body_size: 5000000
log_level: debug
flush_chunks: true
mime_types:
  cljs: "text/plain; charset=utf-8"
compressible_types:
  - application/x-ndjson
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9001" {
		t.Errorf("listen_addr = %q", cfg.ListenAddr)
	}
	if cfg.InputBufferSize != 16384 {
		t.Errorf("input_buffer_size = %d", cfg.InputBufferSize)
	}
	if cfg.OutputBufferSize != 64*1024 {
		t.Errorf("output_buffer_size default = %d", cfg.OutputBufferSize)
	}
	if cfg.MIMETypes["cljs"] != "text/plain; charset=utf-8" {
		t.Errorf("mime_types = %v", cfg.MIMETypes)
	}

	opts := cfg.ServerOptions()
	if opts.Addr != cfg.ListenAddr || opts.MaxRequestBodySize != 5000000 || !opts.FlushChunks {
		t.Errorf("ServerOptions = %+v", opts)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeTempConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.ListenAddr != def.ListenAddr || cfg.LogLevel != def.LogLevel ||
		cfg.InputBufferSize != def.InputBufferSize || cfg.MaxRequestBodySize != def.MaxRequestBodySize {
		t.Errorf("defaults = %+v, want %+v", cfg, def)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"tiny input buffer", "input_buffer_size: 512\n", "input_buffer_size"},
		{"tiny output buffer", "output_buffer_size: 100\n", "output_buffer_size"},
		{"negative body size", "max_request_body_size: -5\n", "max_request_body_size"},
		{"bad log level", "log_level: noisy\n", "log_level"},
		{"malformed yaml", "listen_addr: [\n", "parse config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeTempConfig(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
