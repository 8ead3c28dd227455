package server

import "testing"

func TestMIMETable(t *testing.T) {
	t.Parallel()

	table := newMIMETable(map[string]string{".custom": "application/x-custom"}, []string{"application/x-custom"})

	if got := table.TypeFor("/assets/app.js"); got != "text/javascript; charset=utf-8" {
		t.Errorf("js type = %q", got)
	}
	if got := table.TypeFor("INDEX.HTML"); got != "text/html; charset=utf-8" {
		t.Errorf("extension lookup should be case-insensitive, got %q", got)
	}
	if got := table.TypeFor("photo.custom"); got != "application/x-custom" {
		t.Errorf("custom type = %q", got)
	}
	if got := table.TypeFor("unknown.zzz"); got != "" {
		t.Errorf("unknown extension = %q, want empty", got)
	}

	if !table.IsCompressible("text/html; charset=utf-8") {
		t.Error("text/html should be compressible, parameters ignored")
	}
	if !table.IsCompressible("application/x-custom") {
		t.Error("configured compressible type not honored")
	}
	if table.IsCompressible("image/png") {
		t.Error("image/png should not be compressible")
	}
}
