package logging

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestNewProviderFormats(t *testing.T) {
	for _, format := range []string{"", "json", "console", "pretty"} {
		p, err := NewProvider(Config{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("NewProvider(%q) error = %v", format, err)
		}
		logger := p.GetLogger("dubber.test")
		if logger == nil {
			t.Fatalf("GetLogger() returned nil for format %q", format)
		}
		WithFields(logger, map[string]any{"format": format}).Debug("provider.ready")
	}
}

func TestNewProviderRejectsUnknownFormat(t *testing.T) {
	if _, err := NewProvider(Config{Format: "xml"}); err == nil {
		t.Error("NewProvider(xml) returned nil error")
	}
}

func TestNormalizeLevel(t *testing.T) {
	tests := map[string]string{
		"TRACE":   glog.Trace,
		" debug ": glog.Debug,
		"warning": glog.Warn,
		"error":   glog.Error,
		"bogus":   "",
		"":        "",
	}
	for in, want := range tests {
		if got := normalizeLevel(in); got != want {
			t.Errorf("normalizeLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAdapterDelegates(t *testing.T) {
	stub := &stubLogger{}
	adapted := wrap(stub)

	adapted.Trace("trace", "key", "value")
	adapted.Debug("debug")
	adapted.Info("info")
	adapted.Warn("warn")
	adapted.Error("error")
	adapted.Fatal("fatal")

	fields := map[string]any{"pair": "en:tr"}
	WithFields(adapted, fields)
	fields["pair"] = "en:de"
	if len(stub.fields) != 1 || stub.fields[0]["pair"] != "en:tr" {
		t.Fatalf("fields = %v, want one cloned map", stub.fields)
	}

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	adapted.WithContext(ctx)
	if len(stub.contexts) != 1 || stub.contexts[0] != ctx {
		t.Fatalf("contexts = %#v", stub.contexts)
	}

	want := []string{"trace", "debug", "info", "warn", "error", "fatal"}
	if len(stub.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", stub.calls, want)
	}
	for i := range want {
		if stub.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, stub.calls[i], want[i])
		}
	}
}

func TestNamedAndNoOp(t *testing.T) {
	if Named(nil, "x") == nil {
		t.Fatal("Named(nil) returned nil")
	}
	if OrNoOp(nil) == nil {
		t.Fatal("OrNoOp(nil) returned nil")
	}
	l := NoOp()
	l.Info("ignored")
	if WithFields(l, map[string]any{"a": 1}) == nil {
		t.Error("WithFields on no-op returned nil")
	}
	var nilProvider *Provider
	nilProvider.GetLogger("x").Error("ignored")
}

type stubLogger struct {
	calls    []string
	fields   []map[string]any
	contexts []context.Context
}

var _ glog.Logger = (*stubLogger)(nil)
var _ glog.FieldsLogger = (*stubLogger)(nil)

func (s *stubLogger) Trace(string, ...any) { s.calls = append(s.calls, "trace") }
func (s *stubLogger) Debug(string, ...any) { s.calls = append(s.calls, "debug") }
func (s *stubLogger) Info(string, ...any)  { s.calls = append(s.calls, "info") }
func (s *stubLogger) Warn(string, ...any)  { s.calls = append(s.calls, "warn") }
func (s *stubLogger) Error(string, ...any) { s.calls = append(s.calls, "error") }
func (s *stubLogger) Fatal(string, ...any) { s.calls = append(s.calls, "fatal") }

func (s *stubLogger) WithContext(ctx context.Context) glog.Logger {
	s.contexts = append(s.contexts, ctx)
	return s
}

func (s *stubLogger) WithFields(fields map[string]any) glog.Logger {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	s.fields = append(s.fields, copied)
	return s
}
