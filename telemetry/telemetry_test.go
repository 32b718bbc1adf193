package telemetry

import (
	"bytes"
	"strings"
	"testing"
)

func TestBannerContainsTotals(t *testing.T) {
	s := &RunStats{}
	s.Messages.TotalMessages = 42
	s.Messages.AddOrder = 10
	s.ParseErrors = 1

	banner := s.Banner("test run")
	if !strings.Contains(banner, "test run") {
		t.Error("banner missing title")
	}
	if !strings.Contains(banner, "42") {
		t.Error("banner missing total message count")
	}
	if !strings.Contains(banner, "Parse Errors:             1") {
		t.Errorf("banner missing parse error count: %s", banner)
	}
}

func TestPrometheusExposition(t *testing.T) {
	s := &RunStats{}
	s.Messages.TotalMessages = 5
	out := s.Prometheus()
	if !strings.Contains(out, "itchpipe_messages_total 5") {
		t.Errorf("missing messages_total line: %s", out)
	}
	if !strings.Contains(out, "# TYPE itchpipe_messages_total counter") {
		t.Errorf("missing TYPE line: %s", out)
	}
}

func TestNewLoggerTextAndJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json")
	logger.Info("hello", "key", "value")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected JSON log line, got %s", buf.String())
	}

	buf.Reset()
	logger = NewLogger(&buf, "info", "text")
	logger.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("expected text log line, got %s", buf.String())
	}
}

func TestNewLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "text")
	logger.Info("should not appear")
	if buf.Len() != 0 {
		t.Errorf("info log should be filtered at warn level, got %q", buf.String())
	}
}
