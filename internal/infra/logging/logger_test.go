package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	. "github.com/mkrupp/promptbank/internal/infra/logging"
)

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer

	log := NewJSONLogger(&buf, "svc.test")
	log.Debug("hello", Group("req", "id", 7))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, buf.String())
	}

	if record["logger"] != "svc.test" {
		t.Errorf("logger = %v, want svc.test", record["logger"])
	}

	if record["msg"] != "hello" {
		t.Errorf("msg = %v, want hello", record["msg"])
	}

	if req, ok := record["req"].(map[string]any); !ok || req["id"] != float64(7) {
		t.Errorf("req group = %v", record["req"])
	}
}

func TestConsoleHandlerPackageFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		logger string
		debug  bool
		want   bool
	}{
		{name: "default level drops debug", filter: "", logger: "svc.authsvc", debug: true, want: false},
		{name: "package filter admits debug", filter: "svc:debug", logger: "svc.authsvc", debug: true, want: true},
		{name: "more specific filter wins", filter: "svc:debug,svc.authsvc:error", logger: "svc.authsvc", want: false},
		{name: "unrelated filter ignored", filter: "repo:debug", logger: "svc.authsvc", debug: true, want: false},
		{name: "info passes by default", filter: "", logger: "svc.authsvc", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			Configure(context.Background(), LoggerConfig{Level: "info", Filter: tt.filter, OutputHandle: &buf}, "test")
			t.Cleanup(func() { Configure(context.Background(), LoggerConfig{Output: "discard"}, "test") })

			buf.Reset()

			log := GetLogger(tt.logger)
			if tt.debug {
				log.Debug("message")
			} else {
				log.Info("message")
			}

			if got := strings.Contains(buf.String(), "message"); got != tt.want {
				t.Errorf("logged = %v, want %v (%q)", got, tt.want, buf.String())
			}
		})
	}
}
