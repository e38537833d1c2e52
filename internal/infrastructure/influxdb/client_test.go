package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/infrastructure/config"
)

// ─── Fake Server ───────────────────────────────────────────────────

// fakeInflux answers /ping and records line protocol sent to /api/v2/write.
type fakeInflux struct {
	mu         sync.Mutex
	lines      []string
	writeCode  int
	pingStatus int
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/ping"):
		w.WriteHeader(f.pingStatus)
	case strings.HasSuffix(r.URL.Path, "/api/v2/write"):
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		f.mu.Lock()
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		code := f.writeCode
		f.mu.Unlock()
		if code != http.StatusNoContent {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"code":"invalid","message":"rejected"}`)) //nolint:errcheck // test server
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeInflux) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func startFake(t *testing.T) (*fakeInflux, config.InfluxDBConfig) {
	t.Helper()
	fake := &fakeInflux{writeCode: http.StatusNoContent, pingStatus: http.StatusNoContent}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return fake, config.InfluxDBConfig{
		Enabled:       true,
		URL:           srv.URL,
		Token:         "test-token",
		Org:           "graylogic",
		Bucket:        "controllers",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connectFake(t *testing.T) (*fakeInflux, *Client) {
	t.Helper()
	fake, cfg := startFake(t)
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.now = func() time.Time { return time.Unix(1700000000, 0) }
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return fake, client
}

// ─── Connection ────────────────────────────────────────────────────

func TestConnect(t *testing.T) {
	_, client := connectFake(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: true, URL: "http://127.0.0.1:1"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	_, cfg := startFake(t)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	if !client.IsConnected() {
		t.Error("IsConnected() = false with default batch settings")
	}
}

func TestHealthCheck_AfterClose(t *testing.T) {
	_, client := connectFake(t)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}
	// Second close and flush are no-ops.
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	client.Flush()
}

func TestClose_Nil(t *testing.T) {
	var client *Client
	if err := client.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("nil IsConnected() = true")
	}
}

// ─── Writes ────────────────────────────────────────────────────────

func TestWriteControllerState(t *testing.T) {
	fake, client := connectFake(t)

	client.WriteControllerState("bath-fan", "exhaust_fan", "ON_MANUAL", true)
	client.Flush()

	lines := fake.written()
	if len(lines) != 1 {
		t.Fatalf("written lines = %v, want 1", lines)
	}
	line := lines[0]
	for _, want := range []string{
		"controller_state,",
		"controller_id=bath-fan",
		"controller_type=exhaust_fan",
		`state="ON_MANUAL"`,
		"is_on=true",
		"1700000000000000000",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWriteControllerValue(t *testing.T) {
	fake, client := connectFake(t)

	client.WriteControllerValue("bedroom-fan", "comfort_index", 86.5)
	client.Flush()

	lines := fake.written()
	if len(lines) != 1 {
		t.Fatalf("written lines = %v, want 1", lines)
	}
	for _, want := range []string{"controller_value,", "name=comfort_index", "value=86.5"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestWrite_AfterCloseIsDropped(t *testing.T) {
	fake, client := connectFake(t)
	client.Close() //nolint:errcheck // Test

	client.WriteControllerState("hall", "light", "ON", true)
	client.WriteControllerValue("hall", "x", 1)

	if got := fake.written(); len(got) != 0 {
		t.Errorf("written after close = %v", got)
	}
}

func TestWriteErrorCallback(t *testing.T) {
	fake, client := connectFake(t)
	fake.mu.Lock()
	fake.writeCode = http.StatusBadRequest
	fake.mu.Unlock()

	errs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	client.WriteControllerState("hall", "light", "ON", true)
	client.Flush()

	select {
	case err := <-errs:
		if !errors.Is(err, ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for write error callback")
	}
}
