package influxdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
)

// fakeWriter records points instead of sending them.
type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(point *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, point)
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func (f *fakeWriter) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.points))
	for i, p := range f.points {
		out[i] = write.PointToLineProtocol(p, time.Nanosecond)
	}
	return out
}

func newFakeClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return &Client{writeAPI: w, connected: true}, w
}

// testConfig matches the local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "graylogic-dev-token",
		Org:           "graylogic",
		Bucket:        "insteon",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	client, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() should return nil client when disabled")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, cfg)
	if err == nil {
		t.Skip("something answered on port 59999")
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteDeviceMetric(t *testing.T) {
	client, w := newFakeClient()

	client.WriteDeviceMetric("light-kitchen", "level", 51)

	lines := w.lines()
	if len(lines) != 1 {
		t.Fatalf("wrote %d points, want 1", len(lines))
	}
	for _, want := range []string{"device_metrics,", "device_id=light-kitchen", "measurement=level", "value=51"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestWritePoint(t *testing.T) {
	client, w := newFakeClient()

	client.WritePoint("insteon_event",
		map[string]string{"device_id": "light-kitchen", "event": "turnOn", "origin": "ack"},
		map[string]interface{}{"count": 1})

	lines := w.lines()
	if len(lines) != 1 {
		t.Fatalf("wrote %d points, want 1", len(lines))
	}
	for _, want := range []string{"insteon_event,", "event=turnOn", "origin=ack", "count=1i"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestWritePointWithTime(t *testing.T) {
	client, w := newFakeClient()
	ts := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	client.WritePointWithTime("insteon_event", nil, map[string]interface{}{"count": 1}, ts)

	lines := w.lines()
	if len(lines) != 1 || !strings.HasSuffix(strings.TrimSpace(lines[0]), "1792054800000000000") {
		t.Errorf("lines = %v, want timestamp 1792054800000000000", lines)
	}
}

func TestWritesDroppedAfterClose(t *testing.T) {
	client, w := newFakeClient()

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1 from the first Close", w.flushes)
	}

	client.WriteDeviceMetric("light-kitchen", "level", 10)
	client.Flush()

	if len(w.lines()) != 0 {
		t.Error("points written after Close")
	}
	if w.flushes != 1 {
		t.Errorf("Flush after Close should be a no-op, flushes = %d", w.flushes)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	client := &Client{}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	client, _ := newFakeClient()

	var mu sync.Mutex
	var got []error
	client.SetOnError(func(err error) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
	})

	errs := make(chan error, 2)
	errs <- errors.New("write 1 failed")
	errs <- errors.New("write 2 failed")
	close(errs)

	client.handleWriteErrors(errs)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Errorf("callback saw %d errors, want 2", len(got))
	}
}

func TestHandleWriteErrors_NoCallback(t *testing.T) {
	client, _ := newFakeClient()

	errs := make(chan error, 1)
	errs <- errors.New("ignored")
	close(errs)

	client.handleWriteErrors(errs)
}
