package feed

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"solar-telemetry/pkg/client"
	"solar-telemetry/pkg/connection"
	"solar-telemetry/pkg/diag"
	"solar-telemetry/pkg/store"
	"solar-telemetry/pkg/testutil"
	"solar-telemetry/pkg/transport"
)

type fakeState struct {
	mu   sync.Mutex
	snap client.Snapshot
}

func (f *fakeState) State() client.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

type fakeDiag struct{ snap diag.Snapshot }

func (f fakeDiag) Snapshot() diag.Snapshot { return f.snap }

func createTestLogger() *log.Logger { return log.New(os.Stdout, "[TEST] ", 0) }

func newTestServer(t *testing.T) (*Server, *httptest.Server, *fakeState) {
	t.Helper()
	state := &fakeState{snap: client.Snapshot{
		ConnectionState: connection.Connected,
		Transport:       "websocket",
		Metrics:         store.Metrics{SolarPower: 2500},
		Alerts:          []store.AlertEntry{{ID: "a1", Severity: "WARN", Message: "low battery"}},
		Efficiency:      50,
	}}

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "solarwatch_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := NewServer(":0", state, fakeDiag{snap: diag.Snapshot{MessagesReceived: 7, ConnectionState: "connected"}}, reg, createTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go s.Hub().Run(ctx)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return s, ts, state
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestStateEndpoint(t *testing.T) {
	_, ts, _ := newTestServer(t)

	var body map[string]any
	if code := getJSON(t, ts.URL+"/api/state", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["connectionState"] != "connected" {
		t.Errorf("expected connectionState connected, got %v", body["connectionState"])
	}
	if body["efficiency"] != 50.0 {
		t.Errorf("expected efficiency 50, got %v", body["efficiency"])
	}
	if body["prediction"] != nil {
		t.Errorf("expected null prediction, got %v", body["prediction"])
	}
	metrics := body["metrics"].(map[string]any)
	if metrics["solarPower"] != 2500.0 {
		t.Errorf("expected solarPower 2500, got %v", metrics["solarPower"])
	}
	alerts := body["alerts"].([]any)
	if len(alerts) != 1 || alerts[0].(map[string]any)["severity"] != "WARN" {
		t.Errorf("unexpected alerts %v", alerts)
	}
}

func TestDiagnosticsEndpoint(t *testing.T) {
	_, ts, _ := newTestServer(t)

	var body map[string]any
	if code := getJSON(t, ts.URL+"/api/diagnostics", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["messagesReceived"] != 7.0 {
		t.Errorf("expected 7 messages, got %v", body["messagesReceived"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, ts, _ := newTestServer(t)

	var body map[string]any
	if code := getJSON(t, ts.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "ok" || body["transport"] != "websocket" {
		t.Errorf("unexpected health body %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "solarwatch_test_total 1") {
		t.Errorf("expected test counter in output, got:\n%s", body)
	}
}

func TestOptionalEndpointsDisabled(t *testing.T) {
	s := NewServer(":0", &fakeState{}, nil, nil, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	for _, path := range []string{"/api/diagnostics", "/metrics"} {
		if code := getJSON(t, ts.URL+path, nil); code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/state", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame
}

func TestWebSocketFeed(t *testing.T) {
	s, ts, state := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readFrame(t, conn)
	if first["type"] != "state" {
		t.Errorf("expected state frame, got %v", first["type"])
	}
	if payload := first["payload"].(map[string]any); payload["transport"] != "websocket" {
		t.Errorf("expected current state on connect, got %v", payload)
	}

	testutil.Eventually(t, 2*time.Second, func() bool { return s.Hub().ClientCount() == 1 }, "client registered")

	state.mu.Lock()
	state.snap.Efficiency = 120
	next := state.snap
	state.mu.Unlock()
	s.Publish(next)

	frame := readFrame(t, conn)
	if payload := frame["payload"].(map[string]any); payload["efficiency"] != 120.0 {
		t.Errorf("expected efficiency 120 in pushed frame, got %v", payload["efficiency"])
	}

	conn.Close()
	testutil.Eventually(t, 2*time.Second, func() bool { return s.Hub().ClientCount() == 0 }, "client unregistered")
}

func TestStateEndpoint_NonFiniteInputStaysEncodable(t *testing.T) {
	conn := testutil.NewMockConn("websocket")
	dialer := &testutil.MockDialer{DialFunc: func(int, string) (transport.Conn, error) { return conn, nil }}
	c, err := client.New(client.Config{BaseURL: "http://localhost:8080", Dialer: dialer, RatedCapacityW: 5000}, createTestLogger(), nil)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	defer c.Close()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	conn.SendRaw(`{"type":"solar-data","data":{"solarPower":1e400,"loadPower":"NaN","batteryLevel":50}}`)
	testutil.Eventually(t, 2*time.Second, func() bool { return c.State().Metrics.BatteryLevel == 50 }, "metrics applied")

	ts := httptest.NewServer(NewServer(":0", c, nil, nil, createTestLogger()).Handler())
	defer ts.Close()

	var body map[string]any
	if code := getJSON(t, ts.URL+"/api/state", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	metrics := body["metrics"].(map[string]any)
	if metrics["solarPower"] != 0.0 || metrics["loadPower"] != 0.0 || metrics["batteryLevel"] != 50.0 {
		t.Errorf("unexpected metrics %v", metrics)
	}
	if body["efficiency"] != 0.0 {
		t.Errorf("expected efficiency 0, got %v", body["efficiency"])
	}
}

func TestRespondJSON_EncodeFailure(t *testing.T) {
	s := NewServer(":0", &fakeState{}, nil, nil, nil)
	rec := httptest.NewRecorder()
	s.respondJSON(rec, http.StatusOK, map[string]float64{"bad": math.Inf(1)})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected an error body")
	}
}
