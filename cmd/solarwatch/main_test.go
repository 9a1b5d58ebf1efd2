package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"solar-telemetry/pkg/testutil"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SOLAR_CHANNEL_URL", "SOLAR_TRANSPORTS", "SOLAR_MQTT_CLIENT_ID",
		"SOLAR_MAX_RECONNECT_ATTEMPTS", "SOLAR_RECONNECT_DELAY_MS", "SOLAR_BACKOFF_STRATEGY",
		"SOLAR_BACKOFF_MAX_DELAY_MS", "SOLAR_BACKOFF_JITTER", "SOLAR_RATED_CAPACITY_W",
		"FEED_ADDR", "STATUS_INTERVAL_SECONDS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	chdir(t, t.TempDir())
}

func TestMainVersionFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "solarwatch version") {
		t.Errorf("expected version output to contain 'solarwatch version', got: %s", stdout.String())
	}
}

func TestMainMissingConfig(t *testing.T) {
	clearEnv(t)

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), nil, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "Error loading configuration") {
		t.Errorf("expected error message about configuration, got: %s", stderr.String())
	}
}

func TestMainHelp(t *testing.T) {
	clearEnv(t)

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"--help"}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit code 0 for help, got %d", code)
	}
	if stderr.Len() != 0 {
		t.Errorf("expected no errors for help, got: %s", stderr.String())
	}
}

func TestMainRunsAgainstPollingBackend(t *testing.T) {
	clearEnv(t)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/poll" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "0" {
			fmt.Fprint(w, `{"cursor":1,"events":[{"type":"solar-data","data":{"solarPower":2500,"batteryLevel":80}}]}`)
			return
		}
		fmt.Fprint(w, `{"cursor":1,"events":[]}`)
	}))
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout := &syncBuffer{}
	stderr := &syncBuffer{}
	exit := make(chan int, 1)
	go func() {
		exit <- run(ctx, []string{
			"--channel-url", backend.URL,
			"--transports", "polling",
			"--feed-addr", "127.0.0.1:0",
			"--status-interval-seconds", "1",
		}, stdout, stderr)
	}()

	testutil.Eventually(t, 5*time.Second, func() bool {
		out := stdout.String()
		return strings.Contains(out, "state=connected") && strings.Contains(out, "solar=2.50 kW")
	}, "status line reports connected state and metrics")

	cancel()
	select {
	case code := <-exit:
		if code != 0 {
			t.Errorf("expected exit code 0, got %d (stderr: %s)", code, stderr.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
