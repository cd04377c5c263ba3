package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestRecorders(t *testing.T) {
	// Counters must accept the label values the rest of the code uses.
	RecordPage("fetched")
	RecordPage("skipped")
	RecordPage("requeued")
	RecordFinding("subdomain")
	RecordFinding("path")
	RateLimitHits.Inc()
	TokenFailures.Inc()
	APIRequests.WithLabelValues("200").Inc()
	APIRequestDuration.Observe(0.2)
}

func TestServer_StartStop(t *testing.T) {
	// Find a free port first
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	srv := Start(port)
	defer func() {
		if err := srv.Stop(context.Background()); err != nil {
			t.Errorf("failed to stop server: %v", err)
		}
	}()

	// Give the goroutine a moment to bind
	var resp *http.Response
	for i := 0; i < 20; i++ {
		resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
		if err == nil {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("metrics endpoint unreachable: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		t.Error("expected non-empty metrics output")
	}
}
