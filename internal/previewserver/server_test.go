package previewserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lightcut/internal/config"
	"lightcut/internal/logging"
	"lightcut/internal/preview"
)

func newTestServer(t *testing.T) (*Server, *preview.Store, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	store := preview.NewStore(2)

	srv := New(&cfg, store, logging.NewNop())
	if srv == nil {
		t.Fatalf("server should be constructed")
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Stop)
	return srv, store, ts
}

func storeFrame(t *testing.T, store *preview.Store, fill byte) uint64 {
	t.Helper()
	buf := make([]byte, 4*2*4)
	for i := range buf {
		buf[i] = fill
	}
	version := store.StoreFrame(4, 2, buf)
	if version == 0 {
		t.Fatalf("frame rejected")
	}
	return version
}

func TestNewWithoutBindIsNil(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.PreviewBind = ""
	if srv := New(&cfg, preview.NewStore(2), logging.NewNop()); srv != nil {
		t.Fatalf("no bind address must yield a nil server")
	}
}

func TestLatestFrameRoundTrip(t *testing.T) {
	_, store, ts := newTestServer(t)
	version := storeFrame(t, store, 7)

	resp, err := http.Get(ts.URL + "/preview/latest")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Frame-Version"); got != "1" || version != 1 {
		t.Fatalf("version header mismatch: %q", got)
	}
	if resp.Header.Get("X-Frame-Width") != "4" || resp.Header.Get("X-Frame-Height") != "2" {
		t.Fatalf("dimension headers mismatch")
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(body) != 4*2*4 || body[0] != 7 {
		t.Fatalf("unexpected frame bytes: len=%d", len(body))
	}
}

func TestLatestBeforeAnyFrameIs404(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/preview/latest")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before first frame, got %d", resp.StatusCode)
	}
}

func TestFrameByVersionFallsBack(t *testing.T) {
	_, store, ts := newTestServer(t)
	first := storeFrame(t, store, 1)
	storeFrame(t, store, 2)
	storeFrame(t, store, 3)

	// first has aged out of the depth-2 store; the latest frame is served.
	resp, err := http.Get(ts.URL + "/preview/frame?version=" + strconv.FormatUint(first, 10))
	if err != nil {
		t.Fatalf("get frame: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fallback must serve a frame, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 || body[0] != 3 {
		t.Fatalf("expected latest frame bytes, got fill %d", body[0])
	}
}

func TestFrameRejectsBadVersion(t *testing.T) {
	_, store, ts := newTestServer(t)
	storeFrame(t, store, 1)

	for _, query := range []string{"", "version=0", "version=abc"} {
		resp, err := http.Get(ts.URL + "/preview/frame?" + query)
		if err != nil {
			t.Fatalf("get frame: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("query %q: expected 400, got %d", query, resp.StatusCode)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/preview/latest", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestEventsPushVersions(t *testing.T) {
	srv, store, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/preview/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	// Subscription registration races the dial return; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.mu.Lock()
		subscribed := len(srv.subscribers) > 0
		srv.mu.Unlock()
		if subscribed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	version := storeFrame(t, store, 9)
	srv.Notify(version, 4, 2)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event frameEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Version != version || event.Width != 4 || event.Height != 2 {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestNotifyWithoutSubscribersIsSafe(t *testing.T) {
	srv, store, _ := newTestServer(t)
	version := storeFrame(t, store, 1)
	srv.Notify(version, 4, 2)
	srv.Notify(0, 4, 2) // sentinel version ignored
}
