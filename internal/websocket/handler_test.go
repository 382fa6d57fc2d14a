package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"meetinghost/pkg/interfaces"
	"meetinghost/pkg/protocol"
)

// testSettings keep keepalive out of the way of short tests.
func testSettings() Settings {
	s := DefaultSettings()
	s.PingInterval = 0
	s.PongWait = 0
	return s
}

type connSink struct {
	mu    sync.Mutex
	conns []interfaces.Connection
	ready chan struct{}
}

func newConnSink() *connSink {
	return &connSink{ready: make(chan struct{}, 16)}
}

func (s *connSink) listen(conn interfaces.Connection) {
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
	s.ready <- struct{}{}
}

func (s *connSink) wait(t *testing.T) interfaces.Connection {
	t.Helper()
	select {
	case <-s.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("no connection delivered")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[len(s.conns)-1]
}

func setupServer(t *testing.T, origins []string) (*Handler, *httptest.Server, string) {
	t.Helper()
	handler := NewHandler(testSettings(), origins, nil)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return handler, server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	client, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestHandler_DeliversFramedMessages(t *testing.T) {
	handler, _, url := setupServer(t, nil)
	sink := newConnSink()
	handler.OnConnection(sink.listen)

	client := dial(t, url, nil)
	conn := sink.wait(t)

	if !strings.HasPrefix(conn.Name(), "ws://") {
		t.Errorf("expected ws:// remote name, got %q", conn.Name())
	}

	encoded := protocol.MustMessage(protocol.SignalMeetingID, []byte("room1")).Encode()
	if err := client.WriteMessage(websocket.BinaryMessage, encoded); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		block, err := conn.PollWillBlock()
		if err != nil {
			t.Fatalf("poll failed: %v", err)
		}
		if !block {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("frame never became readable")
		}
		time.Sleep(5 * time.Millisecond)
	}

	packet, err := conn.ReceiveNextPacket()
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	msg, err := protocol.Decode(packet)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Signal() != protocol.SignalMeetingID || msg.Text() != "room1" {
		t.Errorf("unexpected message %s", msg)
	}
}

func TestHandler_SendWritesBinaryFrames(t *testing.T) {
	handler, _, url := setupServer(t, nil)
	sink := newConnSink()
	handler.OnConnection(sink.listen)

	client := dial(t, url, nil)
	conn := sink.wait(t)

	if err := conn.SendPacket(protocol.AuthRequest().Encode()); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}
	if messageType != websocket.BinaryMessage {
		t.Errorf("expected binary frame, got %d", messageType)
	}
	msg, err := protocol.DecodeAny(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Signal() != protocol.SignalAuthRequest {
		t.Errorf("expected AUTH, got %s", msg.Signal())
	}
}

func TestHandler_ClientDisconnectMovesToError(t *testing.T) {
	handler, _, url := setupServer(t, nil)
	sink := newConnSink()
	handler.OnConnection(sink.listen)

	client := dial(t, url, nil)
	conn := sink.wait(t)
	_ = client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for conn.State() == interfaces.ConnectionOpen {
		_, _ = conn.PollWillBlock()
		if time.Now().After(deadline) {
			t.Fatal("connection stayed open after peer left")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if conn.State() != interfaces.ConnectionError {
		t.Errorf("expected ERROR, got %s", conn.State())
	}
}

func TestHandler_ServerCloseUnblocksClient(t *testing.T) {
	handler, _, url := setupServer(t, nil)
	sink := newConnSink()
	handler.OnConnection(sink.listen)

	client := dial(t, url, nil)
	conn := sink.wait(t)

	if err := conn.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := client.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
}

func TestHandler_RejectsWithoutListener(t *testing.T) {
	_, server, _ := setupServer(t, nil)

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestHandler_OriginCheck(t *testing.T) {
	handler, _, url := setupServer(t, []string{"https://app.example.com"})
	handler.OnConnection(func(conn interfaces.Connection) { _ = conn.Close() })

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	if err == nil {
		t.Fatal("expected foreign origin to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for foreign origin")
	}

	dial(t, url, http.Header{"Origin": {"https://app.example.com"}})
}
