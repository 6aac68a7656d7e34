package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/guvercin/messaging-backend/internal/domain"
	"github.com/guvercin/messaging-backend/internal/repository"
	"github.com/guvercin/messaging-backend/internal/service"
	"github.com/guvercin/messaging-backend/internal/ws"
	"github.com/guvercin/messaging-backend/pkg/storage"
)

// noopNotifier satisfies service.Notifier for wire tests.
type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, receiver string) {}

type wsFixture struct {
	server   *httptest.Server
	sessions *ws.Registry
	seen     *ws.Registry
	repo     repository.MessageRepository
}

func setupWSServer(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Message{}, &domain.DeletionMarker{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	store, err := storage.NewLocal(t.TempDir(), "/api/v1/files")
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	repo := repository.NewMessageRepository(db)
	files := service.NewFileService(repo, store)
	sessions := ws.NewRegistry()
	seen := ws.NewRegistry()
	delivery := service.NewDeliveryService(repo, sessions, seen, noopNotifier{})

	directory := &stubDirectory{keys: map[string]string{
		"alice": "key-a",
		"bob":   "key-b",
	}}

	wsHandler := NewWSHandler(sessions, seen, delivery, files, directory, "")

	router := gin.New()
	router.GET("/ws/:username", wsHandler.Connect)
	router.GET("/ws/seen/:username", wsHandler.ConnectSeen)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &wsFixture{server: server, sessions: sessions, seen: seen, repo: repo}
}

func (f *wsFixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitRegistered blocks until the registry holds the expected number of
// sessions, since registration happens after the handshake completes.
func waitRegistered(t *testing.T, registry *ws.Registry, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for registry.Count() < want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d registered sessions", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	return frame
}

func TestConnectUnknownUserRejected(t *testing.T) {
	f := setupWSServer(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/stranger"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTextMessageLiveDelivery(t *testing.T) {
	f := setupWSServer(t)

	bob := f.dial(t, "/ws/bob")
	waitRegistered(t, f.sessions, 1)
	alice := f.dial(t, "/ws/alice")
	waitRegistered(t, f.sessions, 2)

	err := alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"sender":"alice","receiver":"bob","type":"text","message":"hello"}`))
	assert.NoError(t, err)

	// Bob receives the envelope live.
	received := readFrame(t, bob)
	assert.Equal(t, "hello", received["message"])
	assert.Equal(t, "sent", received["status"])
	assert.NotZero(t, received["message_id"])

	// Alice gets the echo with the final delivered state.
	echo := readFrame(t, alice)
	assert.Equal(t, received["message_id"], echo["message_id"])
	assert.Equal(t, true, echo["delivered"])
}

func TestTextMessageOfflineReceiver(t *testing.T) {
	f := setupWSServer(t)

	alice := f.dial(t, "/ws/alice")
	waitRegistered(t, f.sessions, 1)

	err := alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"sender":"alice","receiver":"bob","type":"text","message":"anyone there"}`))
	assert.NoError(t, err)

	echo := readFrame(t, alice)
	assert.Equal(t, false, echo["delivered"])

	// The message is durable regardless of delivery.
	id := uint(echo["message_id"].(float64))
	stored, err := f.repo.FindByID(id)
	assert.NoError(t, err)
	assert.Equal(t, "anyone there", stored.Content)
	assert.False(t, stored.Delivered)
}

func TestFileTransferOverWire(t *testing.T) {
	f := setupWSServer(t)

	bob := f.dial(t, "/ws/bob")
	waitRegistered(t, f.sessions, 1)
	alice := f.dial(t, "/ws/alice")
	waitRegistered(t, f.sessions, 2)

	meta := `{"sender":"alice","receiver":"bob","type":"file","file_name":"notes.txt","mime_type":"text/plain"}`
	assert.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(meta)))
	assert.NoError(t, alice.WriteMessage(websocket.BinaryMessage, []byte("file body")))

	received := readFrame(t, bob)
	assert.Equal(t, "file", received["type"])
	assert.Equal(t, "notes.txt", received["file_name"])
	assert.Equal(t, "/api/v1/files/bob/notes.txt", received["file_url"])
}

func TestTextFrameDuringTransferRejected(t *testing.T) {
	f := setupWSServer(t)

	alice := f.dial(t, "/ws/alice")
	waitRegistered(t, f.sessions, 1)

	meta := `{"sender":"alice","receiver":"bob","type":"file","file_name":"notes.txt","mime_type":"text/plain"}`
	assert.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(meta)))

	// A text frame where the binary payload is expected breaks the
	// sequence and drops the pending transfer.
	assert.NoError(t, alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"sender":"alice","receiver":"bob","type":"text","message":"interrupting"}`)))

	frame := readFrame(t, alice)
	assert.Equal(t, "error", frame["status"])
}

func TestBinaryFrameWithoutMetadataRejected(t *testing.T) {
	f := setupWSServer(t)

	alice := f.dial(t, "/ws/alice")
	waitRegistered(t, f.sessions, 1)

	assert.NoError(t, alice.WriteMessage(websocket.BinaryMessage, []byte("orphan payload")))

	frame := readFrame(t, alice)
	assert.Equal(t, "error", frame["status"])
}

func TestSeenChannelFanOut(t *testing.T) {
	f := setupWSServer(t)

	id, err := f.repo.Insert(&domain.Message{
		Sender: "alice", Receiver: "bob", Type: domain.TypeText, Content: "hi",
	})
	assert.NoError(t, err)
	assert.Equal(t, uint(1), id)

	aliceSeen := f.dial(t, "/ws/seen/alice")
	waitRegistered(t, f.seen, 1)
	bobSeen := f.dial(t, "/ws/seen/bob")
	waitRegistered(t, f.seen, 2)

	assert.NoError(t, bobSeen.WriteMessage(websocket.TextMessage,
		[]byte(`{"message_id":1,"seen":true}`)))

	// Both seen-channel connections receive the relay, originator
	// included.
	for _, conn := range []*websocket.Conn{aliceSeen, bobSeen} {
		frame := readFrame(t, conn)
		assert.Equal(t, float64(1), frame["message_id"])
		assert.Equal(t, true, frame["seen"])
	}

	stored, err := f.repo.FindByID(1)
	assert.NoError(t, err)
	assert.True(t, stored.Seen)
}

func TestSeenChannelUnknownMessage(t *testing.T) {
	f := setupWSServer(t)

	bobSeen := f.dial(t, "/ws/seen/bob")
	waitRegistered(t, f.seen, 1)

	assert.NoError(t, bobSeen.WriteMessage(websocket.TextMessage,
		[]byte(`{"message_id":9999,"seen":true}`)))

	frame := readFrame(t, bobSeen)
	assert.Equal(t, "error", frame["status"])
	assert.Equal(t, "unknown message id", frame["error"])
}

func TestLastConnectWinsOverWire(t *testing.T) {
	f := setupWSServer(t)

	first := f.dial(t, "/ws/alice")
	waitRegistered(t, f.sessions, 1)
	f.dial(t, "/ws/alice")

	// The displaced connection is closed by the server.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 1, f.sessions.Count())
}
