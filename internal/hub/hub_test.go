package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scanquest/orchestrator/internal/devices"
	"github.com/scanquest/orchestrator/internal/display"
	"github.com/scanquest/orchestrator/internal/events"
	"github.com/scanquest/orchestrator/internal/models"
	"github.com/scanquest/orchestrator/internal/session"
	"github.com/scanquest/orchestrator/internal/testutil"
	"github.com/scanquest/orchestrator/pkg/videoplayer"
)

type hubFixture struct {
	hub      *Hub
	bus      *events.Bus
	sessions *session.Manager
	registry *devices.Registry
	server   *httptest.Server
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()

	log := testutil.NewTestLogger()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	cat := testutil.NewTestCatalog()

	sessions := session.New(log, nil, bus)
	registry := devices.New(log, bus)
	disp := display.New(log, cat, videoplayer.NewMock(), bus)

	h := New(log, bus, registry, sessions, disp)
	h.Start()

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWs))
	t.Cleanup(srv.Close)

	return &hubFixture{hub: h, bus: bus, sessions: sessions, registry: registry, server: srv}
}

// dial connects a station and returns the socket
func (f *hubFixture) dial(t *testing.T, deviceID, deviceType string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?device_id=" + deviceID + "&device_type=" + deviceType
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial as %s: %v", deviceID, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads the next message, failing the test on timeout
func readEnvelope(t *testing.T, conn *websocket.Conn) models.WSMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg models.WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return msg
}

// readUntil skips envelopes until one with the wanted event arrives
func readUntil(t *testing.T, conn *websocket.Conn, event string) models.WSMessage {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := readEnvelope(t, conn)
		if msg.Event == event {
			return msg
		}
	}
	t.Fatalf("never received %q", event)
	return models.WSMessage{}
}

func TestConnect_ReceivesFullSync(t *testing.T) {
	f := newHubFixture(t)
	if _, err := f.sessions.Create(context.Background(), "Live Game", []string{"red", "blue"}); err != nil {
		t.Fatal(err)
	}

	conn := f.dial(t, "station-1", models.DeviceStation)

	msg := readUntil(t, conn, string(events.SyncFull))
	raw, _ := json.Marshal(msg.Data)
	var payload SyncPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode sync payload: %v", err)
	}
	if payload.Session == nil || payload.Session.Name != "Live Game" {
		t.Errorf("sync payload session: %+v", payload.Session)
	}
	if len(payload.Scores) != 2 {
		t.Errorf("sync payload has %d scores, want 2", len(payload.Scores))
	}
	if payload.Display.Mode != models.ModeIdleLoop {
		t.Errorf("sync payload display mode %s", payload.Display.Mode)
	}
}

func TestBroadcast_ReachesAllStations(t *testing.T) {
	f := newHubFixture(t)

	a := f.dial(t, "station-1", models.DeviceStation)
	b := f.dial(t, "station-2", models.DeviceStation)
	readUntil(t, a, string(events.SyncFull))
	readUntil(t, b, string(events.SyncFull))

	f.bus.Publish(events.ScoreUpdated, models.TeamScore{TeamID: "red", CurrentScore: 500})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readUntil(t, conn, string(events.ScoreUpdated))
		raw, _ := json.Marshal(msg.Data)
		var score models.TeamScore
		if err := json.Unmarshal(raw, &score); err != nil {
			t.Fatal(err)
		}
		if score.TeamID != "red" || score.CurrentScore != 500 {
			t.Errorf("got score event %+v", score)
		}
	}
}

func TestDeviceLocalEvent_OnlyReachesTarget(t *testing.T) {
	f := newHubFixture(t)

	target := f.dial(t, "station-1", models.DeviceStation)
	other := f.dial(t, "station-2", models.DeviceStation)
	readUntil(t, target, string(events.SyncFull))
	readUntil(t, other, string(events.SyncFull))

	f.bus.PublishTo("station-1", events.TransactionResult, map[string]string{"outcome": "duplicate"})
	// A broadcast right after acts as a fence: if the other station sees the
	// fence without the device-local event, targeting held.
	f.bus.Publish(events.ScoreUpdated, models.TeamScore{TeamID: "blue"})

	if msg := readUntil(t, target, string(events.TransactionResult)); msg.Event == "" {
		t.Fatal("target missed its device-local event")
	}

	msg := readEnvelope(t, other)
	for msg.Event == string(events.DeviceUpdate) {
		msg = readEnvelope(t, other)
	}
	if msg.Event == string(events.TransactionResult) {
		t.Error("device-local event leaked to another station")
	}
	if msg.Event != string(events.ScoreUpdated) {
		t.Errorf("expected fence event, got %q", msg.Event)
	}
}

func TestSyncRequest(t *testing.T) {
	f := newHubFixture(t)

	conn := f.dial(t, "station-1", models.DeviceStation)
	readUntil(t, conn, string(events.SyncFull))

	if err := conn.WriteJSON(map[string]string{"type": "sync:request"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, string(events.SyncFull))
}

func TestMalformedInbound_Ignored(t *testing.T) {
	f := newHubFixture(t)

	conn := f.dial(t, "station-1", models.DeviceStation)
	readUntil(t, conn, string(events.SyncFull))

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}

	// The connection survives and still answers sync requests
	if err := conn.WriteJSON(map[string]string{"type": "sync:request"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, string(events.SyncFull))
}

func TestCollision_Rejected(t *testing.T) {
	f := newHubFixture(t)

	first := f.dial(t, "station-1", models.DeviceStation)
	readUntil(t, first, string(events.SyncFull))

	second := f.dial(t, "station-1", models.DeviceStation)
	msg := readEnvelope(t, second)
	if msg.Event != "error" {
		t.Fatalf("got event %q, want error", msg.Event)
	}
	raw, _ := json.Marshal(msg.Data)
	var body map[string]string
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatal(err)
	}
	if body["code"] != "DEVICE_ID_COLLISION" {
		t.Errorf("got code %q, want DEVICE_ID_COLLISION", body["code"])
	}

	// The socket is closed after the error envelope
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := second.ReadMessage(); err == nil {
		t.Error("collided socket left open")
	}

	// The original connection is unaffected
	f.bus.Publish(events.ScoreUpdated, models.TeamScore{TeamID: "red"})
	readUntil(t, first, string(events.ScoreUpdated))
}

func TestAutoAssignedID(t *testing.T) {
	f := newHubFixture(t)

	conn := f.dial(t, "", models.DeviceStation)
	readUntil(t, conn, string(events.SyncFull))

	d, ok := f.registry.Get("station-1")
	if !ok {
		t.Fatal("auto-assigned device not registered")
	}
	if d.ConnectionStatus != models.DeviceConnected {
		t.Errorf("got status %s, want connected", d.ConnectionStatus)
	}
}

func TestDisconnect_UpdatesRegistry(t *testing.T) {
	f := newHubFixture(t)

	conn := f.dial(t, "station-1", models.DeviceStation)
	readUntil(t, conn, string(events.SyncFull))
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if d, ok := f.registry.Get("station-1"); ok && d.ConnectionStatus == models.DeviceDisconnected {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("registry never saw the disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSnapshot_RecentTransactionWindow(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	if _, err := f.sessions.Create(ctx, "Busy Game", []string{"red"}); err != nil {
		t.Fatal(err)
	}
	err := f.sessions.Mutate(ctx, func(s *models.Session) error {
		for i := 0; i < recentTransactionWindow+5; i++ {
			s.Transactions = append(s.Transactions, models.Transaction{
				ID: string(rune('a' + i)), TokenID: "tok001", Status: models.TxAccepted,
			})
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	snap := f.hub.Snapshot()
	if len(snap.RecentTransactions) != recentTransactionWindow {
		t.Errorf("snapshot carries %d transactions, want %d",
			len(snap.RecentTransactions), recentTransactionWindow)
	}
}
