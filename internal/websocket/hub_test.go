package websocket

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/praxisbackup/internal/backup"
	"github.com/goccy/go-json"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		conn: nil,
		send: make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	// Should not panic
	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestPublishScheduleFinished(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	defer hub.Unregister(c)

	hub.Publish(backup.Event{
		Type: backup.EventScheduleFinished,
		Time: time.Now(),
		Result: &backup.ScheduleResult{
			ScheduleID: "sched-1",
			Status:     backup.StatusSuccess,
			TotalRows:  12,
		},
	})

	select {
	case data := <-c.send:
		var got struct {
			Type string `json:"type"`
			ID   string `json:"id"`
			Data struct {
				Status    string `json:"status"`
				TotalRows int    `json:"total_rows"`
			} `json:"data"`
		}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != "backup_schedule_finished" {
			t.Errorf("type = %q, want backup_schedule_finished", got.Type)
		}
		if got.ID != "sched-1" {
			t.Errorf("id = %q, want sched-1", got.ID)
		}
		if got.Data.Status != "success" || got.Data.TotalRows != 12 {
			t.Errorf("data = %+v", got.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestEventMessageTypes(t *testing.T) {
	tests := []struct {
		event backup.Event
		want  string
	}{
		{backup.Event{Type: backup.EventRunStarted}, "backup_run_started"},
		{backup.Event{Type: backup.EventScheduleFinished}, "backup_schedule_finished"},
		{backup.Event{Type: backup.EventRunFinished, Batch: &backup.BatchResult{Success: true}}, "backup_run_finished"},
	}
	for _, tt := range tests {
		if got := EventMessage(tt.event).Type; got != tt.want {
			t.Errorf("EventMessage(%s).Type = %q, want %q", tt.event.Type, got, tt.want)
		}
	}
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("test", "fill", "", i))
	}
	// This should drop the message, not panic or block
	hub.Broadcast(NewMessage("test", "dropped", "", nil))

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}
	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Broadcast(NewMessage("test", "concurrent", "", nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestHandleWebSocketDelivers(t *testing.T) {
	hub := NewHub(slog.Default())
	srv := httptest.NewServer(HandleWebSocket(hub, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	for hub.ClientCount() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("client never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	hub.Publish(backup.Event{Type: backup.EventRunStarted, Time: time.Now()})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"type":"backup_run_started"`) {
		t.Errorf("message = %s", data)
	}
}

func TestRegisterReplaysLastRun(t *testing.T) {
	hub := NewHub(slog.Default())

	early := mockClient(hub)
	hub.Register(early)
	if len(early.send) != 0 {
		t.Errorf("replayed %d messages before any run finished", len(early.send))
	}
	hub.Unregister(early)

	hub.Publish(backup.Event{Type: backup.EventRunFinished, Batch: &backup.BatchResult{Success: true, Processed: 1}})
	hub.Publish(backup.Event{Type: backup.EventRunFinished, Batch: &backup.BatchResult{Success: true, Processed: 3}})
	hub.Publish(backup.Event{Type: backup.EventRunStarted, Time: time.Now()})

	c := mockClient(hub)
	hub.Register(c)
	defer hub.Unregister(c)

	if len(c.send) != 1 {
		t.Fatalf("queued = %d, want 1", len(c.send))
	}
	var got struct {
		Type string `json:"type"`
		Data struct {
			Processed int `json:"processed"`
		} `json:"data"`
	}
	if err := json.Unmarshal(<-c.send, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "backup_run_finished" || got.Data.Processed != 3 {
		t.Errorf("replayed = %+v, want latest finished run", got)
	}
}

func TestHandleWebSocketReplaysOnConnect(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.Publish(backup.Event{Type: backup.EventRunFinished, Batch: &backup.BatchResult{Success: true, Processed: 2}})

	srv := httptest.NewServer(HandleWebSocket(hub, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"type":"backup_run_finished"`) || !strings.Contains(string(data), `"processed":2`) {
		t.Errorf("first message = %s", data)
	}
}
