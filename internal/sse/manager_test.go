package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-ia/studio-server/internal/events"
)

type ownedPayload struct {
	user string
	Job  string `json:"jobId"`
}

func (p ownedPayload) Owner() string { return p.user }

func startManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case evt := <-c.EventChan:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestFromNotifier(t *testing.T) {
	ts := time.Now()

	evt := FromNotifier(events.Event{Name: "export-job-progress", Payload: ownedPayload{user: "alice", Job: "j1"}, Timestamp: ts})
	assert.Equal(t, EventType("export-job-progress"), evt.Type)
	assert.Equal(t, "alice", evt.UserID)
	assert.Equal(t, ts, evt.Timestamp)
	assert.Equal(t, ownedPayload{user: "alice", Job: "j1"}, evt.Data)

	evt = FromNotifier(events.Event{Name: "custom", Payload: map[string]int{"n": 1}})
	assert.Empty(t, evt.UserID)
}

func TestManager_FiltersByUser(t *testing.T) {
	m := startManager(t)

	alice, err := m.Connect("alice")
	require.NoError(t, err)
	bob, err := m.Connect("bob")
	require.NoError(t, err)
	all, err := m.Connect("")
	require.NoError(t, err)
	assert.Equal(t, 3, m.ClientCount())

	m.Emit(Event{Type: "export-job-started", UserID: "alice"})
	m.Emit(Event{Type: "broadcast"})

	assert.Equal(t, EventType("export-job-started"), receive(t, alice).Type)
	assert.Equal(t, EventType("broadcast"), receive(t, alice).Type)
	assert.Equal(t, EventType("export-job-started"), receive(t, all).Type)
	assert.Equal(t, EventType("broadcast"), receive(t, all).Type)
	assert.Equal(t, EventType("broadcast"), receive(t, bob).Type)
	assert.Empty(t, bob.EventChan)
}

func TestManager_Attach(t *testing.T) {
	m := startManager(t)
	n := events.New()
	detach := m.Attach(n)

	c, err := m.Connect("alice")
	require.NoError(t, err)

	n.Emit("export-job-queued", ownedPayload{user: "alice", Job: "j1"})
	evt := receive(t, c)
	assert.Equal(t, EventType("export-job-queued"), evt.Type)

	detach()
	n.Emit("export-job-queued", ownedPayload{user: "alice", Job: "j2"})
	select {
	case evt := <-c.EventChan:
		t.Fatalf("unexpected event after detach: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_DisconnectAndShutdown(t *testing.T) {
	m := startManager(t)

	c, err := m.Connect("")
	require.NoError(t, err)
	m.Disconnect(c.ID)
	m.Disconnect(c.ID)
	assert.Equal(t, 0, m.ClientCount())

	_, ok := <-c.Done
	assert.False(t, ok)

	_, err = m.Connect("")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.Equal(t, 0, m.ClientCount())

	// Emit after shutdown is dropped and a second shutdown is a no-op.
	m.Emit(Event{Type: "late"})
	require.NoError(t, m.Shutdown(ctx))
}

func TestHandler_StreamsEvents(t *testing.T) {
	m := startManager(t)
	srv := httptest.NewServer(NewHandler(m, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?userId=alice")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readFrame := func() []string {
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return lines
			}
			lines = append(lines, line)
		}
	}

	frame := readFrame()
	require.Len(t, frame, 2)
	assert.Equal(t, "event: connected", frame[0])
	assert.Contains(t, frame[1], "SSE connection established")

	m.Emit(Event{Type: "export-job-progress", UserID: "bob"})
	m.Emit(Event{Type: "export-job-progress", UserID: "alice", Data: map[string]int{"progress": 12}})

	frame = readFrame()
	require.Len(t, frame, 2)
	assert.Equal(t, "event: export-job-progress", frame[0])
	assert.Contains(t, frame[1], `"progress":12`)
}

func TestHandler_RejectsNonGet(t *testing.T) {
	h := NewHandler(NewManager(nil), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/events", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
