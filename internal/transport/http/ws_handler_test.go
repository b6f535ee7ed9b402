package http

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketQuizFlow(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice", "secret1")

	conn := dial(t, f)

	send(t, conn, "start", map[string]any{"username": "alice", "password": "secret1", "count": 1, "durationSeconds": 30})
	started := readUntil(t, conn, "started")
	var startedPayload struct {
		SessionID       string `json:"sessionId"`
		Total           int    `json:"total"`
		DurationSeconds int    `json:"durationSeconds"`
	}
	decode(t, started, &startedPayload)
	if startedPayload.SessionID == "" || startedPayload.Total != 1 || startedPayload.DurationSeconds != 30 {
		t.Fatalf("unexpected started payload: %+v", startedPayload)
	}

	var snap struct {
		State    string `json:"state"`
		Question struct {
			Prompt  string   `json:"prompt"`
			Choices []string `json:"choices"`
		} `json:"question"`
	}
	decode(t, readUntil(t, conn, "snapshot"), &snap)
	if snap.State != "active" || snap.Question.Prompt != "What is 2 + 2?" || len(snap.Question.Choices) != 3 {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}

	send(t, conn, "answer", map[string]any{"answer": "4"})
	send(t, conn, "review", nil)
	var review struct {
		Unanswered int `json:"unanswered"`
	}
	decode(t, readUntil(t, conn, "review"), &review)
	if review.Unanswered != 0 {
		t.Fatalf("expected every question answered, got %d unanswered", review.Unanswered)
	}

	send(t, conn, "submit", nil)
	var result struct {
		Score  int `json:"score"`
		Total  int `json:"total"`
		Record struct {
			Username string `json:"username"`
		} `json:"record"`
	}
	decode(t, readUntil(t, conn, "result"), &result)
	if result.Score != 1 || result.Total != 1 || result.Record.Username != "alice" {
		t.Fatalf("unexpected result: %+v", result)
	}

	history, err := f.service.History().HistoryFor(context.Background(), "alice")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one recorded score, got %d", len(history))
	}
}

func TestWebSocketRejectsBadLogin(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice", "secret1")
	conn := dial(t, f)

	send(t, conn, "answer", map[string]any{"answer": "4"})
	msg := readUntil(t, conn, "error")
	if !strings.Contains(string(msg), "not started") {
		t.Fatalf("expected not started error, got %s", msg)
	}

	send(t, conn, "start", map[string]any{"username": "alice", "password": "wrong1"})
	msg = readUntil(t, conn, "error")
	if !strings.Contains(string(msg), "invalid username or password") {
		t.Fatalf("expected auth failure, got %s", msg)
	}
}

func TestWebSocketDisconnectDiscardsSession(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice", "secret1")
	conn := dial(t, f)

	send(t, conn, "start", map[string]any{"username": "alice", "password": "secret1"})
	readUntil(t, conn, "started")
	if _, err := f.service.Session("alice"); err != nil {
		t.Fatalf("expected running session: %v", err)
	}
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := f.service.Session("alice"); err != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected session to be removed after disconnect")
}

func TestWebSocketClampsOversizedDuration(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice", "secret1")
	conn := dial(t, f)

	send(t, conn, "start", map[string]any{"username": "alice", "password": "secret1", "durationSeconds": math.MaxInt})
	var started struct {
		DurationSeconds int `json:"durationSeconds"`
	}
	decode(t, readUntil(t, conn, "started"), &started)
	if started.DurationSeconds != maxQuizSeconds {
		t.Fatalf("expected duration capped at %d, got %d", maxQuizSeconds, started.DurationSeconds)
	}

	var snap struct {
		State     string `json:"state"`
		Remaining int    `json:"remaining"`
	}
	decode(t, readUntil(t, conn, "snapshot"), &snap)
	if snap.State != "active" {
		t.Fatalf("expected an active quiz, got %+v", snap)
	}
}

func TestQuizDuration(t *testing.T) {
	cases := []struct {
		seconds int
		want    time.Duration
	}{
		{seconds: -5, want: 0},
		{seconds: 0, want: 0},
		{seconds: 90, want: 90 * time.Second},
		{seconds: maxQuizSeconds, want: 24 * time.Hour},
		{seconds: maxQuizSeconds + 1, want: 24 * time.Hour},
		{seconds: math.MaxInt, want: 24 * time.Hour},
	}
	for _, tc := range cases {
		if got := quizDuration(tc.seconds); got != tc.want {
			t.Fatalf("quizDuration(%d) = %v, want %v", tc.seconds, got, tc.want)
		}
	}
}

func dial(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips messages until one of type expect arrives and returns its payload.
func readUntil(t *testing.T, conn *websocket.Conn, expect string) json.RawMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", expect, err)
		}
		if msg.Type == expect {
			return msg.Payload
		}
	}
	t.Fatalf("no %s message within 20 reads", expect)
	return nil
}

func decode(t *testing.T, raw json.RawMessage, dst any) {
	t.Helper()
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}
