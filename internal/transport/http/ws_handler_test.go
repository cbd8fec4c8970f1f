package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-session-engine/internal/domain"
)

func TestWebSocketSubmitFlow(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "quizId=quiz-1")

	msgType, payload := readNext(conn, t, "state")
	if payload["phase"] != string(domain.PhaseInProgress) || payload["clock"] != "1:00" {
		t.Fatalf("unexpected initial state %v", payload)
	}
	if msgType != "state" {
		t.Fatalf("expected state, got %s", msgType)
	}

	send(t, conn, "select", map[string]any{"optionId": "o2"})
	readUntil(t, conn, func(typ string, p map[string]any) bool { return typ == "state" && p["selectedOptionId"] == "o2" })
	send(t, conn, "advance", nil)
	readUntil(t, conn, func(typ string, p map[string]any) bool { return typ == "state" && p["index"] == float64(1) })
	send(t, conn, "select", map[string]any{"optionId": "o1"})
	send(t, conn, "advance", nil)
	readUntil(t, conn, func(typ string, p map[string]any) bool {
		return typ == "state" && p["phase"] == string(domain.PhasePendingConfirmation)
	})

	send(t, conn, "submit", nil)
	_, result := readUntil(t, conn, func(typ string, _ map[string]any) bool { return typ == "result" })
	if result["persisted"] != true {
		t.Fatalf("expected persisted result, got %v", result)
	}
	scored := result["result"].(map[string]any)
	if scored["score"] != float64(100) || scored["correctAnswers"] != float64(2) {
		t.Fatalf("unexpected result %v", scored)
	}

	history, err := server.history.ReadHistory(context.Background(), "alice")
	if err != nil || len(history) != 1 {
		t.Fatalf("expected one recorded result, got %v (%v)", history, err)
	}
}

func TestWebSocketTimerExpiry(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "quizId=quiz-1")
	readNext(conn, t, "state")

	send(t, conn, "select", map[string]any{"optionId": "o2"})
	send(t, conn, "advance", nil)
	readUntil(t, conn, func(typ string, p map[string]any) bool { return typ == "state" && p["index"] == float64(1) })

	for i := 0; i < 60; i++ {
		server.tick(t)
	}
	_, result := readUntil(t, conn, func(typ string, _ map[string]any) bool { return typ == "result" })
	scored := result["result"].(map[string]any)
	if scored["score"] != float64(50) || scored["totalQuestions"] != float64(2) {
		t.Fatalf("unexpected result %v", scored)
	}
}

func TestWebSocketRejectsBadInput(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "quizId=quiz-1")
	readNext(conn, t, "state")

	send(t, conn, "advance", nil)
	_, payload := readUntil(t, conn, func(typ string, _ map[string]any) bool { return typ == "error" })
	if payload["message"] != domain.ErrNoSelection.Error() {
		t.Fatalf("unexpected error %v", payload)
	}

	send(t, conn, "dance", nil)
	_, payload = readUntil(t, conn, func(typ string, _ map[string]any) bool { return typ == "error" })
	if payload["message"] != "unsupported message type" {
		t.Fatalf("unexpected error %v", payload)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	server := newTestServer(t)
	u := "ws" + server.URL[len("http"):] + "/ws?quizId=quiz-1"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestWebSocketUnknownQuiz(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "quizId=nope")
	_, payload := readNext(conn, t, "error")
	if payload["message"] == "" {
		t.Fatalf("expected error message")
	}
}

func dial(t *testing.T, server *testServer, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?" + query + "&token=" + server.token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(string, map[string]any) bool) (string, map[string]any) {
	t.Helper()
	for i := 0; i < 200; i++ {
		typ, payload := readNext(conn, t, "")
		if match(typ, payload) {
			return typ, payload
		}
	}
	t.Fatalf("expected message never arrived")
	return "", nil
}
