package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/auth"
	"quiz-session-engine/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades an authenticated request and drives one quiz session over the socket.
// With ?quizId= a new session is started and owned by the connection; with ?sessionId=
// the connection attaches to an existing session of the same user.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	who, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing bearer", http.StatusUnauthorized)
		return
	}
	quizID := r.URL.Query().Get("quizId")
	sessionID := r.URL.Query().Get("sessionId")
	if quizID == "" && sessionID == "" {
		http.Error(w, "missing quizId or sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var session *app.Session
	if sessionID != "" {
		session, err = h.service.Session(who, sessionID)
	} else {
		session, err = h.service.Begin(r.Context(), who, quizID)
		if err == nil {
			// A connection that started a session abandons it when it goes away unscored.
			defer h.service.End(session.ID())
		}
	}
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := session.Subscribe()
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		var last domain.SessionView
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					// The session is gone; report the final result if it was scored, then
					// unblock the reader so the connection winds down.
					if last.Result != nil {
						push(outboundMessage[any]{Type: "result", Payload: outcomePayload{
							Result:    *last.Result,
							Persisted: last.Persisted,
							Error:     last.Error,
						}})
					}
					_ = conn.SetReadDeadline(time.Now())
					return
				}
				last = update
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(session, inbound); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

type selectPayload struct {
	OptionID string `json:"optionId"`
}

type jumpPayload struct {
	Index int `json:"index"`
}

type badPayloadError string

func (e badPayloadError) Error() string { return string(e) }

func (h *WSHandler) dispatch(session *app.Session, inbound inboundMessage) error {
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return badPayloadError("invalid select payload")
		}
		return session.Select(payload.OptionID)
	case "advance":
		return session.Advance()
	case "jump":
		var payload jumpPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return badPayloadError("invalid jump payload")
		}
		return session.JumpTo(payload.Index)
	case "cancel":
		return session.Cancel()
	case "submit":
		// The result reaches the client through the subscription once the session closes.
		_, err := session.Confirm(context.Background())
		return err
	default:
		return badPayloadError("unsupported message type")
	}
}
