package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-desk/internal/app"
	"quiz-desk/internal/auth"
)

// WSHandler drives one quiz per connection. The first message must be
// "start"; every state change after that is pushed back as a snapshot.
type WSHandler struct {
	service  *app.QuizService
	auth     *auth.Manager
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, authManager *auth.Manager, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		auth:    authManager,
		log:     log,
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

type startPayload struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	Count           int    `json:"count"`
	DurationSeconds int    `json:"durationSeconds"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

// movePayload carries the pending input of the current question, if any.
type movePayload struct {
	Answer *string `json:"answer"`
}

type startedPayload struct {
	SessionID       string `json:"sessionId"`
	Username        string `json:"username"`
	Total           int    `json:"total"`
	DurationSeconds int    `json:"durationSeconds"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// subscription forwards one session's snapshots to the connection.
type subscription struct {
	session *app.Session
	cancel  func()
	done    chan struct{}
}

func (s *subscription) stop() {
	s.cancel()
	<-s.done
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				failed = true
				// unblock the read loop; keep draining so producers never stall
				_ = conn.Close()
			}
		}
	}()

	sendError := func(err error) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}

	var current *subscription
	defer func() {
		close(closeSignals)
		if current != nil {
			current.stop()
			// an unfinished quiz is discarded with its connection
			h.service.EndQuiz(current.session.Username(), current.session.ID())
		}
		close(send)
		<-writerDone
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		if inbound.Type == "start" {
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(errors.New("invalid start payload"))
				continue
			}
			session, err := h.start(ctx, payload)
			if err != nil {
				sendError(err)
				continue
			}
			if current != nil {
				current.stop()
				if current.session.Username() != session.Username() {
					h.service.EndQuiz(current.session.Username(), current.session.ID())
				}
			}
			send <- outboundMessage[any]{Type: "started", Payload: startedPayload{
				SessionID:       session.ID(),
				Username:        session.Username(),
				Total:           session.Snapshot().Total,
				DurationSeconds: session.Remaining(),
			}}
			current = h.subscribe(session, send, closeSignals)
			continue
		}

		if current == nil {
			sendError(errors.New("quiz not started"))
			continue
		}
		if err := h.dispatch(ctx, current.session, inbound, send); err != nil {
			sendError(err)
		}
	}
}

func (h *WSHandler) start(ctx context.Context, payload startPayload) (*app.Session, error) {
	if err := h.auth.Login(ctx, payload.Username, payload.Password); err != nil {
		return nil, err
	}
	return h.service.StartQuiz(ctx, payload.Username, payload.Count, quizDuration(payload.DurationSeconds))
}

// maxQuizSeconds caps a client supplied quiz duration at one day.
const maxQuizSeconds = 24 * 60 * 60

// quizDuration converts a requested duration in seconds. Zero or negative
// values select the configured default.
func quizDuration(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	if seconds > maxQuizSeconds {
		seconds = maxQuizSeconds
	}
	return time.Duration(seconds) * time.Second
}

// subscribe pumps session snapshots into send until the subscription is
// cancelled or the connection closes. A snapshot carrying a result is sent
// once as "result".
func (h *WSHandler) subscribe(session *app.Session, send chan<- outboundMessage[any], closeSignals <-chan struct{}) *subscription {
	updates, cancel := session.Subscribe()
	sub := &subscription{session: session, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		resultSent := false
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				msg := outboundMessage[any]{Type: "snapshot", Payload: snap}
				if snap.Result != nil {
					if resultSent {
						continue
					}
					resultSent = true
					msg = outboundMessage[any]{Type: "result", Payload: snap.Result}
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()
	return sub
}

func (h *WSHandler) dispatch(ctx context.Context, session *app.Session, inbound inboundMessage, send chan<- outboundMessage[any]) error {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errors.New("invalid answer payload")
		}
		return session.SetAnswer(payload.Answer)
	case "next", "prev":
		var payload movePayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return errors.New("invalid " + inbound.Type + " payload")
			}
		}
		if payload.Answer != nil {
			if err := session.SetAnswer(*payload.Answer); err != nil {
				return err
			}
		}
		if inbound.Type == "next" {
			return session.Advance()
		}
		return session.Retreat()
	case "review":
		review, err := session.Review()
		if err != nil {
			return err
		}
		send <- outboundMessage[any]{Type: "review", Payload: review}
		return nil
	case "resume":
		return session.Resume()
	case "submit":
		// the graded result reaches the client through the subscription
		_, err := session.Submit(ctx)
		return err
	default:
		return errors.New("unsupported message type")
	}
}
