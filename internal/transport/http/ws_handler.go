package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"sat-practice-service/internal/app"
	"sat-practice-service/internal/auth"
	"sat-practice-service/internal/domain"
)

// WSHandler drives one practice session per WebSocket connection. All
// mutations arrive on the read loop, so session state sees a single logical
// actor; the timer ticker only performs idempotent clock reads (plus the
// forced expiry transition, which the session serializes internally).
type WSHandler struct {
	service  *app.PracticeService
	broker   *auth.Broker
	verifier *auth.Verifier
	upgrader websocket.Upgrader
	validate *validator.Validate
}

func NewWSHandler(service *app.PracticeService, broker *auth.Broker, verifier *auth.Verifier) *WSHandler {
	return &WSHandler{
		service:  service,
		broker:   broker,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		validate: validator.New(),
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

type startPayload struct {
	Mode  string `json:"mode" validate:"required,oneof=quiz test"`
	Count int    `json:"count" validate:"gte=0"`
}

type answerPayload struct {
	Option string `json:"option" validate:"required,oneof=A B C D"`
}

type navigatePayload struct {
	Index int `json:"index" validate:"gte=0"`
}

type annotatePayload struct {
	Target string `json:"target" validate:"required,oneof=passage prompt"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Mode   string `json:"mode" validate:"required,oneof=highlight underline"`
	Color  string `json:"color" validate:"required,oneof=green yellow red"`
}

type reportPayload struct {
	Type    string `json:"type" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type explanationPayload struct {
	Text string `json:"text"`
}

type reviewPayload struct {
	Statuses []domain.ReviewStatus `json:"statuses"`
}

// ServeWS upgrades the request and runs the session protocol until the
// client disconnects. Closing the connection discards any live session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	var user auth.User
	if token := r.URL.Query().Get("token"); token != "" && h.verifier != nil {
		verified, err := h.verifier.Verify(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		user = verified
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// producers guards every goroutine that writes to send, so the channel
	// closes only after all of them have stopped.
	var producers sync.WaitGroup

	// Forward auth session-changed events for the connection's lifetime.
	if h.broker != nil {
		events, cancel := h.broker.Subscribe()
		defer cancel()
		producers.Add(1)
		go func() {
			defer producers.Done()
			for {
				select {
				case event, ok := <-events:
					if !ok {
						return
					}
					select {
					case send <- outboundMessage[any]{Type: "auth", Payload: event}:
					case <-closeSignals:
						return
					}
				case <-closeSignals:
					return
				}
			}
		}()
	}

	var sessionID string
	defer func() {
		close(closeSignals)
		producers.Wait()
		close(send)
		<-writerDone
		if sessionID != "" {
			h.service.EndSession(sessionID)
		}
	}()

	if user.ID != "" {
		send <- outboundMessage[any]{Type: "hello", Payload: user}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "start":
			if sessionID != "" {
				send <- errMsg("session already started")
				continue
			}
			var payload startPayload
			if !h.decode(inbound.Payload, &payload, send) {
				continue
			}
			info, err := h.startSession(r.Context(), payload)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			sessionID = info.ID
			send <- outboundMessage[any]{Type: "started", Payload: info}
			producers.Add(1)
			go h.runTicker(&producers, sessionID, send, closeSignals)

		case "answer":
			var payload answerPayload
			if !h.decode(inbound.Payload, &payload, send) {
				continue
			}
			session, err := h.service.Lookup(sessionID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			feedback, err := session.SelectAnswer(domain.Letter(payload.Option))
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: feedback}

		case "navigate":
			var payload navigatePayload
			if !h.decode(inbound.Payload, &payload, send) {
				continue
			}
			h.navigate(sessionID, payload.Index, send)

		case "next":
			session, err := h.service.Lookup(sessionID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			view := session.View()
			if session.Mode() == domain.ModeQuiz && view.Index == view.Total-1 {
				// Advancing past the final question ends the quiz.
				results, err := session.Finish()
				if err != nil {
					send <- errMsg(err.Error())
					continue
				}
				send <- outboundMessage[any]{Type: "results", Payload: results}
				continue
			}
			h.navigate(sessionID, view.Index+1, send)

		case "prev":
			session, err := h.service.Lookup(sessionID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			h.navigate(sessionID, session.Current()-1, send)

		case "finishModule":
			session, err := h.service.Lookup(sessionID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			phase, err := session.FinishModule()
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			if phase == domain.PhaseResults {
				results, err := session.Results()
				if err != nil {
					send <- errMsg(err.Error())
					continue
				}
				send <- outboundMessage[any]{Type: "results", Payload: results}
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: session.View()}

		case "finish":
			session, err := h.service.Lookup(sessionID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			results, err := session.Finish()
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "results", Payload: results}

		case "review":
			session, err := h.service.Lookup(sessionID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "review", Payload: reviewPayload{Statuses: session.ReviewStatuses()}}

		case "annotate":
			var payload annotatePayload
			if !h.decode(inbound.Payload, &payload, send) {
				continue
			}
			session, err := h.service.Lookup(sessionID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			if err := session.Annotate(domain.AnnotationTarget(payload.Target), domain.Annotation{
				Start: payload.Start,
				End:   payload.End,
				Mode:  domain.AnnotationMode(payload.Mode),
				Color: payload.Color,
			}); err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: session.View()}

		case "explain":
			// Fetched off the read loop so navigation is never blocked; a
			// stale result is simply dropped by the client.
			id := sessionID
			producers.Add(1)
			go func() {
				defer producers.Done()
				text, err := h.service.Explain(context.Background(), id)
				payload := outboundMessage[any]{Type: "explanation", Payload: explanationPayload{Text: text}}
				if err != nil {
					payload = errMsg("failed to fetch explanation, please try again")
					log.Printf("explanation fetch failed: %v", err)
				}
				select {
				case send <- payload:
				case <-closeSignals:
				}
			}()

		case "report":
			var payload reportPayload
			if !h.decode(inbound.Payload, &payload, send) {
				continue
			}
			id := sessionID
			producers.Add(1)
			go func() {
				defer producers.Done()
				msg := outboundMessage[any]{Type: "reported", Payload: struct{}{}}
				if err := h.service.SubmitReport(context.Background(), id, payload.Type, payload.Message); err != nil {
					msg = errMsg("failed to submit report, please try again")
					log.Printf("report submit failed: %v", err)
				}
				select {
				case send <- msg:
				case <-closeSignals:
				}
			}()

		default:
			send <- errMsg("unsupported message type")
		}
	}
}

func (h *WSHandler) startSession(ctx context.Context, payload startPayload) (app.SessionInfo, error) {
	if domain.Mode(payload.Mode) == domain.ModeTest {
		return h.service.StartTest(ctx)
	}
	return h.service.StartQuiz(ctx, payload.Count)
}

func (h *WSHandler) navigate(sessionID string, target int, send chan<- outboundMessage[any]) {
	session, err := h.service.Lookup(sessionID)
	if err != nil {
		send <- errMsg(err.Error())
		return
	}
	view, err := session.NavigateTo(target)
	if err != nil {
		send <- errMsg(err.Error())
		return
	}
	send <- outboundMessage[any]{Type: "question", Payload: view}
}

// runTicker pushes a timer snapshot every second. When a timed test's budget
// runs out the session has already forced itself into results; the ticker
// reports the final summary and stops.
func (h *WSHandler) runTicker(producers *sync.WaitGroup, sessionID string, send chan<- outboundMessage[any], closeSignals <-chan struct{}) {
	defer producers.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			session, err := h.service.Lookup(sessionID)
			if err != nil {
				return
			}
			ts := session.TimerTick()
			select {
			case send <- outboundMessage[any]{Type: "timer", Payload: ts}:
			case <-closeSignals:
				return
			}
			if ts.Expired {
				if results, err := session.Results(); err == nil {
					select {
					case send <- outboundMessage[any]{Type: "results", Payload: results}:
					case <-closeSignals:
					}
				}
				return
			}
			if session.Phase() == domain.PhaseResults {
				return
			}
		case <-closeSignals:
			return
		}
	}
}

func (h *WSHandler) decode(raw json.RawMessage, out any, send chan<- outboundMessage[any]) bool {
	if err := json.Unmarshal(raw, out); err != nil {
		send <- errMsg("invalid payload")
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		send <- errMsg("invalid payload: " + err.Error())
		return false
	}
	return true
}

func errMsg(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
