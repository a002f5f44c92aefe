package http

import (
	"encoding/json"
	"net/http"

	"assessment-session-service/internal/app"
	"assessment-session-service/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

func NewWSHandler(service *app.AttemptService, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSHandler{
		service: service,
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

type answerPayload struct {
	ItemID string `json:"itemId"`
	Option *int   `json:"option"`
}

type tickPayload struct {
	Remaining int `json:"remaining"`
}

type closedPayload struct {
	Reason string `json:"reason"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

func errorMessage(err error) outboundMessage[any] {
	f := describe(err)
	if f.redirect != "" {
		return outboundMessage[any]{Type: "redirect", Payload: errorPayload{Message: f.message, Redirect: f.redirect}}
	}
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: f.message}}
}

// ServeWS upgrades the request and drives one live attempt: it starts the attempt, streams
// countdown ticks and accepts answers and the final submission. Disconnecting does not stop
// the clock.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	assessmentID := r.URL.Query().Get("assessmentId")
	participantID := r.URL.Query().Get("participantId")
	if assessmentID == "" || participantID == "" {
		http.Error(w, "missing assessmentId or participantId", http.StatusBadRequest)
		return
	}
	viewer := domain.Viewer{ID: participantID, Role: domain.RoleParticipant}
	log := h.log.WithFields(logrus.Fields{"assessment": assessmentID, "participant": participantID})

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	view, err := h.service.Start(r.Context(), viewer, assessmentID)
	if err != nil {
		log.WithError(err).Info("attempt not started")
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	events, cancel, err := h.service.Subscribe(r.Context(), viewer, view.AttemptID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()

	// a failed write closes the connection so the read loop below returns too
	out := newOutbox(conn.WriteJSON, func(err error) {
		log.WithError(err).Debug("ws write error")
		_ = conn.Close()
	})
	closeSignals := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				msg, ok := eventMessage(event)
				if !ok {
					continue
				}
				if !out.push(msg) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	out.push(outboundMessage[any]{Type: "started", Payload: view})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply outboundMessage[any]
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.ItemID == "" || payload.Option == nil {
				reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				break
			}
			outcome, err := h.service.Answer(r.Context(), viewer, view.AttemptID, payload.ItemID, *payload.Option)
			if err != nil {
				log.WithError(err).WithField("item", payload.ItemID).Info("answer rejected")
				reply = errorMessage(err)
				break
			}
			if outcome.Next == nil {
				continue
			}
			reply = outboundMessage[any]{Type: "item", Payload: outcome.Next}
		case "submit":
			if _, err := h.service.Submit(r.Context(), viewer, view.AttemptID); err != nil {
				log.WithError(err).Info("submit rejected")
				reply = errorMessage(err)
				break
			}
			continue
		default:
			reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		if !out.push(reply) {
			break
		}
	}

	close(closeSignals)
	<-eventsDone
	out.close()
}

// outbox owns the single writer of a connection; gorilla connections do not support
// concurrent writes. After a write fails push reports false instead of blocking.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newOutbox(write func(v interface{}) error, onError func(error)) *outbox {
	o := &outbox{
		send: make(chan outboundMessage[any], 16),
		done: make(chan struct{}),
	}
	go func() {
		defer close(o.done)
		for msg := range o.send {
			if err := write(msg); err != nil {
				onError(err)
				return
			}
		}
	}()
	return o
}

func (o *outbox) push(msg outboundMessage[any]) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

// close flushes queued messages and waits for the writer. No push may follow.
func (o *outbox) close() {
	close(o.send)
	<-o.done
}

// eventMessage maps session events onto the wire. The finalized attempt is the only place the
// participant learns the score.
func eventMessage(event app.SessionEvent) (outboundMessage[any], bool) {
	switch event.Type {
	case app.EventTick:
		return outboundMessage[any]{Type: "tick", Payload: tickPayload{Remaining: event.Remaining}}, true
	case app.EventFinalized:
		if event.Finalized == nil {
			return outboundMessage[any]{}, false
		}
		return outboundMessage[any]{Type: "finalized", Payload: resultFromFinalized(*event.Finalized)}, true
	case app.EventClosed:
		return outboundMessage[any]{Type: "closed", Payload: closedPayload{Reason: event.Reason}}, true
	}
	return outboundMessage[any]{}, false
}

type finalizedPayload struct {
	AttemptID    string                 `json:"attemptId"`
	Trigger      domain.FinalizeTrigger `json:"trigger"`
	Score        int                    `json:"score"`
	CorrectCount int                    `json:"correctCount"`
	TotalItems   int                    `json:"totalItems"`
}

func resultFromFinalized(f domain.FinalizedAttempt) finalizedPayload {
	return finalizedPayload{
		AttemptID:    f.Attempt.ID,
		Trigger:      f.Trigger,
		Score:        f.Attempt.Score,
		CorrectCount: f.Attempt.CorrectCount,
		TotalItems:   f.Attempt.TotalItems,
	}
}
