package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"quizzler-live/internal/app"
	"quizzler-live/internal/domain"
)

// WebSocket close codes for admission failures, distinguishable by clients.
const (
	CloseBadRequest   = 4000
	CloseRoomNotFound = 4004
	CloseNameTaken    = 4009
)

const (
	writeWait = 10 * time.Second

	// Inbound rate limit per connection; a quiz client has no legitimate
	// reason to exceed this.
	inboundRate  = 20
	inboundBurst = 40
)

type Handler struct {
	directory     *app.Directory
	results       ScoreboardLoader
	upgrader      websocket.Upgrader
	heartbeat     time.Duration
	clientTimeout time.Duration
}

// ScoreboardLoader serves archived results for closed rooms.
type ScoreboardLoader interface {
	LoadScoreboard(ctx context.Context, code string) (domain.Scoreboard, error)
}

func NewHandler(directory *app.Directory, results ScoreboardLoader, heartbeat, clientTimeout time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	if clientTimeout <= 0 {
		clientTimeout = 60 * time.Second
	}
	return &Handler{
		directory: directory,
		results:   results,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		heartbeat:     heartbeat,
		clientTimeout: clientTimeout,
	}
}

type inboundEnvelope struct {
	Type string `json:"type"`
}

type newQuestionMessage struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correct_answer"`
	TimeLimit     *int     `json:"time_limit"`
}

type answerMessage struct {
	Option *int `json:"option"`
}

// ServeHost upgrades the host connection, creates a room and runs the host's
// read loop. The room dies with this connection.
func (h *Handler) ServeHost(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	room, outbox, err := h.directory.CreateRoom(name)
	if err != nil {
		closeWithReason(conn, CloseBadRequest, err.Error())
		return
	}
	go h.writePump(conn, outbox)
	defer room.HostLost()

	limiter := rate.NewLimiter(rate.Limit(inboundRate), inboundBurst)
	h.armReadDeadline(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.armReadDeadline(conn)
		if !limiter.Allow() {
			log.Printf("room %s: host flooding, message dropped", room.Code())
			continue
		}

		var envelope inboundEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			room.NotifyHostError("malformed message")
			continue
		}
		switch envelope.Type {
		case "new_question":
			var msg newQuestionMessage
			if err := json.Unmarshal(data, &msg); err != nil || msg.CorrectAnswer == nil || msg.TimeLimit == nil {
				room.NotifyHostError("invalid new_question payload")
				continue
			}
			if err := room.StartRound(msg.Question, msg.Options, *msg.CorrectAnswer, *msg.TimeLimit); err != nil {
				room.NotifyHostError(err.Error())
			}
		case "close_room":
			room.Close("closed by host")
			return
		default:
			room.NotifyHostError("unsupported message type")
		}
	}
}

// ServePlay admits a player into an existing room. Join parameters travel on
// the query string; admission failures close the socket with a distinguishing
// status before any room state is touched.
func (h *Handler) ServePlay(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("code")))
	name := strings.TrimSpace(r.URL.Query().Get("name"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	if code == "" || name == "" {
		closeWithReason(conn, CloseBadRequest, "missing code or name")
		return
	}
	room, ok := h.directory.Get(code)
	if !ok {
		closeWithReason(conn, CloseRoomNotFound, domain.ErrRoomNotFound.Error())
		return
	}
	outbox, err := room.Join(name)
	if err != nil {
		status := CloseBadRequest
		if err == domain.ErrNameTaken {
			status = CloseNameTaken
		} else if err == domain.ErrRoomClosed {
			status = CloseRoomNotFound
		}
		closeWithReason(conn, status, err.Error())
		return
	}
	go h.writePump(conn, outbox)
	defer room.Leave(name)

	limiter := rate.NewLimiter(rate.Limit(inboundRate), inboundBurst)
	h.armReadDeadline(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.armReadDeadline(conn)
		if !limiter.Allow() {
			log.Printf("room %s: player %s flooding, message dropped", code, name)
			continue
		}

		var envelope inboundEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			room.NotifyPlayerError(name, "malformed message")
			continue
		}
		switch envelope.Type {
		case "answer":
			var msg answerMessage
			if err := json.Unmarshal(data, &msg); err != nil || msg.Option == nil {
				room.NotifyPlayerError(name, "invalid answer payload")
				continue
			}
			if err := room.SubmitAnswer(name, *msg.Option); err != nil {
				room.NotifyPlayerError(name, err.Error())
			}
		default:
			room.NotifyPlayerError(name, "unsupported message type")
		}
	}
}

// writePump is the single writer for one socket: it drains the room's outbox,
// interleaves liveness pings and closes the socket once the outbox closes.
func (h *Handler) writePump(conn *websocket.Conn, outbox <-chan domain.Message) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case msg, ok := <-outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(domain.NewHeartbeat()); err != nil {
				return
			}
		}
	}
}

func (h *Handler) armReadDeadline(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(h.clientTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.clientTimeout))
	})
}

func closeWithReason(conn *websocket.Conn, status int, reason string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(status, reason))
	_ = conn.Close()
}
