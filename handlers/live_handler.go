package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"habitsAPI/internal/session"
	"habitsAPI/internal/views"
	"habitsAPI/middleware"
	"habitsAPI/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveHandler streams the caller's home view over a websocket. The session
// stays referenced while the socket is open.
type LiveHandler struct {
	manager        *services.SessionManager
	profileService *services.ProfileService
}

func NewLiveHandler(manager *services.SessionManager, profileService *services.ProfileService) *LiveHandler {
	return &LiveHandler{manager: manager, profileService: profileService}
}

type liveMessage struct {
	Action string `json:"action"`
	UID    string `json:"uid"`
}

type liveEvent struct {
	Type  string      `json:"type"`
	Home  *views.Home `json:"home,omitempty"`
	Error string      `json:"error,omitempty"`
}

// GET /api/v1/live
func (h *LiveHandler) Connect(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if _, err := h.profileService.Ensure(ctx, uid, middleware.GetDisplayName(ctx)); err != nil {
		respondWithServiceError(w, "LiveHandler.Connect", err)
		return
	}
	sess, err := h.manager.Acquire(ctx, uid)
	if err != nil {
		log.Printf("LiveHandler.Connect: failed to acquire session of %s: %v", uid, err)
		respondWithError(w, http.StatusServiceUnavailable, "Session is not available")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("LiveHandler.Connect: could not upgrade connection: %v", err)
		h.manager.Release(sess)
		return
	}

	c := &liveClient{
		id:   uuid.NewString(),
		conn: conn,
		sess: sess,
		wake: make(chan struct{}, 1),
		send: make(chan []byte, 8),
		done: make(chan struct{}),
	}
	middleware.LiveConnections().Inc()
	stop := sess.Home.Subscribe(c.pushHome)
	c.pushHome(sess.Home.Get())

	log.Printf("LiveHandler.Connect: client %s opened for %s", c.id, uid)
	go c.writePump()
	c.readPump()
	log.Printf("LiveHandler.Connect: client %s closed", c.id)

	stop()
	close(c.done)
	h.manager.Release(sess)
	middleware.LiveConnections().Dec()
}

// liveClient keeps only the newest home frame; a slow socket skips
// intermediate ones.
type liveClient struct {
	id   string
	conn *websocket.Conn
	sess *session.Session

	mu     sync.Mutex
	latest []byte

	wake chan struct{}
	send chan []byte
	done chan struct{}
}

func (c *liveClient) pushHome(home views.Home) {
	data, err := json.Marshal(liveEvent{Type: "home", Home: &home})
	if err != nil {
		log.Printf("LiveClient: failed to marshal home: %v", err)
		return
	}
	c.mu.Lock()
	c.latest = data
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *liveClient) sendError(msg string) {
	data, _ := json.Marshal(liveEvent{Type: "error", Error: msg})
	select {
	case c.send <- data:
	case <-c.done:
	default:
		log.Printf("LiveClient: dropping error for %s, send buffer full", c.id)
	}
}

func (c *liveClient) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("LiveClient: read error for %s: %v", c.id, err)
			}
			return
		}

		var msg liveMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}
		switch msg.Action {
		case "view":
			if err := c.sess.ViewUser(msg.UID); err != nil {
				c.sendError(err.Error())
			}
		default:
			c.sendError("unknown action")
		}
	}
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-c.wake:
			c.mu.Lock()
			message := c.latest
			c.latest = nil
			c.mu.Unlock()
			if message == nil {
				continue
			}
			if err := c.write(message); err != nil {
				return
			}

		case message := <-c.send:
			if err := c.write(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *liveClient) write(message []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	w.Write(message)
	return w.Close()
}
