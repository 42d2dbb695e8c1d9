package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"matchin-backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TokenVerifier resolves a session token to its session ID.
type TokenVerifier interface {
	VerifyToken(token string) (uuid.UUID, error)
}

// client serializes writes: gorilla connections allow one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Hub relays session events and audio to the browser tabs watching a session.
// Events go through Redis so every instance sees them; audio frames are
// written to local connections only.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	cancelFuncs map[uuid.UUID]context.CancelFunc

	publisher  *redis.Client
	subscriber *redis.Client
	verifier   TokenVerifier
}

// NewHub builds a hub. With nil Redis clients events are delivered locally.
func NewHub(publisher, subscriber *redis.Client, verifier TokenVerifier) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		publisher:   publisher,
		subscriber:  subscriber,
		verifier:    verifier,
	}
}

func channelName(sessionID uuid.UUID) string {
	return "session_updates:" + sessionID.String()
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessionID, err := h.verifier.VerifyToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if requested := r.URL.Query().Get("session_id"); requested != "" && requested != sessionID.String() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn}
	h.registerConnection(sessionID, c)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(sessionID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)

	// Start pub/sub subscription if this is the first connection for this session
	if len(h.connections[sessionID]) == 1 && h.subscriber != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribeToPubSub(ctx, sessionID)
	}

	log.Printf("WebSocket connected: session %s (total: %d)", sessionID, len(h.connections[sessionID]))
}

func (h *Hub) unregisterConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[sessionID]
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	log.Printf("WebSocket disconnected: session %s", sessionID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, sessionID uuid.UUID) {
	pubsub := h.subscriber.Subscribe(ctx, channelName(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, websocket.TextMessage, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(sessionID uuid.UUID, messageType int, data []byte) int {
	h.mu.RLock()
	clients := append([]*client(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if err := c.write(messageType, data); err != nil {
			log.Printf("WebSocket write failed for session %s: %v", sessionID, err)
			continue
		}
		sent++
	}
	return sent
}

// PublishEvent is a session observer: it fans the event out to every tab
// watching the session, across instances when Redis is configured.
func (h *Hub) PublishEvent(e models.SessionEvent) {
	data, err := json.Marshal(models.WSMessage{Type: string(e.Type), Payload: e})
	if err != nil {
		log.Printf("Failed to encode %s event for session %s: %v", e.Type, e.SessionID, err)
		return
	}

	if h.publisher == nil {
		h.broadcast(e.SessionID, websocket.TextMessage, data)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.publisher.Publish(ctx, channelName(e.SessionID), data).Err(); err != nil {
		log.Printf("WARNING: Redis publish failed for session %s, delivering locally: %v", e.SessionID, err)
		h.broadcast(e.SessionID, websocket.TextMessage, data)
	}
}

func (h *Hub) ConnectionCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID])
}

// AudioSink returns the sink that streams a session's read-aloud audio as
// binary frames.
func (h *Hub) AudioSink(sessionID uuid.UUID) *AudioSink {
	return &AudioSink{hub: h, sessionID: sessionID}
}

type AudioSink struct {
	hub       *Hub
	sessionID uuid.UUID
}

// WriteAudio never fails when nobody is listening; the audio is dropped.
func (s *AudioSink) WriteAudio(frame []byte) error {
	s.hub.broadcast(s.sessionID, websocket.BinaryMessage, frame)
	return nil
}
