// Chess session coordinator
//
// Pairs players into two-seat rooms and relays turn state between them:
// - WebSockets per room: /path/:roomid and /path/:roomid/ws
// - Rooms are created implicitly on first join, destroyed when drained
// - First arrival plays white, second black; a third joiner is turned away
// - Every accepted move is written to the position cache before relay,
//   so a player rejoining a live room gets the latest position replayed
// - Move legality is the client-side rules engine's problem; the server
//   relays whatever position the sender asserts
// - Idle rooms auto-reaped after a configurable timeout
// - Random 8-char room IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current room, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// ClientMessage is the envelope for events coming from clients.
type ClientMessage struct {
	Type     string          `json:"type"`               // "join-room", "make-move", "leave-room"
	Room     string          `json:"room,omitempty"`     // target room ID
	Position string          `json:"position,omitempty"` // serialized position blob, opaque to the server
	Move     json.RawMessage `json:"move,omitempty"`     // move detail, relayed verbatim
}

// PlayerInfoMessage is sent to a single client on a successful join.
type PlayerInfoMessage struct {
	Type     string `json:"type"` // "player-info"
	PlayerID string `json:"player_id"`
	Color    Color  `json:"color"`
}

// RoomUnavailableMessage rejects a join against a full room. Only the
// rejected joiner hears about it.
type RoomUnavailableMessage struct {
	Type string `json:"type"` // "room-unavailable"
}

// PlayerJoinedMessage broadcasts a room's new occupant count.
type PlayerJoinedMessage struct {
	Type      string `json:"type"` // "player-joined"
	Occupants int    `json:"occupants"`
}

// GameStateMessage carries the latest position, either relayed from the
// opposing player or replayed from the cache on join.
type GameStateMessage struct {
	Type     string          `json:"type"` // "game-state-update"
	Position string          `json:"position"`
	Move     json.RawMessage `json:"move,omitempty"`
}

type Client struct {
	conn *websocket.Conn
	send chan any
	id   string
}

type joinRequest struct {
	client *Client
	roomID string
}

type moveRequest struct {
	client *Client
	msg    ClientMessage
}

type leaveRequest struct {
	client *Client
	roomID string
}

// Hub is the session coordinator: a single dispatcher owning the room
// registry and the position cache for the whole chess surface. Events from
// all connections funnel through run() one at a time, so registry mutations
// never interleave; the mutex additionally lets tests drive handlers
// directly.
type Hub struct {
	registry *Registry
	cache    PositionCache

	clients map[*Client]bool
	byID    map[string]*Client

	register chan *Client
	unreg    chan *Client
	joins    chan joinRequest
	moves    chan moveRequest
	leaves   chan leaveRequest

	mu sync.RWMutex

	lastActive map[string]time.Time // roomID -> last event, for the reaper
}

func newHub(registry *Registry, cache PositionCache) *Hub {
	return &Hub{
		registry:   registry,
		cache:      cache,
		clients:    make(map[*Client]bool),
		byID:       make(map[string]*Client),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		joins:      make(chan joinRequest),
		moves:      make(chan moveRequest),
		leaves:     make(chan leaveRequest),
		lastActive: make(map[string]time.Time),
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.byID[c.id] = c
			h.mu.Unlock()

		case c := <-h.unreg:
			h.handleDisconnect(cfg, c)

		case jr := <-h.joins:
			h.handleJoin(cfg, jr)

		case mr := <-h.moves:
			h.handleMove(cfg, mr)

		case lr := <-h.leaves:
			h.handleLeave(cfg, lr)
		}
	}
}

// sendLocked queues msg for a single client, dropping the client on
// backpressure. Events queued by an already-dropped client's readPump can
// still arrive here after its send channel is closed; those fall through
// silently. Assumes h.mu is held.
func (h *Hub) sendLocked(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.dropLocked(c)
	}
}

// dropLocked forgets a client and closes its send channel. Registry cleanup
// is left to the disconnect path, which fires when the connection dies.
func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		delete(h.byID, c.id)
		close(c.send)
	}
}

// broadcastLocked sends msg to every connected occupant of roomID except
// exclude. Occupants without a live client are skipped.
func (h *Hub) broadcastLocked(roomID, exclude string, msg any) {
	for _, id := range h.registry.Occupants(roomID) {
		if id == exclude {
			continue
		}
		if c, ok := h.byID[id]; ok {
			h.sendLocked(c, msg)
		}
	}
}

// handleJoin processes "join-room" events.
func (h *Hub) handleJoin(cfg *Config, jr joinRequest) {
	c := jr.client
	roomID := jr.roomID

	if roomID == "" || c.id == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	current, seated := h.registry.RoomOf(c.id)

	// Reject against a full room up front: a doomed join must not mutate
	// anything, including the joiner's current seat.
	if h.registry.Occupancy(roomID) >= roomCapacity && (!seated || current != roomID) {
		h.sendLocked(c, RoomUnavailableMessage{Type: "room-unavailable"})
		logf(cfg, "ROOMS: Turned %s away from full room %q", c.id, roomID)
		return
	}

	// One connection holds at most one seat: an admitted join vacates the
	// old room first.
	if seated && current != roomID {
		h.departLocked(cfg, current, c.id)
	}

	color, err := h.registry.Join(roomID, c.id)
	if err != nil {
		h.sendLocked(c, RoomUnavailableMessage{Type: "room-unavailable"})
		logf(cfg, "ROOMS: Turned %s away from full room %q", c.id, roomID)
		return
	}

	h.lastActive[roomID] = time.Now()

	h.sendLocked(c, PlayerInfoMessage{
		Type:     "player-info",
		PlayerID: c.id,
		Color:    color,
	})

	occupants := h.registry.Occupancy(roomID)
	h.broadcastLocked(roomID, "", PlayerJoinedMessage{
		Type:      "player-joined",
		Occupants: occupants,
	})

	logf(cfg, "ROOMS: Player %s joined room %q as %s (%d seated)", c.id, roomID, color, occupants)

	// Replay the cached position, if any, so a player joining a live room
	// picks up where it left off. Cache trouble just means nothing to
	// recover.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.cacheTimeout)
	defer cancel()

	position, ok, err := h.cache.Get(ctx, roomID)
	if err != nil {
		logf(cfg, "CACHE: Read for room %q failed: %v", roomID, err)
		return
	}
	if ok {
		h.sendLocked(c, GameStateMessage{
			Type:     "game-state-update",
			Position: position,
		})
		logf(cfg, "CACHE: Restored position for room %q", roomID)
	}
}

// handleMove processes "make-move" events: cache the asserted position,
// then relay it to the room's other occupants. The sender never hears its
// own move back.
func (h *Hub) handleMove(cfg *Config, mr moveRequest) {
	c := mr.client
	roomID := mr.msg.Room

	if roomID == "" || mr.msg.Position == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Moves only relay between current members; anything else is a stale
	// event racing a departure and is dropped.
	if current, ok := h.registry.RoomOf(c.id); !ok || current != roomID {
		return
	}

	h.lastActive[roomID] = time.Now()

	// Best-effort write, last writer wins. A cache outage must not stall
	// the live relay.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.cacheTimeout)
	if err := h.cache.Put(ctx, roomID, mr.msg.Position); err != nil {
		logf(cfg, "CACHE: Write for room %q failed: %v", roomID, err)
	}
	cancel()

	h.broadcastLocked(roomID, c.id, GameStateMessage{
		Type:     "game-state-update",
		Position: mr.msg.Position,
		Move:     mr.msg.Move,
	})

	logf(cfg, "ROOMS: Relayed move from %s in room %q", c.id, roomID)
}

// handleLeave processes "leave-room" events.
func (h *Hub) handleLeave(cfg *Config, lr leaveRequest) {
	if lr.roomID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.departLocked(cfg, lr.roomID, lr.client.id)
}

// handleDisconnect cleans up after a dead connection: forget the client,
// then vacate whichever room it occupied. Already-cleaned-up participants
// fall through silently.
func (h *Hub) handleDisconnect(cfg *Config, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(c)

	if roomID, ok := h.registry.RoomOf(c.id); ok {
		h.departLocked(cfg, roomID, c.id)
	}
}

// departLocked removes a participant from a room and notifies whoever is
// left. Absent membership is a no-op. Assumes h.mu is held.
func (h *Hub) departLocked(cfg *Config, roomID, participantID string) {
	if current, ok := h.registry.RoomOf(participantID); !ok || current != roomID {
		return
	}

	remaining := h.registry.Leave(roomID, participantID)
	if remaining > 0 {
		h.lastActive[roomID] = time.Now()
		h.broadcastLocked(roomID, "", PlayerJoinedMessage{
			Type:      "player-joined",
			Occupants: remaining,
		})
	} else {
		delete(h.lastActive, roomID)
	}

	logf(cfg, "ROOMS: Player %s left room %q (%d remaining)", participantID, roomID, remaining)
}

// reaperLoop periodically drains rooms that have seen no events for
// cfg.sessionTimeout.
func (h *Hub) reaperLoop(cfg *Config) {
	ticker := time.NewTicker(cfg.sessionTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-cfg.sessionTimeout)

		h.mu.Lock()
		for roomID, last := range h.lastActive {
			if !last.Before(cutoff) {
				continue
			}

			for _, id := range h.registry.Occupants(roomID) {
				if c, ok := h.byID[id]; ok {
					h.dropLocked(c)
					_ = c.conn.Close()
				}
				h.registry.Leave(roomID, id)
			}

			delete(h.lastActive, roomID)
			logf(cfg, "ROOMS: Reaped idle room %q", roomID)
		}
		h.mu.Unlock()
	}
}

func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(cfg.origins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range cfg.origins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}
}

// WebSocket handler; each connection becomes one participant with a fresh
// identity. Reconnecting clients get a new ID and rejoin like anyone else.
func serveWS(cfg *Config, h *Hub) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 8),
			id:   uuid.NewString(),
		}

		h.register <- client
		logf(cfg, "SOCKET: Connected %s from %s", client.id, realIP(r))

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join-room":
			h.joins <- joinRequest{
				client: c,
				roomID: msg.Room,
			}
		case "make-move":
			h.moves <- moveRequest{
				client: c,
				msg:    msg,
			}
		case "leave-room":
			h.leaves <- leaveRequest{
				client: c,
				roomID: msg.Room,
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// newRoomID generates a crypto-random room ID and ensures it doesn't
// collide with an occupied room.
func newRoomID(reg *Registry) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		if reg.Occupancy(id) == 0 {
			return id
		}
	}
}

// QR handler: generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("roomid")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:roomid/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed chess/index.html
var chessHTML []byte

//go:embed chess/app.css
var chessCSS []byte

//go:embed chess/app.js
var chessJS []byte

func getIndexHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(chessHTML)
	}
}

func getCssHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(chessCSS)
	}
}

func getJsHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(chessJS)
	}
}

// redirectNewRoom handles GET /path by generating a new random room ID
// (with server-side collision detection) and redirecting to /path/:roomid.
func redirectNewRoom(cfg *Config, path string, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomID := newRoomID(reg)
		logf(cfg, "ROOMS: Created room %s/%s", path, roomID)
		http.Redirect(w, r, cfg.prefix+path+"/"+roomID, http.StatusTemporaryRedirect)
	}
}

// registerChessGame sets up routes so that:
//   - $path                → redirects to new random room (8-char ID)
//   - $path/:roomid        → HTML client
//   - $path/:roomid/ws     → WebSocket for that room
//   - $path/:roomid/qr     → PNG QR code for that room URL
func registerChessGame(cfg *Config, path string, mux *httprouter.Router) error {
	registry := NewRegistry()

	var cache PositionCache
	if cfg.redisURL != "" {
		redisCache, err := NewRedisCache(cfg.redisURL)
		if err != nil {
			return err
		}
		cache = redisCache
		logf(cfg, "CACHE: Caching positions in redis")
	} else {
		cache = NewMemoryCache()
		logf(cfg, "CACHE: Caching positions in process memory")
	}

	hub := newHub(registry, cache)
	go hub.run(cfg)

	if cfg.sessionTimeout > 0 {
		go hub.reaperLoop(cfg)
	}

	// Root path → redirect to new random room
	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, path, registry))

	// Per-room client view (HTML)
	mux.GET(cfg.prefix+path+"/:roomid", getIndexHandler(cfg))

	// Shared assets (no roomid in route)
	mux.GET(cfg.prefix+"/assets/chess/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/chess/app.js", getJsHandler(cfg))

	// Per-room websocket
	mux.GET(cfg.prefix+path+"/:roomid/ws", serveWS(cfg, hub))

	// Per-room QR code
	mux.GET(cfg.prefix+path+"/:roomid/qr", qrHandler)

	return nil
}
