package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client.
	pongWait = 60 * time.Second

	// Send pings to client with this period. Must be less than pongWait.
	pingPeriod = 15 * time.Second

	// Maximum message size allowed from client.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// IsWebSocket checks if the request asks for a websocket upgrade.
func IsWebSocket(r *http.Request) bool {
	contains := func(key, val string) bool {
		vv := strings.Split(r.Header.Get(key), ",")
		for _, v := range vv {
			if val == strings.ToLower(strings.TrimSpace(v)) {
				return true
			}
		}
		return false
	}

	return contains("Connection", "upgrade") && contains("Upgrade", "websocket")
}

// ServeEvents upgrades the request and runs the session until the
// connection goes away.
func (s *Server) ServeEvents(w http.ResponseWriter, r *http.Request) {
	var rspHdr http.Header
	// Sec-Websocket-Protocol may carry auth tokens, echo it back
	if prots := r.Header.Values("Sec-WebSocket-Protocol"); len(prots) > 0 {
		rspHdr = http.Header{}
		for _, p := range prots {
			rspHdr.Add("Sec-WebSocket-Protocol", p)
		}
	}

	conn, err := upgrader.Upgrade(w, r, rspHdr)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	sess := NewSession()
	s.openSession(sess)

	st := &socketStream{
		ctx:     r.Context(),
		conn:    conn,
		session: sess,
		server:  s,
	}
	st.run()
}

type socketStream struct {
	ctx     context.Context
	conn    *websocket.Conn
	session *Session
	server  *Server
}

func (st *socketStream) run() {
	defer func() {
		st.server.closeSession(st.session)
		st.conn.Close()
	}()

	stopCtx, cancel := context.WithCancel(context.Background())

	wg := sync.WaitGroup{}
	wg.Add(2)

	go st.writeLoop(cancel, &wg, stopCtx)
	go st.readLoop(cancel, &wg, stopCtx)
	wg.Wait()
}

// readLoop processes inbound frames synchronously, preserving per-user
// arrival order for location updates.
func (st *socketStream) readLoop(cancel context.CancelFunc, wg *sync.WaitGroup, stopCtx context.Context) {
	defer func() {
		cancel()
		wg.Done()
	}()

	st.conn.SetReadLimit(maxMessageSize)
	st.conn.SetReadDeadline(time.Now().Add(pongWait))
	st.conn.SetPongHandler(func(string) error {
		st.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-stopCtx.Done():
			return
		default:
		}

		_, msg, err := st.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				st.server.log.Debug("socket read", "error", err)
			}
			return
		}

		st.server.handleEvent(st.ctx, st.session, msg)
	}
}

func (st *socketStream) writeLoop(cancel context.CancelFunc, wg *sync.WaitGroup, stopCtx context.Context) {
	defer func() {
		st.conn.Close()
		cancel()
		wg.Done()
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stopCtx.Done():
			return
		case <-st.ctx.Done():
			return
		case <-st.session.Kill:
			st.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			st.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := st.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev := <-st.session.Events:
			st.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := st.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			b, _ := json.Marshal(ev)
			if _, err := w.Write(b); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		}
	}
}
