package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	errConnect   = errors.New("game link connection failed")
	errTransport = errors.New("game link transport error")
)

type serverInfo struct {
	Name string `json:"name"`
	Seed int    `json:"seed"`
	Size int    `json:"size"`
}

type teamInfo struct {
	LeaderID uint64       `json:"leaderSteamId"`
	Members  []memberInfo `json:"members"`
}

type memberInfo struct {
	SteamID  uint64  `json:"steamId"`
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	IsOnline bool    `json:"isOnline"`
	IsAlive  bool    `json:"isAlive"`
}

func (m memberInfo) teamMember() teamMember {
	return teamMember{ID: m.SteamID, Name: m.Name, Online: m.IsOnline, X: m.X, Y: m.Y}
}

type chatMessage struct {
	SteamID uint64 `json:"steamId"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

type gameLink interface {
	Connect(ctx context.Context) error
	GetInfo(ctx context.Context) (serverInfo, error)
	GetTeamInfo(ctx context.Context) (teamInfo, error)
	OnTeamChat(func(chatMessage))
	Close() error
}

type appRequest struct {
	Seq         uint32    `json:"seq"`
	PlayerID    uint64    `json:"playerId"`
	PlayerToken int64     `json:"playerToken"`
	GetInfo     *struct{} `json:"getInfo,omitempty"`
	GetTeamInfo *struct{} `json:"getTeamInfo,omitempty"`
}

type appMessage struct {
	Response  *appResponse  `json:"response,omitempty"`
	Broadcast *appBroadcast `json:"broadcast,omitempty"`
}

type appResponse struct {
	Seq      uint32      `json:"seq"`
	Info     *serverInfo `json:"info,omitempty"`
	TeamInfo *teamInfo   `json:"teamInfo,omitempty"`
	Error    *appError   `json:"error,omitempty"`
}

type appError struct {
	Error string `json:"error"`
}

type appBroadcast struct {
	TeamMessage *chatMessage `json:"teamMessage,omitempty"`
}

type wsGameLink struct {
	url      string
	playerID uint64
	token    int64
	timeout  time.Duration
	dialer   *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	seq      uint32
	pending  map[uint32]chan appResponse
	handlers []func(chatMessage)

	writeMu sync.Mutex
}

func newWSGameLink(cfg GameConfig) *wsGameLink {
	return &wsGameLink{
		url:      cfg.URL,
		playerID: cfg.PlayerID,
		token:    cfg.PlayerToken,
		timeout:  cfg.RequestTimeout,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.RequestTimeout,
		},
		pending: make(map[uint32]chan appResponse),
	}
}

func (g *wsGameLink) Connect(ctx context.Context) error {
	g.mu.Lock()
	connected := g.conn != nil
	g.mu.Unlock()
	if connected {
		return nil
	}

	conn, _, err := g.dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errConnect, err)
	}

	g.mu.Lock()
	if g.conn != nil {
		g.mu.Unlock()
		conn.Close()
		return nil
	}
	g.conn = conn
	g.mu.Unlock()

	log.Info().Str("url", g.url).Msg("game link connected")
	go g.readLoop(conn)
	return nil
}

func (g *wsGameLink) OnTeamChat(h func(chatMessage)) {
	g.mu.Lock()
	g.handlers = append(g.handlers, h)
	g.mu.Unlock()
}

func (g *wsGameLink) GetInfo(ctx context.Context) (serverInfo, error) {
	resp, err := g.request(ctx, appRequest{GetInfo: &struct{}{}})
	if err != nil {
		return serverInfo{}, err
	}
	if resp.Info == nil {
		return serverInfo{}, fmt.Errorf("%w: empty info response", errTransport)
	}
	return *resp.Info, nil
}

func (g *wsGameLink) GetTeamInfo(ctx context.Context) (teamInfo, error) {
	resp, err := g.request(ctx, appRequest{GetTeamInfo: &struct{}{}})
	if err != nil {
		return teamInfo{}, err
	}
	if resp.TeamInfo == nil {
		return teamInfo{}, nil
	}
	return *resp.TeamInfo, nil
}

func (g *wsGameLink) Close() error {
	g.mu.Lock()
	conn := g.conn
	g.conn = nil
	g.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (g *wsGameLink) request(ctx context.Context, req appRequest) (appResponse, error) {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		if err := g.Connect(ctx); err != nil {
			return appResponse{}, fmt.Errorf("%w: reconnect: %v", errTransport, err)
		}
		g.mu.Lock()
		conn = g.conn
		g.mu.Unlock()
		if conn == nil {
			return appResponse{}, fmt.Errorf("%w: not connected", errTransport)
		}
	}

	ch := make(chan appResponse, 1)
	g.mu.Lock()
	g.seq++
	req.Seq = g.seq
	g.pending[req.Seq] = ch
	g.mu.Unlock()
	req.PlayerID = g.playerID
	req.PlayerToken = g.token

	g.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(g.timeout))
	err := conn.WriteJSON(req)
	g.writeMu.Unlock()
	if err != nil {
		g.forget(req.Seq)
		return appResponse{}, fmt.Errorf("%w: write: %v", errTransport, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	select {
	case resp, ok := <-ch:
		if !ok {
			return appResponse{}, fmt.Errorf("%w: connection closed", errTransport)
		}
		if resp.Error != nil {
			return appResponse{}, fmt.Errorf("%w: %s", errTransport, resp.Error.Error)
		}
		return resp, nil
	case <-ctx.Done():
		g.forget(req.Seq)
		return appResponse{}, fmt.Errorf("%w: %v", errTransport, ctx.Err())
	}
}

func (g *wsGameLink) forget(seq uint32) {
	g.mu.Lock()
	delete(g.pending, seq)
	g.mu.Unlock()
}

func (g *wsGameLink) readLoop(conn *websocket.Conn) {
	defer g.dropConn(conn)

	for {
		var msg appMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Warn().Err(err).Msg("game link read failed")
			return
		}

		switch {
		case msg.Response != nil:
			// buffered; send under mu so dropConn cannot close ch first
			g.mu.Lock()
			ch, ok := g.pending[msg.Response.Seq]
			if ok {
				delete(g.pending, msg.Response.Seq)
				ch <- *msg.Response
			}
			g.mu.Unlock()
			if !ok {
				log.Debug().Uint32("seq", msg.Response.Seq).Msg("dropping response for unknown request")
			}
		case msg.Broadcast != nil && msg.Broadcast.TeamMessage != nil:
			g.mu.Lock()
			handlers := append([]func(chatMessage){}, g.handlers...)
			g.mu.Unlock()
			for _, h := range handlers {
				h(*msg.Broadcast.TeamMessage)
			}
		}
	}
}

func (g *wsGameLink) dropConn(conn *websocket.Conn) {
	g.mu.Lock()
	if g.conn == conn {
		g.conn = nil
	}
	for seq, ch := range g.pending {
		close(ch)
		delete(g.pending, seq)
	}
	g.mu.Unlock()
	conn.Close()
}
