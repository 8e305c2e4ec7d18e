package wshub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"quizroom/internal/apperr"
	"quizroom/internal/broadcast"
	"quizroom/internal/events"
	"quizroom/internal/game"
	"quizroom/internal/logger"
	"quizroom/internal/metrics"
)

const (
	writeTimeout      = 10 * time.Second
	defaultSendBuffer = 8
)

// Room is the part of a room hub a connection talks to.
type Room interface {
	Dispatch(cmd game.Command) (broadcast.Result, error)
	Subscribe(connID string) (<-chan events.Event, error)
	Unsubscribe(connID string)
}

// Client represents a single WebSocket connection subscribed to a room.
// UserID is empty for observers, who receive events but cannot act.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	room   Room
	events <-chan events.Event
}

// Gateway attaches accepted connections to rooms.
type Gateway struct {
	SendBuffer int
	Metrics    *metrics.Metrics
}

// Serve runs conn against room until either side goes away. It returns once
// the connection is finished and unsubscribed.
func (g *Gateway) Serve(ctx context.Context, conn *websocket.Conn, room Room, userID string) error {
	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, g.sendBuffer()),
		room:   room,
	}
	evs, err := room.Subscribe(c.ID)
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "room unavailable")
		return err
	}
	c.events = evs
	defer room.Unsubscribe(c.ID)

	g.Metrics.IncConnections()
	defer g.Metrics.DecConnections()
	logger.Log.Debugf("[WSHub] %s connected as %q", c.ID, userID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		c.WritePump(ctx)
		cancel()
	}()

	err = c.ReadPump(ctx)
	logger.Log.Debugf("[WSHub] %s disconnected: %v", c.ID, err)
	if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (g *Gateway) sendBuffer() int {
	if g.SendBuffer > 0 {
		return g.SendBuffer
	}
	return defaultSendBuffer
}

// WritePump delivers room events and direct replies. When the room drops the
// subscription the connection is closed.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.Send:
			if err := c.write(ctx, msg); err != nil {
				return
			}
		case ev, ok := <-c.events:
			if !ok {
				c.Conn.Close(websocket.StatusTryAgainLater, "subscription ended")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Log.Errorf("[WSHub] Marshal error: %v", err)
				continue
			}
			if err := c.write(ctx, data); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.Conn.Write(ctx, websocket.MessageText, msg)
}

// ReadPump applies inbound commands until the connection fails.
func (c *Client) ReadPump(ctx context.Context) error {
	for {
		typ, data, err := c.Conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			logger.Log.Warnf("[WSHub] %s sent a binary frame, dropping", c.ID)
			continue
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	msg, err := decode(data)
	if err != nil {
		logger.Log.Warnw("[WSHub] dropping inbound message", "conn", c.ID, "error", err)
		return
	}
	cmd, err := command(msg, c.UserID)
	if err == nil {
		_, err = c.room.Dispatch(cmd)
	}
	if err != nil {
		c.reply(events.Failure(apperr.Code(err), replyMessage(err)))
	}
}

// reply queues a message for this connection only.
func (c *Client) reply(ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Log.Errorf("[WSHub] Marshal error: %v", err)
		return
	}
	select {
	case c.Send <- data:
	default:
		logger.Log.Warnf("[WSHub] %s reply buffer full, dropping %s", c.ID, ev.Type)
	}
}

func replyMessage(err error) string {
	if apperr.Code(err) == "internal" {
		return "internal error"
	}
	return err.Error()
}
