package stream

import (
	"context"

	"github.com/coder/websocket"
)

// Conn is the minimal connection surface the session drives. Read and
// Write must honor context cancellation.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens a connection to the given endpoint.
type Dialer func(ctx context.Context, endpoint string) (Conn, error)

// Dial is the production dialer over coder/websocket.
func Dial(ctx context.Context, endpoint string) (Conn, error) {
	ws, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(1 << 22)
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	for {
		msgType, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, err
		}
		if msgType != websocket.MessageText {
			continue
		}
		return data, nil
	}
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "shutdown")
}
