package gateway

import (
	"context"

	"github.com/coder/websocket"
)

// coderTransport adapts a coder/websocket connection to the Transport
// contract.
type coderTransport struct {
	conn *websocket.Conn
}

func newCoderTransport(conn *websocket.Conn) *coderTransport {
	return &coderTransport{conn: conn}
}

func (t *coderTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

func (t *coderTransport) Write(ctx context.Context, payload []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, payload)
}

func (t *coderTransport) Close(code websocket.StatusCode, reason string) error {
	return t.conn.Close(code, reason)
}
