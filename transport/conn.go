package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultConnectTimeout bounds the websocket handshake.
const DefaultConnectTimeout = 60 * time.Second

// Conn owns one duplex websocket channel carrying binary frames. All frames
// go through exactly one Conn per session.
type Conn struct {
	ws     *websocket.Conn
	log    *slog.Logger
	closed bool
}

// Connect opens a websocket channel to the given URL. Failure to connect
// within the timeout is reported as a ConnectionError.
func Connect(url string, headers http.Header, timeout time.Duration, log *slog.Logger) (*Conn, error) {
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	log.Info("connecting", "url", url)
	ws, resp, err := dialer.Dial(url, headers)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, &ConnectionError{URL: url, Cause: err}
	}
	return &Conn{ws: ws, log: log}, nil
}

// Send writes one binary frame. A closed channel is reported as a
// ConnectionClosedError.
func (c *Conn) Send(frame []byte) error {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return c.closedError(err)
	}
	return nil
}

// Receive blocks until one frame arrives. A channel closed with no frame is
// reported as a ConnectionClosedError, never as a nil frame.
func (c *Conn) Receive() ([]byte, error) {
	_, frame, err := c.ws.ReadMessage()
	if err != nil {
		return nil, c.closedError(err)
	}
	return frame, nil
}

// Close performs a best-effort graceful close. Idempotent.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	deadline := time.Now().Add(time.Second)
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}

func (c *Conn) closedError(err error) error {
	if ce, ok := err.(*websocket.CloseError); ok {
		return &ConnectionClosedError{Code: ce.Code, Reason: ce.Text, Cause: err}
	}
	return &ConnectionClosedError{Code: websocket.CloseAbnormalClosure, Reason: err.Error(), Cause: err}
}
