package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/satdash/internal/metrics"
)

// writeDeadline bounds a single frame write to a stalled client.
const writeDeadline = 30 * time.Second

var keepaliveFrame = []byte(":\n\n")

// conn writes SSE frames to one subscriber.
type conn struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	ip     string
	logger *slog.Logger

	frames int64
	bytes  int64
}

func newConn(w http.ResponseWriter, ip string, logger *slog.Logger) *conn {
	return &conn{w: w, rc: http.NewResponseController(w), ip: ip, logger: logger}
}

// event encodes msg and writes it as a data frame.
func (c *conn) event(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return c.data(data)
}

// data writes pre-encoded JSON as a data frame.
func (c *conn) data(payload []byte) error {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')
	if err := c.write(frame); err != nil {
		return err
	}
	c.frames++
	metrics.IncStreamMessages()
	return nil
}

// keepalive writes an SSE comment so proxies keep the connection open.
func (c *conn) keepalive() error {
	return c.write(keepaliveFrame)
}

// retry sets the client's reconnect delay.
func (c *conn) retry(d time.Duration) error {
	return c.write([]byte(fmt.Sprintf("retry: %d\n\n", d.Milliseconds())))
}

func (c *conn) write(frame []byte) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		c.logger.Debug("write deadline unsupported", "remote_ip", c.ip, "error", err)
	}
	n, err := c.w.Write(frame)
	c.bytes += int64(n)
	metrics.AddStreamBytes(int64(n))
	if err != nil {
		return fmt.Errorf("write to %s: %w", c.ip, err)
	}
	if err := c.rc.Flush(); err != nil {
		return fmt.Errorf("flush to %s: %w", c.ip, err)
	}
	return nil
}
