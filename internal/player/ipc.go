package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// errPropertyUnavailable is mpv's answer for properties with no value yet
// (e.g. time-pos while a file is still opening).
var errPropertyUnavailable = errors.New("property unavailable")

type ipcMessage struct {
	RequestID int64           `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
}

// ipcClient multiplexes request/response pairs over mpv's IPC socket.
type ipcClient struct {
	conn    net.Conn
	writeMu sync.Mutex
	nextID  atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan ipcMessage

	done chan struct{}
}

// dialIPC connects to the socket, waiting for mpv to create it.
func dialIPC(ctx context.Context, path string) (*ipcClient, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		conn, err := net.Dial("unix", path)
		if err == nil {
			c := &ipcClient{
				conn:    conn,
				pending: make(map[int64]chan ipcMessage),
				done:    make(chan struct{}),
			}
			go c.readLoop()
			return c, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connecting to mpv IPC: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *ipcClient) readLoop() {
	defer close(c.done)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Event != "" || msg.RequestID == 0 {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()

		if ok {
			ch <- msg
		}
	}
}

// command sends a command and waits for its reply.
func (c *ipcClient) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan ipcMessage, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(map[string]any{"command": args, "request_id": id})
	if err != nil {
		return nil, fmt.Errorf("encoding mpv command: %w", err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	_, err = c.conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, ErrClosed
	}

	select {
	case msg := <-ch:
		switch msg.Error {
		case "success":
			return msg.Data, nil
		case "property unavailable":
			return nil, errPropertyUnavailable
		default:
			return nil, fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *ipcClient) getProperty(ctx context.Context, name string, dst any) error {
	raw, err := c.command(ctx, "get_property", name)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (c *ipcClient) setProperty(ctx context.Context, name string, value any) error {
	_, err := c.command(ctx, "set_property", name, value)
	return err
}

func (c *ipcClient) close() error {
	return c.conn.Close()
}
