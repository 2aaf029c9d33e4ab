package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrBufferFull   = errors.New("client send buffer full")
)

const sendBuffer = 256

// RuntimeClient is the registry-facing side of one live connection: a
// unique id, the routing key it registered under, and an ordered outbound
// queue drained by a single writer goroutine. Sends never block on a slow
// peer; a full buffer is reported as a send failure so broadcasts can drop
// the connection instead of stalling.
type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	id     string
	key    string
	out    chan []byte
	once   sync.Once
}

func NewClient(parent context.Context, ws *WebSocket, key string) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		id:     uuid.NewString(),
		key:    key,
		out:    make(chan []byte, sendBuffer),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string  { return c.id }
func (c *RuntimeClient) Key() string { return c.key }

func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrClientClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				return
			}
		}
	}
}
