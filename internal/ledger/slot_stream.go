package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// SlotStreamConfig configures the WebSocket slot subscription.
type SlotStreamConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout bounds a single read.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single write.
	WriteTimeout time.Duration
}

// DefaultSlotStreamConfig returns the default stream configuration.
func DefaultSlotStreamConfig() SlotStreamConfig {
	return SlotStreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// SlotStream follows the ledger's slot progression over a WebSocket
// subscription. The settlement executor uses it to bound confirmation
// waits in slots rather than wall time.
type SlotStream struct {
	endpoint string
	config   SlotStreamConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	slots chan int64
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewSlotStream connects and starts streaming slot notifications.
func NewSlotStream(ctx context.Context, endpoint string, config *SlotStreamConfig) (*SlotStream, error) {
	cfg := DefaultSlotStreamConfig()
	if config != nil {
		cfg = *config
	}
	s := &SlotStream{
		endpoint: endpoint,
		config:   cfg,
		slots:    make(chan int64, 64),
		done:     make(chan struct{}),
	}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

// Slots returns the channel of observed slot numbers. Slow consumers
// miss intermediate slots; only the latest value matters to callers.
func (s *SlotStream) Slots() <-chan int64 {
	return s.slots
}

// Close terminates the stream and closes the slot channel.
func (s *SlotStream) Close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()
	s.wg.Wait()
	close(s.slots)
}

func (s *SlotStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	sub, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "subscribeSlot",
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("marshal subscribe: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	return nil
}

type slotNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Slot int64 `json:"slot"`
		} `json:"result"`
	} `json:"params"`
}

// readLoop reads notifications, reconnecting with capped backoff on
// failure until closed.
func (s *SlotStream) readLoop() {
	defer s.wg.Done()

	delay := s.config.ReconnectDelay
	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			reconnErr := s.connect(ctx)
			cancel()
			if reconnErr != nil {
				continue
			}
			delay = s.config.ReconnectDelay
			continue
		}

		var note slotNotification
		if err := json.Unmarshal(msg, &note); err != nil || note.Method != "slotNotification" {
			continue
		}
		select {
		case s.slots <- note.Params.Result.Slot:
		default:
			// Consumer is behind; drop, newer slots supersede.
		}
	}
}

func (s *SlotStream) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			conn := s.conn
			s.connMu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}
