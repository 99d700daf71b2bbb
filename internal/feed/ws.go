package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rewired-gh/tickwatch/internal/logger"
	"github.com/rewired-gh/tickwatch/internal/models"
)

// WSSource subscribes to a websocket that pushes one JSON tick per message.
// Received ticks wait in a bounded queue until the next cycle takes them; a
// full queue blocks the reader instead of dropping ticks.
type WSSource struct {
	url     string
	wait    time.Duration
	dialer  *websocket.Dialer
	queue   chan models.Tick
	mu      sync.Mutex
	conn    *websocket.Conn
	stop    chan struct{}
	closed  chan struct{}
	readErr error
}

// NewWSSource creates a source that dials url lazily on the first Next. wait
// bounds how long Next blocks for a tick.
func NewWSSource(url string, queueSize int, wait time.Duration) *WSSource {
	if queueSize < 1 {
		queueSize = 1
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &WSSource{
		url:    url,
		wait:   wait,
		dialer: websocket.DefaultDialer,
		queue:  make(chan models.Tick, queueSize),
	}
}

func (s *WSSource) connect(ctx context.Context) (chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.closed, nil
	}

	logger.Info("Connecting to tick stream %s", s.url)
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	s.conn = conn
	s.stop = make(chan struct{})
	s.closed = make(chan struct{})
	s.readErr = nil
	go s.listen(conn, s.stop, s.closed)
	return s.closed, nil
}

func (s *WSSource) listen(conn *websocket.Conn, stop, closed chan struct{}) {
	defer close(closed)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			logger.Warn("Tick stream disconnected: %v", err)
			return
		}

		var tick models.Tick
		if err := json.Unmarshal(message, &tick); err != nil {
			logger.Warn("Skipping malformed tick message: %v", err)
			continue
		}

		select {
		case s.queue <- tick:
		case <-stop:
			return
		}
	}
}

// Next returns the oldest queued tick, dialing or redialing first when the
// stream is down.
func (s *WSSource) Next(ctx context.Context) (models.Tick, error) {
	select {
	case t := <-s.queue:
		return t, nil
	default:
	}

	closed, err := s.connect(ctx)
	if err != nil {
		return models.Tick{}, err
	}

	timer := time.NewTimer(s.wait)
	defer timer.Stop()

	select {
	case t := <-s.queue:
		return t, nil
	case <-closed:
		select {
		case t := <-s.queue:
			return t, nil
		default:
		}
		return models.Tick{}, s.reset()
	case <-timer.C:
		return models.Tick{}, fmt.Errorf("%w within %v", ErrNoTick, s.wait)
	case <-ctx.Done():
		return models.Tick{}, ctx.Err()
	}
}

// reset drops the dead connection so the next call redials.
func (s *WSSource) reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.readErr
	_ = s.dropLocked()
	return fmt.Errorf("websocket read failed: %w", err)
}

func (s *WSSource) dropLocked() error {
	if s.conn == nil {
		return nil
	}
	close(s.stop)
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *WSSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropLocked()
}
