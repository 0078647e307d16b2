// Package websocket maintains a resilient websocket connection: dial,
// keepalive pings, exponential-backoff reconnect with resubscription, and
// raw frame delivery. It knows nothing about any venue's message format;
// the subscribe payload and frame handling are injected.
package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Manager manages one websocket connection.
type Manager struct {
	name   string
	url    string
	conn   *websocket.Conn
	logger *zap.Logger

	reconnectMgr *ReconnectManager
	config       Config

	frameChan chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex

	subscribed map[string]bool
	connected  atomic.Bool
	lastPong   atomic.Int64
	connStart  atomic.Int64
}

// Config holds websocket manager configuration.
type Config struct {
	// Name labels log lines and metrics for this connection.
	Name                  string
	URL                   string
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	FrameBufferSize       int

	// BuildSubscribe renders the venue's subscription payload for a set
	// of market ids. It is JSON-marshaled and written to the socket.
	BuildSubscribe func(markets []string) interface{}

	// AuthHeader, if set, is sent on the dial request.
	AuthHeader map[string][]string

	// OnReconnect fires after a successful reconnect and resubscribe.
	// Consumers use it to invalidate state from before the gap.
	OnReconnect func()

	Logger *zap.Logger
}

// New creates a websocket manager.
func New(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	return &Manager{
		name:         cfg.Name,
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		frameChan:    make(chan []byte, cfg.FrameBufferSize),
		ctx:          ctx,
		cancel:       cancel,
		subscribed:   make(map[string]bool),
	}
}

// Start dials and launches the read, ping, and reconnect loops.
func (m *Manager) Start() error {
	m.logger.Info("websocket-starting",
		zap.String("name", m.name),
		zap.String("url", m.url))

	err := m.connect(m.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	m.wg.Add(3)
	go m.readLoop()
	go m.pingLoop()
	go m.reconnectLoop()

	return nil
}

func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.config.DialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, m.url, m.config.AuthHeader)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		m.lastPong.Store(time.Now().Unix())
		if m.config.PongTimeout > 0 {
			return conn.SetReadDeadline(time.Now().Add(m.config.PongTimeout))
		}
		return nil
	})
	if m.config.PongTimeout > 0 {
		// A peer that stops answering pings times the read loop out.
		_ = conn.SetReadDeadline(time.Now().Add(m.config.PongTimeout))
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	now := time.Now()
	m.connected.Store(true)
	m.lastPong.Store(now.Unix())
	m.connStart.Store(now.Unix())
	ActiveConnections.WithLabelValues(m.name).Set(1)

	m.logger.Info("websocket-connected", zap.String("name", m.name))

	return nil
}

// Subscribe subscribes to market ids not yet subscribed.
func (m *Manager) Subscribe(markets []string) error {
	if len(markets) == 0 {
		return nil
	}

	m.mu.Lock()
	fresh := make([]string, 0, len(markets))
	for _, id := range markets {
		if !m.subscribed[id] {
			fresh = append(fresh, id)
			m.subscribed[id] = true
		}
	}
	total := len(m.subscribed)
	conn := m.conn
	m.mu.Unlock()

	if len(fresh) == 0 {
		return nil
	}

	err := conn.WriteJSON(m.config.BuildSubscribe(fresh))
	if err != nil {
		m.mu.Lock()
		for _, id := range fresh {
			delete(m.subscribed, id)
		}
		total = len(m.subscribed)
		m.mu.Unlock()

		SubscriptionCount.WithLabelValues(m.name).Set(float64(total))
		return fmt.Errorf("write subscribe message: %w", err)
	}

	SubscriptionCount.WithLabelValues(m.name).Set(float64(total))
	m.logger.Info("subscribed-to-markets",
		zap.String("name", m.name),
		zap.Int("new-count", len(fresh)),
		zap.Int("total-count", total))

	return nil
}

// readLoop forwards raw frames without blocking; a full buffer drops the
// frame and counts it.
func (m *Manager) readLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			m.logger.Warn("read-error",
				zap.Error(err),
				zap.String("name", m.name))

			if start := m.connStart.Load(); start > 0 {
				ConnectionDuration.WithLabelValues(m.name).Observe(time.Since(time.Unix(start, 0)).Seconds())
			}

			m.connected.Store(false)
			ActiveConnections.WithLabelValues(m.name).Set(0)
			return
		}

		FramesReceivedTotal.WithLabelValues(m.name).Inc()

		select {
		case m.frameChan <- frame:
		default:
			FramesDroppedTotal.WithLabelValues(m.name).Inc()
			m.logger.Warn("frame-buffer-full",
				zap.String("name", m.name),
				zap.Int("buffer-size", cap(m.frameChan)))
		}
	}
}

func (m *Manager) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if !m.connected.Load() {
				continue
			}

			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()

			if conn == nil {
				continue
			}

			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				m.logger.Warn("ping-error",
					zap.Error(err),
					zap.String("name", m.name))
			}
		}
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if m.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		m.logger.Warn("connection-lost-initiating-reconnect",
			zap.String("name", m.name))

		err := m.reconnectMgr.Reconnect(m.ctx, m.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			m.logger.Error("reconnection-failed",
				zap.Error(err),
				zap.String("name", m.name))
			continue
		}

		err = m.resubscribeAll()
		if err != nil {
			m.logger.Error("resubscribe-failed",
				zap.Error(err),
				zap.String("name", m.name))
			m.connected.Store(false)
			continue
		}

		if m.config.OnReconnect != nil {
			m.config.OnReconnect()
		}

		m.logger.Info("reconnection-complete-restarting-read-loop",
			zap.String("name", m.name))

		m.wg.Add(1)
		go m.readLoop()
	}
}

func (m *Manager) resubscribeAll() error {
	m.mu.RLock()
	markets := make([]string, 0, len(m.subscribed))
	for id := range m.subscribed {
		markets = append(markets, id)
	}
	conn := m.conn
	m.mu.RUnlock()

	if len(markets) == 0 {
		return nil
	}

	err := conn.WriteJSON(m.config.BuildSubscribe(markets))
	if err != nil {
		return fmt.Errorf("write resubscribe message: %w", err)
	}

	m.logger.Info("resubscribed-to-all-markets",
		zap.String("name", m.name),
		zap.Int("count", len(markets)))

	return nil
}

// Frames returns the raw inbound frame channel. Closed by Close.
func (m *Manager) Frames() <-chan []byte {
	return m.frameChan
}

// Connected reports whether the socket is currently up.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Close tears the connection down and waits for the loops to exit.
func (m *Manager) Close() error {
	m.logger.Info("closing-websocket", zap.String("name", m.name))

	m.cancel()

	m.mu.RLock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.RUnlock()

	m.wg.Wait()
	close(m.frameChan)
	ActiveConnections.WithLabelValues(m.name).Set(0)

	m.logger.Info("websocket-closed", zap.String("name", m.name))

	return nil
}
