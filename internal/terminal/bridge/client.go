// Package bridge talks to a terminal-side bridge (an MT5 expert advisor or a sidecar next to
// the terminal) over a WebSocket. Every frame is a JSON request {id, method, params} answered
// by {id, result} or {id, error}.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"signalbot/internal/logger"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected   = errors.New("Нет соединения с терминалом.")
	ErrConnectionLost = errors.New("Соединение с терминалом потеряно.")
	ErrTimeout        = errors.New("Терминал не ответил вовремя.")
	ErrClosed         = errors.New("Клиент терминала закрыт.")
)

func New(cfg Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = 1 * time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		log:     log,
		pending: make(map[string]chan result),
		stopCh:  make(chan struct{}),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.logEntry().WithField("url", c.cfg.URL).Info("Подключение к терминалу.")

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.setConn(conn)

	c.logEntry().Info("Соединение с терминалом установлено.")

	go c.readLoop()

	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("Не удалось подключиться к терминалу: %w", err)
	}
	conn.SetReadLimit(2 << 20)

	if c.cfg.ApiKey != "" {
		if err := c.authenticate(conn); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func (c *Client) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil && c.conn != conn {
		_ = c.conn.Close()
	}
	c.conn = conn
}

func (c *Client) currentConn() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *Client) logEntry() *logrus.Entry {
	return c.log.WithComponent("terminal_bridge")
}
