package bridge

import (
	"context"
	"encoding/json"
	"time"
)

func (c *Client) readLoop() {
	c.logEntry().Debug("readLoop запущен.")

	for {
		if c.stopped() {
			return
		}

		conn := c.currentConn()
		if conn == nil {
			if !c.reconnect() {
				return
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.stopped() {
				return
			}
			c.logEntry().WithError(err).Warn("Ошибка чтения из терминала.")

			c.connMu.Lock()
			if c.conn == conn {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			c.failPending()

			if !c.reconnect() {
				return
			}
			continue
		}

		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logEntry().WithError(err).Warn("Не удалось разобрать сообщение терминала.")
			continue
		}
		if resp.ID == "" {
			c.logEntry().WithField("payload", string(data)).Debug("Сообщение терминала без id пропущено.")
			continue
		}
		c.deliver(resp)
	}
}

func (c *Client) deliver(resp Response) {
	c.pendingMu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.logEntry().WithField("id", resp.ID).Debug("Ответ на неизвестный запрос.")
		return
	}
	ch <- result{resp: resp}
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- result{err: ErrConnectionLost}
		delete(c.pending, id)
	}
}

func (c *Client) reconnect() bool {
	backoff := c.cfg.ReconnectMin

	for {
		select {
		case <-c.stopCh:
			return false
		case <-time.After(backoff):
		}

		c.logEntry().Info("Попытка переподключения к терминалу.")

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			c.logEntry().WithError(err).Warn("Не удалось переподключиться к терминалу.")
			backoff = c.nextBackoff(backoff)
			continue
		}

		if c.stopped() {
			_ = conn.Close()
			return false
		}
		c.setConn(conn)
		c.logEntry().Info("Соединение с терминалом восстановлено.")
		return true
	}
}

func (c *Client) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > c.cfg.ReconnectMax {
		return c.cfg.ReconnectMax
	}
	return next
}
