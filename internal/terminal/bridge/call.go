package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"signalbot/internal/terminal"
	"time"

	"github.com/google/uuid"
)

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("Не удалось подготовить запрос %s: %w", method, err)
	}

	id := uuid.NewString()
	ch := make(chan result, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.write(Request{ID: id, Method: method, Params: payload}); err != nil {
		return fmt.Errorf("Не удалось отправить запрос %s: %w", method, err)
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopCh:
		return ErrClosed
	case <-timer.C:
		return fmt.Errorf("%s: %w", method, ErrTimeout)
	case res := <-ch:
		if res.err != nil {
			return fmt.Errorf("%s: %w", method, res.err)
		}
		if res.resp.Error != nil {
			return &terminal.BrokerError{Op: method, Code: res.resp.Error.Code, Message: res.resp.Error.Message}
		}
		if out != nil && len(res.resp.Result) > 0 {
			if err := json.Unmarshal(res.resp.Result, out); err != nil {
				return fmt.Errorf("Не удалось разобрать ответ %s: %w", method, err)
			}
		}
		return nil
	}
}

func (c *Client) write(req Request) error {
	if c.stopped() {
		return ErrClosed
	}
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.RequestTimeout))
	return conn.WriteJSON(req)
}
