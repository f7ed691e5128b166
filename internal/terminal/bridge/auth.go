package bridge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"signalbot/internal/terminal"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// authenticate runs before the read loop owns the connection, so it reads the reply itself.
func (c *Client) authenticate(conn *websocket.Conn) error {
	expires := time.Now().UnixMilli() + 5_000
	params, err := json.Marshal(authParams{
		Expires:   expires,
		Signature: sign(c.cfg.ApiKey, fmt.Sprintf("auth%d", expires)),
	})
	if err != nil {
		return fmt.Errorf("Не удалось подготовить авторизацию: %w", err)
	}

	req := Request{ID: uuid.NewString(), Method: "auth", Params: params}
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.RequestTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("Не удалось авторизоваться: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.RequestTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		return fmt.Errorf("Нет ответа на авторизацию: %w", err)
	}
	if resp.Error != nil {
		return &terminal.BrokerError{Op: "auth", Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
