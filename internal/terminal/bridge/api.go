package bridge

import (
	"context"
	"signalbot/internal/models"
	"signalbot/internal/terminal"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var readRetry = terminal.DefaultRetry

var _ terminal.Client = (*Client)(nil)

// PlaceOrder is sent once. A retry could open a second order if the first reply was lost.
func (c *Client) PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (models.Ticket, error) {
	params := placeOrderParams{
		Symbol:   req.Symbol,
		Type:     orderType(req.Direction, req.Kind),
		Volume:   req.Volume,
		Price:    req.EntryPrice,
		StopLoss: req.StopLoss,
		Magic:    c.cfg.Magic,
		Comment:  c.cfg.Comment,
	}
	if !req.TakeProfit.IsZero() {
		tp := req.TakeProfit
		params.TakeProfit = &tp
	}
	if !req.Expiration.IsZero() {
		params.Expiration = req.Expiration.Unix()
	}

	c.logEntry().WithFields(logrus.Fields{
		"type":   params.Type,
		"price":  params.Price.String(),
		"sl":     params.StopLoss.String(),
		"volume": params.Volume.String(),
	}).Info("Попытка ордера.")

	var res placeOrderResult
	if err := c.call(ctx, terminal.OpPlaceOrder, params, &res); err != nil {
		return "", err
	}
	if res.Ticket == "" {
		return "", &terminal.BrokerError{Op: terminal.OpPlaceOrder, Message: "пустой тикет в ответе"}
	}
	return res.Ticket, nil
}

func (c *Client) ModifyStopLoss(ctx context.Context, req models.ModifyStopLossRequest) error {
	params := modifyParams{Ticket: req.Ticket, StopLoss: req.NewStopLoss, Position: req.Position}
	_, err := terminal.WithRetry(ctx, c.logEntry(), readRetry, func() (struct{}, error) {
		return struct{}{}, c.call(ctx, terminal.OpModifyStopLoss, params, nil)
	})
	return err
}

func (c *Client) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	return terminal.WithRetry(ctx, c.logEntry(), readRetry, func() (models.Quote, error) {
		var res quoteResult
		if err := c.call(ctx, terminal.OpQuote, symbolParams{Symbol: symbol}, &res); err != nil {
			return models.Quote{}, err
		}
		return models.Quote{Symbol: symbol, Bid: res.Bid, Ask: res.Ask, Time: unixMilli(res.Time)}, nil
	})
}

func (c *Client) MinVolume(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return terminal.WithRetry(ctx, c.logEntry(), readRetry, func() (decimal.Decimal, error) {
		var res symbolInfoResult
		if err := c.call(ctx, terminal.OpMinVolume, symbolParams{Symbol: symbol}, &res); err != nil {
			return decimal.Zero, err
		}
		return res.VolumeMin, nil
	})
}

func (c *Client) BrokerState(ctx context.Context, symbol string) (models.BrokerState, error) {
	return terminal.WithRetry(ctx, c.logEntry(), readRetry, func() (models.BrokerState, error) {
		var res stateResult
		if err := c.call(ctx, terminal.OpBrokerState, symbolParams{Symbol: symbol, Magic: c.cfg.Magic}, &res); err != nil {
			return models.BrokerState{}, err
		}
		state := models.BrokerState{
			Pending:   res.Orders,
			Positions: res.Positions,
			Closed:    make(map[models.Ticket]models.CloseReason, len(res.History)),
			Time:      unixMilli(res.Time),
		}
		for _, h := range res.History {
			state.Closed[h.Ticket] = models.CloseReason(strings.ToUpper(string(h.Reason)))
		}
		return state, nil
	})
}

// orderType builds the MT5 order type name, e.g. SELL_LIMIT.
func orderType(direction models.Direction, kind models.OrderKind) string {
	return string(direction) + "_" + string(kind)
}

func unixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
