package engine

import (
	"errors"
	"fmt"
	"signalbot/internal/config"
	"signalbot/internal/models"
	"strings"

	"github.com/shopspring/decimal"
)

type SLPolicy string

const (
	SLPolicyWarn   SLPolicy = "warn"
	SLPolicyClamp  SLPolicy = "clamp"
	SLPolicyReject SLPolicy = "reject"
)

const (
	WarningSLDistance  = "sl_distance"
	WarningSLWrongSide = "sl_wrong_side"
)

var (
	ErrRiskRejected  = errors.New("Сигнал отклонён риск-политикой.")
	ErrInvalidVolume = errors.New("Некорректный объём.")
)

type Instrument struct {
	TickSize  decimal.Decimal
	TickValue decimal.Decimal
	PipSize   decimal.Decimal
	Digits    int32
}

type RiskWarning struct {
	Code    string
	Message string
}

func (w RiskWarning) Error() string {
	return w.Message
}

type RiskResult struct {
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
	Warnings   []RiskWarning
}

// RiskCalculator derives the take profit that realizes a fixed dollar target and checks the
// stop loss against the configured distance limit.
type RiskCalculator struct {
	instrument Instrument
	target     decimal.Decimal
	maxSLPips  decimal.Decimal
	policy     SLPolicy
}

func NewRiskCalculator(instrument Instrument, targetProfitUSD, maxSLDistancePips decimal.Decimal, policy string) (*RiskCalculator, error) {
	if !instrument.TickSize.IsPositive() || !instrument.TickValue.IsPositive() || !instrument.PipSize.IsPositive() {
		return nil, &config.ConfigurationError{Field: "trading.instrument", Reason: "размер тика, стоимость тика и размер пипса должны быть больше нуля"}
	}
	if targetProfitUSD.IsNegative() {
		return nil, &config.ConfigurationError{Field: "trading.target_profit_usd", Reason: "значение не может быть отрицательным"}
	}

	p := SLPolicy(strings.ToLower(strings.TrimSpace(policy)))
	switch p {
	case "":
		p = SLPolicyWarn
	case SLPolicyWarn, SLPolicyClamp, SLPolicyReject:
	default:
		return nil, &config.ConfigurationError{Field: "trading.sl_policy", Reason: "неизвестная политика " + policy}
	}

	return &RiskCalculator{
		instrument: instrument,
		target:     targetProfitUSD,
		maxSLPips:  maxSLDistancePips,
		policy:     p,
	}, nil
}

func (c *RiskCalculator) Compute(direction models.Direction, entry, stopLoss, volume decimal.Decimal) (RiskResult, error) {
	if !volume.IsPositive() {
		return RiskResult{}, fmt.Errorf("%w: %s", ErrInvalidVolume, volume)
	}

	res := RiskResult{StopLoss: stopLoss}
	if c.target.IsPositive() {
		res.TakeProfit = c.takeProfit(direction, entry, volume)
	}

	if (direction == models.DirectionBuy && !stopLoss.LessThan(entry)) ||
		(direction == models.DirectionSell && !stopLoss.GreaterThan(entry)) {
		res.Warnings = append(res.Warnings, RiskWarning{
			Code:    WarningSLWrongSide,
			Message: fmt.Sprintf("Стоп-лосс %s на неверной стороне от входа %s для %s", stopLoss, entry, direction),
		})
	}

	if !c.maxSLPips.IsPositive() {
		return res, nil
	}

	pips := c.SLDistancePips(entry, stopLoss)
	if pips.LessThanOrEqual(c.maxSLPips) {
		return res, nil
	}

	res.Warnings = append(res.Warnings, RiskWarning{
		Code:    WarningSLDistance,
		Message: fmt.Sprintf("Дистанция стоп-лосса %s пипсов превышает лимит %s", pips.StringFixed(1), c.maxSLPips),
	})

	switch c.policy {
	case SLPolicyClamp:
		maxDist := c.maxSLPips.Mul(c.instrument.PipSize)
		if direction == models.DirectionBuy {
			res.StopLoss = entry.Sub(maxDist).Round(c.instrument.Digits)
		} else {
			res.StopLoss = entry.Add(maxDist).Round(c.instrument.Digits)
		}
	case SLPolicyReject:
		return res, fmt.Errorf("%w: дистанция %s пипсов", ErrRiskRejected, pips.StringFixed(1))
	}

	return res, nil
}

func (c *RiskCalculator) takeProfit(direction models.Direction, entry, volume decimal.Decimal) decimal.Decimal {
	distance := c.target.Mul(c.instrument.TickSize).Div(c.instrument.TickValue.Mul(volume))
	if direction == models.DirectionBuy {
		return entry.Add(distance).Round(c.instrument.Digits)
	}
	return entry.Sub(distance).Round(c.instrument.Digits)
}

func (c *RiskCalculator) SLDistancePips(entry, stopLoss decimal.Decimal) decimal.Decimal {
	return entry.Sub(stopLoss).Abs().Div(c.instrument.PipSize)
}

// Profit is the dollar result of closing volume lots at exit after opening at entry.
func (c *RiskCalculator) Profit(direction models.Direction, entry, exit, volume decimal.Decimal) decimal.Decimal {
	move := exit.Sub(entry)
	if direction == models.DirectionSell {
		move = move.Neg()
	}
	return move.Div(c.instrument.TickSize).Mul(c.instrument.TickValue).Mul(volume)
}
