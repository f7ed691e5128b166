package terminal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"signalbot/internal/models"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	OpPlaceOrder     = "place_order"
	OpModifyStopLoss = "modify_sl"
	OpQuote          = "quote"
	OpMinVolume      = "min_volume"
	OpBrokerState    = "broker_state"
)

type Client interface {
	PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (models.Ticket, error)
	ModifyStopLoss(ctx context.Context, req models.ModifyStopLossRequest) error
	Quote(ctx context.Context, symbol string) (models.Quote, error)
	MinVolume(ctx context.Context, symbol string) (decimal.Decimal, error)
	BrokerState(ctx context.Context, symbol string) (models.BrokerState, error)
}

// BrokerError is a rejection reported by the terminal itself, as opposed to a transport failure.
type BrokerError struct {
	Op      string
	Code    int
	Message string
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("Ошибка терминала (%s): %s (code=%d)", e.Op, e.Message, e.Code)
}

func IsBrokerError(err error) bool {
	var brokerErr *BrokerError
	return errors.As(err, &brokerErr)
}

// Terminal return codes that mean "try again later".
var retryableCodes = map[int]bool{
	10004: true, // requote
	10020: true, // prices changed
	10021: true, // no quotes
	10024: true, // too many requests
	10031: true, // no connection
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var brokerErr *BrokerError
	if errors.As(err, &brokerErr) {
		return retryableCodes[brokerErr.Code]
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func isRateLimit(err error) bool {
	var brokerErr *BrokerError
	if errors.As(err, &brokerErr) && brokerErr.Code == 10024 {
		return true
	}
	return strings.Contains(err.Error(), "429")
}

type RetryPolicy struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

var DefaultRetry = RetryPolicy{Attempts: 5, Backoff: 1 * time.Second, MaxBackoff: 30 * time.Second}

// WithRetry repeats an idempotent call with exponential backoff. Rate limits wait four
// times longer. Non-retryable errors are returned immediately.
func WithRetry[T any](ctx context.Context, log *logrus.Entry, policy RetryPolicy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := policy.Backoff
	for i := 0; i < policy.Attempts; i++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !IsRetryable(err) || i == policy.Attempts-1 {
			break
		}

		wait := time.Duration(math.Min(float64(backoff), float64(policy.MaxBackoff)))
		if isRateLimit(err) {
			wait = time.Duration(math.Min(float64(backoff*4), float64(policy.MaxBackoff)))
		}
		if log != nil {
			log.WithError(err).Warn("Ошибка, повторяем запрос.")
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("Запрос не выполнен: нет попыток.")
	}
	return zero, lastErr
}
