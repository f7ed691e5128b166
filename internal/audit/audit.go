package audit

import (
	"fmt"
	"signalbot/internal/models"
	"strings"
)

// Recorder keeps an append-only record of orders the tracker has finished with.
type Recorder interface {
	Record(order models.TrackedOrder) error
	Close() error
}

// Reader returns the most recent archived orders, newest first.
type Reader interface {
	Recent(limit int) ([]models.TrackedOrder, error)
}

func New(driver, path string) (Recorder, error) {
	switch strings.ToLower(driver) {
	case "", "none":
		return Nop{}, nil
	case "jsonl":
		return NewJSONLRecorder(path)
	case "sqlite":
		return NewSQLiteRecorder(path)
	default:
		return nil, fmt.Errorf("Неизвестный драйвер архива: %s", driver)
	}
}

type Nop struct{}

func (Nop) Record(models.TrackedOrder) error { return nil }
func (Nop) Close() error                     { return nil }
