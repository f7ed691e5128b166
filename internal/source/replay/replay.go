package replay

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"signalbot/internal/logger"
	"signalbot/internal/source"
	"strconv"
	"strings"
	"time"
)

const separator = "---"

// Source replays messages stored in a text file, one message per block separated by a line
// containing only "---". The channel closes after the last message.
type Source struct {
	path     string
	interval time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func New(path string, interval time.Duration, log *logger.Logger) *Source {
	if log == nil {
		log = logger.Discard()
	}
	return &Source{path: path, interval: interval, log: log, now: time.Now}
}

func (s *Source) Messages(ctx context.Context) (<-chan source.Message, error) {
	texts, err := s.load()
	if err != nil {
		return nil, err
	}
	s.log.WithComponent("replay").WithField("count", len(texts)).Info("Сообщения для воспроизведения загружены.")

	out := make(chan source.Message)
	go func() {
		defer close(out)
		for i, text := range texts {
			if i > 0 && s.interval > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.interval):
				}
			}
			msg := source.Message{ID: strconv.Itoa(i + 1), Text: text, Time: s.now()}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Source) load() ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("Не удалось открыть файл сообщений: %w", err)
	}
	defer f.Close()

	var texts []string
	var block []string
	flush := func() {
		text := strings.TrimSpace(strings.Join(block, "\n"))
		if text != "" {
			texts = append(texts, text)
		}
		block = block[:0]
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == separator {
			flush()
			continue
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("Не удалось прочитать файл сообщений: %w", err)
	}
	flush()
	return texts, nil
}
