package telegram

import (
	"context"
	"fmt"
	"signalbot/internal/logger"
	"signalbot/internal/source"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Token string
	// Chat is a numeric chat id (-100...) or a channel username (@name).
	Chat        string
	PollTimeout int
}

type updater interface {
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Source long-polls the Bot API and forwards posts from one chat. The bot must be a member
// (for channels, an administrator) of that chat.
type Source struct {
	cfg          Config
	log          *logger.Logger
	connect      func(token string) (updater, error)
	lastUpdateID int
}

func New(cfg Config, log *logger.Logger) *Source {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}
	return &Source{
		cfg: cfg,
		log: log,
		connect: func(token string) (updater, error) {
			bot, err := tgbotapi.NewBotAPI(token)
			if err != nil {
				return nil, err
			}
			log.WithComponent("telegram").WithField("bot", bot.Self.UserName).Info("Бот Telegram авторизован.")
			return bot, nil
		},
	}
}

func (s *Source) logEntry() *logrus.Entry {
	return s.log.WithComponent("telegram").WithField("chat", s.cfg.Chat)
}

func (s *Source) Messages(ctx context.Context) (<-chan source.Message, error) {
	bot, err := s.connect(s.cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("Не удалось подключиться к Telegram: %w", err)
	}

	u := tgbotapi.NewUpdate(s.lastUpdateID + 1)
	u.Timeout = s.cfg.PollTimeout
	u.AllowedUpdates = []string{"message", "channel_post"}
	updates := bot.GetUpdatesChan(u)

	out := make(chan source.Message, 16)
	go func() {
		defer close(out)
		defer bot.StopReceivingUpdates()

		s.logEntry().Info("Чтение канала запущено.")
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					s.logEntry().Warn("Канал обновлений Telegram закрыт.")
					return
				}
				msg, ok := s.toMessage(update)
				if !ok {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// toMessage keeps text posts from the configured chat and drops updates already seen.
func (s *Source) toMessage(update tgbotapi.Update) (source.Message, bool) {
	if update.UpdateID <= s.lastUpdateID {
		return source.Message{}, false
	}
	s.lastUpdateID = update.UpdateID

	post := update.ChannelPost
	if post == nil {
		post = update.Message
	}
	if post == nil || post.Chat == nil || !s.matchChat(post.Chat) {
		return source.Message{}, false
	}

	text := post.Text
	if text == "" {
		text = post.Caption
	}
	if strings.TrimSpace(text) == "" {
		return source.Message{}, false
	}

	return source.Message{
		ID:   fmt.Sprintf("%d:%d", post.Chat.ID, post.MessageID),
		Text: text,
		Time: post.Time(),
	}, true
}

func (s *Source) matchChat(chat *tgbotapi.Chat) bool {
	want := strings.TrimSpace(s.cfg.Chat)
	if id, err := strconv.ParseInt(want, 10, 64); err == nil {
		return chat.ID == id
	}
	return strings.EqualFold(strings.TrimPrefix(want, "@"), chat.UserName)
}
