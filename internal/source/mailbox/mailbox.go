package mailbox

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"signalbot/internal/logger"
	"signalbot/internal/source"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Host         string
	Port         int
	User         string
	Password     string
	Subject      string
	PollInterval time.Duration
}

// mailClient is the part of *client.Client the poller uses.
type mailClient interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Logout() error
}

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// Source polls an IMAP inbox for unseen mails mirroring the signal channel. Matching mails
// are marked seen once forwarded.
type Source struct {
	cfg  Config
	log  *logger.Logger
	dial func(addr string) (mailClient, error)
}

func New(cfg Config, log *logger.Logger) *Source {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &Source{
		cfg: cfg,
		log: log,
		dial: func(addr string) (mailClient, error) {
			return client.DialTLS(addr, nil)
		},
	}
}

func (s *Source) logEntry() *logrus.Entry {
	return s.log.WithComponent("mailbox").WithField("user", s.cfg.User)
}

func (s *Source) Messages(ctx context.Context) (<-chan source.Message, error) {
	out := make(chan source.Message, 16)

	go func() {
		defer close(out)

		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		s.logEntry().Info("Чтение почтового ящика запущено.")
		for {
			if err := s.poll(ctx, out); err != nil {
				s.logEntry().WithError(err).Warn("Не удалось проверить почту.")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out, nil
}

func (s *Source) poll(ctx context.Context, out chan<- source.Message) error {
	c, err := s.dial(fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("Не удалось подключиться к IMAP: %w", err)
	}
	defer c.Logout()

	if err := c.Login(s.cfg.User, s.cfg.Password); err != nil {
		return fmt.Errorf("Не удалось войти в почту: %w", err)
	}
	if _, err := c.Select("INBOX", false); err != nil {
		return fmt.Errorf("Не удалось открыть INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("Не удалось выполнить поиск писем: %w", err)
	}
	if len(uids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope, imap.FetchUid}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var fetched []*imap.Message
	for msg := range messages {
		fetched = append(fetched, msg)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("Не удалось получить письма: %w", err)
	}
	sort.Slice(fetched, func(i, j int) bool { return fetched[i].Uid < fetched[j].Uid })

	for _, msg := range fetched {
		if msg.Envelope == nil || !s.matchSubject(msg.Envelope.Subject) {
			continue
		}
		text, err := extractText(msg.GetBody(section))
		if err != nil {
			s.logEntry().WithError(err).WithField("uid", msg.Uid).Warn("Не удалось разобрать письмо.")
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		select {
		case out <- source.Message{ID: fmt.Sprintf("%d", msg.Uid), Text: text, Time: msg.Envelope.Date}:
		case <-ctx.Done():
			return ctx.Err()
		}

		seen := new(imap.SeqSet)
		seen.AddNum(msg.Uid)
		if err := c.UidStore(seen, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.SeenFlag}, nil); err != nil {
			s.logEntry().WithError(err).WithField("uid", msg.Uid).Warn("Не удалось отметить письмо прочитанным.")
		}
	}
	return nil
}

func (s *Source) matchSubject(subject string) bool {
	if s.cfg.Subject == "" {
		return true
	}
	return strings.Contains(strings.ToLower(subject), strings.ToLower(s.cfg.Subject))
}

// extractText returns the text/plain part, falling back to an HTML part with tags removed.
func extractText(r io.Reader) (string, error) {
	if r == nil {
		return "", fmt.Errorf("Пустое тело письма.")
	}
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", err
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		b, err := io.ReadAll(p.Body)
		if err != nil {
			return "", err
		}
		contentType, _, _ := h.ContentType()
		switch contentType {
		case "text/plain":
			if plain == "" {
				plain = string(b)
			}
		case "text/html":
			if html == "" {
				html = htmlTag.ReplaceAllString(strings.ReplaceAll(string(b), "<br>", "\n"), "")
			}
		}
	}

	if plain != "" {
		return plain, nil
	}
	return html, nil
}
