package mailbox

import (
	"bytes"
	"context"
	"signalbot/internal/source"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMail struct {
	messages []*imap.Message
	stored   []uint32
	login    string
}

func (f *fakeMail) Login(username, password string) error {
	f.login = username
	return nil
}

func (f *fakeMail) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	return &imap.MailboxStatus{Name: name}, nil
}

func (f *fakeMail) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	var uids []uint32
	for _, m := range f.messages {
		uids = append(uids, m.Uid)
	}
	return uids, nil
}

func (f *fakeMail) UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	for _, m := range f.messages {
		ch <- m
	}
	return nil
}

func (f *fakeMail) UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	for _, m := range f.messages {
		if seqset.Contains(m.Uid) {
			f.stored = append(f.stored, m.Uid)
		}
	}
	return nil
}

func (f *fakeMail) Logout() error { return nil }

func mailMessage(uid uint32, subject, raw string) *imap.Message {
	msg := imap.NewMessage(uid, nil)
	msg.Uid = uid
	msg.Envelope = &imap.Envelope{Subject: subject, Date: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)}
	msg.Body = map[*imap.BodySectionName]imap.Literal{
		{}: bytes.NewBufferString(strings.ReplaceAll(raw, "\n", "\r\n")),
	}
	return msg
}

const multipartMail = `From: channel@example.com
Subject: Gold Signals
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

Sell Gold @3640.5-3645.5
Sl :3647.5
--b1
Content-Type: text/html; charset=utf-8

<p>Sell Gold</p>
--b1--
`

const htmlMail = `From: channel@example.com
Subject: Gold Signals
Content-Type: text/html; charset=utf-8

<div>Buy Gold @3640</div><br><div>SL 3630</div>
`

func TestPollForwardsMatchingMail(t *testing.T) {
	fake := &fakeMail{messages: []*imap.Message{
		mailMessage(12, "Newsletter", multipartMail),
		mailMessage(11, "FW: Gold Signals", multipartMail),
	}}
	s := New(Config{Host: "imap.example.com", User: "bot@example.com", Subject: "gold signals"}, nil)
	s.dial = func(addr string) (mailClient, error) {
		assert.Equal(t, "imap.example.com:993", addr)
		return fake, nil
	}

	out := make(chan source.Message, 4)
	require.NoError(t, s.poll(context.Background(), out))
	close(out)

	var got []source.Message
	for m := range out {
		got = append(got, m)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "11", got[0].ID)
	assert.Contains(t, got[0].Text, "Sell Gold @3640.5-3645.5")
	assert.NotContains(t, got[0].Text, "<p>")
	assert.Equal(t, []uint32{11}, fake.stored)
	assert.Equal(t, "bot@example.com", fake.login)
}

func TestExtractTextFallsBackToHTML(t *testing.T) {
	text, err := extractText(bytes.NewBufferString(strings.ReplaceAll(htmlMail, "\n", "\r\n")))
	require.NoError(t, err)
	assert.Contains(t, text, "Buy Gold @3640")
	assert.Contains(t, text, "SL 3630")
	assert.NotContains(t, text, "<div>")
}

func TestExtractTextNilBody(t *testing.T) {
	_, err := extractText(nil)
	assert.Error(t, err)
}
