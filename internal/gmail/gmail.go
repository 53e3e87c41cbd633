// Package gmail lists, reads and sends mail through the Gmail API.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/secretaria-app/secretaria/internal/googleauth"
)

const (
	// DefaultMaxResults bounds message listings when no limit is given.
	DefaultMaxResults = 20
	// UnreadQuery selects unread messages.
	UnreadQuery = "is:unread"

	maxResultsCap = 100
	me            = "me"
	unreadLabel   = "UNREAD"
)

// ErrInvalidMessage is returned when an outgoing message lacks a recipient
// or has a malformed address.
var ErrInvalidMessage = errors.New("invalid outgoing message")

// Summary is the listing view of a message.
type Summary struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Date     string `json:"date"`
	Unread   bool   `json:"unread"`
}

// Message is a full message with its plain-text body.
type Message struct {
	Summary
	To   string `json:"to"`
	Body string `json:"body"`
}

// Outgoing is a plain-text message to send.
type Outgoing struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Cc      string `json:"cc"`
	Bcc     string `json:"bcc"`
}

// Sent identifies a sent message.
type Sent struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	OK       bool   `json:"ok"`
}

// Client wraps the Gmail service of one mailbox.
type Client struct {
	svc *gmailapi.Service
}

// New creates a client from service-account credentials. Gmail only
// accepts a service account acting for a user, so creds.Subject must name
// the mailbox.
func New(ctx context.Context, creds googleauth.Credentials, opts ...option.ClientOption) (*Client, error) {
	if creds.Configured() && creds.Subject == "" {
		return nil, errors.New("gmail needs a delegated user (impersonate_user)")
	}
	auth, err := googleauth.ClientOptions(ctx, creds, gmailapi.GmailModifyScope)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, append(auth, opts...)...)
}

// NewWithOptions creates a client from raw client options.
func NewWithOptions(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// List returns message summaries matching a Gmail search query, newest
// first as the API orders them.
func (c *Client) List(ctx context.Context, query string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	call := c.svc.Users.Messages.List(me).MaxResults(int64(min(limit, maxResultsCap))).Context(ctx)
	if query = strings.TrimSpace(query); query != "" {
		call = call.Q(query)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	out := make([]Summary, 0, len(resp.Messages))
	for _, stub := range resp.Messages {
		msg, err := c.svc.Users.Messages.Get(me, stub.Id).
			Format("metadata").
			MetadataHeaders("From", "Subject", "Date").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get message %s: %w", stub.Id, err)
		}
		out = append(out, toSummary(msg))
	}
	return out, nil
}

// Unread lists unread messages.
func (c *Client) Unread(ctx context.Context, limit int) ([]Summary, error) {
	return c.List(ctx, UnreadQuery, limit)
}

// Get returns one message with its plain-text body.
func (c *Client) Get(ctx context.Context, id string) (*Message, error) {
	msg, err := c.svc.Users.Messages.Get(me, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	out := &Message{Summary: toSummary(msg)}
	if msg.Payload != nil {
		out.To = header(msg.Payload.Headers, "To")
		out.Body = plainBody(msg.Payload)
	}
	return out, nil
}

// Send sends a plain-text UTF-8 message.
func (c *Client) Send(ctx context.Context, m Outgoing) (*Sent, error) {
	raw, err := compose(m)
	if err != nil {
		return nil, err
	}
	sent, err := c.svc.Users.Messages.Send(me, &gmailapi.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return &Sent{ID: sent.Id, ThreadID: sent.ThreadId, OK: true}, nil
}

// compose renders m as an RFC 5322 message with a base64 body.
func compose(m Outgoing) ([]byte, error) {
	if strings.TrimSpace(m.To) == "" {
		return nil, fmt.Errorf("%w: missing recipient", ErrInvalidMessage)
	}
	var buf bytes.Buffer
	for _, h := range []struct{ name, value string }{
		{"To", m.To}, {"Cc", m.Cc}, {"Bcc", m.Bcc},
	} {
		if strings.TrimSpace(h.value) == "" {
			continue
		}
		if _, err := mail.ParseAddressList(h.value); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, h.name, err)
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", h.name, h.value)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	body := base64.StdEncoding.EncodeToString([]byte(m.Body))
	for len(body) > 76 {
		buf.WriteString(body[:76] + "\r\n")
		body = body[76:]
	}
	buf.WriteString(body + "\r\n")
	return buf.Bytes(), nil
}

func toSummary(msg *gmailapi.Message) Summary {
	s := Summary{ID: msg.Id, ThreadID: msg.ThreadId, Snippet: msg.Snippet}
	if msg.Payload != nil {
		s.From = header(msg.Payload.Headers, "From")
		s.Subject = header(msg.Payload.Headers, "Subject")
		s.Date = header(msg.Payload.Headers, "Date")
	}
	for _, l := range msg.LabelIds {
		if l == unreadLabel {
			s.Unread = true
		}
	}
	return s
}

func header(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// plainBody returns the first text/plain part, searching nested
// multiparts depth first.
func plainBody(part *gmailapi.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		return decodeData(part.Body.Data)
	}
	for _, p := range part.Parts {
		if text := plainBody(p); text != "" {
			return text
		}
	}
	return ""
}

// decodeData decodes the URL-safe base64 of a message part, padded or not.
func decodeData(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return ""
		}
	}
	return strings.ToValidUTF8(string(b), "�")
}
