// Package telegram forwards chat messages and their files to Telegram
// contacts through the Bot API.
package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrNotConfigured is returned by every call when no bot token is set.
var ErrNotConfigured = errors.New("telegram bot token not configured")

// captionLimit is the Bot API limit for document captions.
const captionLimit = 1024

const defaultTimeout = 30 * time.Second

// BotInfo identifies the bot behind the configured token.
type BotInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Client is a lazily connected Bot API client. The bot identity is fetched
// once, on first use.
type Client struct {
	token      string
	endpoint   string
	httpClient *http.Client

	mu  sync.Mutex
	api *tgbotapi.BotAPI
}

// NewClient creates a client for token. An empty endpoint selects the public
// Bot API.
func NewClient(token, endpoint string) *Client {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return &Client{
		token:      strings.TrimSpace(token),
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Configured reports whether a bot token is set
func (c *Client) Configured() bool { return c.token != "" }

func (c *Client) bot() (*tgbotapi.BotAPI, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}
	api, err := tgbotapi.NewBotAPIWithClient(c.token, c.endpoint, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}
	c.api = api
	return api, nil
}

// Status checks the token against the Bot API and returns the bot identity.
func (c *Client) Status() (*BotInfo, error) {
	api, err := c.bot()
	if err != nil {
		return nil, err
	}
	return &BotInfo{ID: api.Self.ID, Username: api.Self.UserName, FirstName: api.Self.FirstName}, nil
}

// SendText sends a plain text message to chatID.
func (c *Client) SendText(chatID, text string) error {
	api, err := c.bot()
	if err != nil {
		return err
	}
	target, err := parseChat(chatID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(target.id, text)
	msg.ChannelUsername = target.channel
	if _, err := api.Send(msg); err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return nil
}

// SendDocument uploads the file at path to chatID under name, with an
// optional caption.
func (c *Client) SendDocument(chatID, path, name, caption string) error {
	api, err := c.bot()
	if err != nil {
		return err
	}
	target, err := parseChat(chatID)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	doc := tgbotapi.NewDocument(target.id, tgbotapi.FileReader{Name: name, Reader: f})
	doc.ChannelUsername = target.channel
	if caption != "" {
		doc.Caption = truncateRunes(caption, captionLimit)
	}
	if _, err := api.Send(doc); err != nil {
		return fmt.Errorf("sendDocument: %w", err)
	}
	return nil
}

type chatTarget struct {
	id      int64
	channel string
}

// parseChat accepts a numeric chat id or an @channel username.
func parseChat(chatID string) (chatTarget, error) {
	chatID = strings.TrimSpace(chatID)
	if strings.HasPrefix(chatID, "@") && len(chatID) > 1 {
		return chatTarget{channel: chatID}, nil
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return chatTarget{}, fmt.Errorf("invalid chat id %q", chatID)
	}
	return chatTarget{id: id}, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
