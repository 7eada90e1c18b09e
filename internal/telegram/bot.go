package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"farmScope/internal/statscache"
)

const (
	DefaultAPIBase = "https://api.telegram.org"

	pollTimeout  = 30
	retryBackoff = 5 * time.Second

	poolsCommand = "/pools"
	helpText     = "<b>Farm stats bot</b>\n\n" +
		"Commands:\n" +
		"/pools - TVL and APY of the tracked farms\n" +
		"/help - Show this message"
	unknownText = "Unknown command. Send /help for available commands."
)

// Requester is the stats entry point the bot forwards /pools to.
type Requester interface {
	Request(requester int64) statscache.Reply
}

type Bot struct {
	token   string
	apiBase string
	stats   Requester
	logger  *zap.Logger
	client  *http.Client
	offset  int64
}

type Option func(*Bot)

// WithAPIBase points the bot at a different Bot API endpoint.
func WithAPIBase(base string) Option {
	return func(b *Bot) {
		if base != "" {
			b.apiBase = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Bot) {
		if client != nil {
			b.client = client
		}
	}
}

func NewBot(token string, logger *zap.Logger, opts ...Option) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bot{
		token:   token,
		apiBase: DefaultAPIBase,
		logger:  logger,
		client:  &http.Client{Timeout: (pollTimeout + 10) * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetRequester wires the stats entry point. It must be called before Run.
func (b *Bot) SetRequester(r Requester) {
	b.stats = r
}

// Notify implements statscache.Notifier.
func (b *Bot) Notify(ctx context.Context, chatID int64, text string) error {
	return b.SendMessage(ctx, chatID, text)
}

// SendMessage sends an HTML formatted message to a chat.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, errResp.Description)
	}
	return nil
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("telegram bot started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("telegram bot stopped")
			return
		default:
		}
		if err := b.poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.logger.Error("poll updates", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(retryBackoff):
			}
		}
	}
}

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	From struct {
		Username string `json:"username"`
	} `json:"from"`
	Text string `json:"text"`
}

func (b *Bot) poll(ctx context.Context) error {
	url := fmt.Sprintf("%s?offset=%d&timeout=%d", b.endpoint("getUpdates"), b.offset, pollTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create poll request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("getUpdates status %d", resp.StatusCode)
	}

	var result struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode updates: %w", err)
	}

	for _, u := range result.Result {
		b.offset = u.UpdateID + 1
		if u.Message == nil {
			continue
		}
		b.handle(ctx, u.Message)
	}
	return nil
}

func (b *Bot) handle(ctx context.Context, m *message) {
	chatID := m.Chat.ID
	text := strings.TrimSpace(m.Text)

	switch cmd := command(text); {
	case strings.Contains(text, poolsCommand):
		b.handlePools(ctx, chatID, m.From.Username)
	case cmd == "/start", cmd == "/help":
		b.reply(ctx, chatID, helpText)
	case strings.HasPrefix(text, "/"):
		b.reply(ctx, chatID, unknownText)
	}
}

func (b *Bot) handlePools(ctx context.Context, chatID int64, username string) {
	if b.stats == nil {
		b.logger.Error("no stats requester wired")
		return
	}
	b.logger.Info("pools requested", zap.Int64("chat_id", chatID), zap.String("username", username))
	reply := b.stats.Request(chatID)
	b.reply(ctx, chatID, reply.Text)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.SendMessage(ctx, chatID, text); err != nil {
		b.logger.Warn("reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// command returns the leading command of text without its @botname suffix.
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd
}

func (b *Bot) endpoint(method string) string {
	return b.apiBase + "/bot" + b.token + "/" + method
}
