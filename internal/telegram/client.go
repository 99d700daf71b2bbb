// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/tickwatch/internal/logger"
	"github.com/rewired-gh/tickwatch/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	status         func() string
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return newClient(bot, chatIDInt, maxRetries, retryDelayBase), nil
}

func newClient(bot *tgbotapi.BotAPI, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// SetStatusFunc sets the source of the /status reply.
func (c *Client) SetStatusFunc(fn func() string) {
	c.status = fn
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	var text string
	switch msg.Command() {
	case "ping":
		text = "Pong"
	case "status":
		text = "No monitor attached"
		if c.status != nil {
			text = c.status()
		}
	default:
		return
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, text)); err != nil {
		logger.Warn("Failed to reply to /%s: %v", msg.Command(), err)
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Monitoring error*\n`%s`", escapeCode(cycleErr.Error()))
	return c.sendMarkdownV2(context.Background(), text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Monitoring recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(context.Background(), text)
}

func (c *Client) Name() string { return "telegram" }

// Deliver sends one alert; it makes the client an alert sink of the monitor.
func (c *Client) Deliver(ctx context.Context, alert models.Alert) error {
	return c.sendMarkdownV2(ctx, formatAlert(alert))
}

// formatAlert renders an alert as a Telegram MarkdownV2 message.
func formatAlert(alert models.Alert) string {
	emoji := "⚡"
	switch alert.Bias {
	case models.BiasBull:
		emoji = "📈"
	case models.BiasBear:
		emoji = "📉"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 *%s*\n", escapeMarkdownV2(alert.Event))
	fmt.Fprintf(&b, "%s %s • %s bias • %s\n\n",
		emoji,
		escapeMarkdownV2(alert.Asset),
		escapeMarkdownV2(string(alert.Bias)),
		escapeMarkdownV2(fmt.Sprintf("p=%d%%", alert.Probability)))
	fmt.Fprintf(&b, "Price: `%.4f`\n", alert.Price)
	fmt.Fprintf(&b, "Trigger: `%.4f`\n", alert.TriggerLevel)
	fmt.Fprintf(&b, "Invalidation: `%.4f`\n", alert.InvalidationLevel)
	if alert.RiskNote != "" {
		fmt.Fprintf(&b, "_%s_\n", escapeMarkdownV2(alert.RiskNote))
	}
	fmt.Fprintf(&b, "\n🕒 %s", escapeMarkdownV2(alert.Timestamp.UTC().Format("2006-01-02 15:04:05 MST")))
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeCode escapes text placed inside a MarkdownV2 code span, where only
// backquote and backslash are special.
func escapeCode(text string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(text)
}
