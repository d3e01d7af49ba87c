package telegram

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"cargobot/internal/logging"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

func init() {
	_ = tgbotapi.SetLogger(botLogger{})
}

// botLogger routes library output to the telegram category.
type botLogger struct{}

func (botLogger) Println(v ...interface{}) {
	logging.TelegramWarn("%s", strings.TrimSpace(fmt.Sprintln(v...)))
}

func (botLogger) Printf(format string, v ...interface{}) {
	logging.TelegramDebug(format, v...)
}

// Config configures the client.
type Config struct {
	Token       string
	APIEndpoint string        // format string with token and method, empty = api.telegram.org
	PollTimeout time.Duration // long-poll timeout
	Workers     int           // concurrent handlers
	Debug       bool
	HTTPClient  *http.Client
}

// Client talks to the Bot API.
type Client struct {
	api     *tgbotapi.BotAPI
	timeout int
	workers int
}

// New connects to the Bot API and checks the token with getMe.
func New(cfg Config) (*Client, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	hc := cfg.HTTPClient
	if hc == nil {
		// Must outlive the long-poll timeout.
		hc = &http.Client{Timeout: cfg.PollTimeout + 30*time.Second}
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, hc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	api.Debug = cfg.Debug

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	timeout := int(cfg.PollTimeout / time.Second)
	if timeout < 0 {
		timeout = 0
	}

	logging.Telegram("Authorized as @%s", api.Self.UserName)
	return &Client{api: api, timeout: timeout, workers: workers}, nil
}

// Username returns the bot's username.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// SendMessage sends text to a chat, optionally with legacy Markdown.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markdown bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("sendMessage to %d: %w", chatID, err)
	}
	return nil
}

// SendDocument uploads the file at path under filename.
func (c *Client) SendDocument(ctx context.Context, chatID int64, path, filename, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = caption
	if _, err := c.api.Send(doc); err != nil {
		return fmt.Errorf("sendDocument to %d: %w", chatID, err)
	}
	return nil
}

// Run long-polls for updates and hands each message to handle, at most
// Workers at a time. It returns after ctx is cancelled and in-flight
// handlers have finished; handlers see a context that is not cancelled
// by shutdown.
func (c *Client) Run(ctx context.Context, handle HandlerFunc) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.timeout
	u.AllowedUpdates = []string{"message"}

	updates := c.api.GetUpdatesChan(u)
	defer c.api.StopReceivingUpdates()

	logging.Telegram("Polling for updates (timeout %ds, %d workers)", c.timeout, c.workers)

	g := new(errgroup.Group)
	g.SetLimit(c.workers)

	// In-flight handlers finish their replies after shutdown starts.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			g.Wait()
			logging.Telegram("Polling stopped")
			return nil

		case raw, ok := <-updates:
			if !ok {
				g.Wait()
				return nil
			}
			upd, ok := convert(raw, c.api.Self.UserName)
			if !ok {
				continue
			}
			logging.TelegramDebug("Update %d from %d: %q", upd.UpdateID, upd.UserID, upd.Command)
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						logging.TelegramError("Handler panic on update %d: %v", upd.UpdateID, r)
					}
				}()
				handle(handlerCtx, upd)
				return nil
			})
		}
	}
}

// convert maps a Bot API update to Update; non-message updates are dropped.
// Commands addressed to other bots arrive as plain text.
func convert(raw tgbotapi.Update, botName string) (Update, bool) {
	msg := raw.Message
	if msg == nil || msg.Chat == nil {
		return Update{}, false
	}
	u := Update{
		UpdateID: raw.UpdateID,
		ChatID:   msg.Chat.ID,
		Text:     msg.Text,
	}
	if msg.From != nil {
		u.UserID = msg.From.ID
		u.Username = msg.From.UserName
		u.FirstName = msg.From.FirstName
		u.LastName = msg.From.LastName
	}
	u.Command, u.Args = ParseCommand(msg.Text, botName)
	return u, true
}
