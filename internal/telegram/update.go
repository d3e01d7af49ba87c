// Package telegram is the Bot API transport: long polling, message and
// document sending, and splitting of oversized replies.
package telegram

import (
	"context"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxMessageLength is the chunk size for outgoing text. The Bot API
// limit is 4096; the margin leaves room for markup.
const MaxMessageLength = 4000

// Update is an incoming message reduced to what handlers need.
type Update struct {
	UpdateID  int
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	Text      string
	Command   string // without the leading slash or @botname, empty for plain text
	Args      string // raw text after the command
}

// IsCommand reports whether the update carries a bot command.
func (u Update) IsCommand() bool {
	return u.Command != ""
}

// Sender is the outbound side of the transport.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markdown bool) error
	SendDocument(ctx context.Context, chatID int64, path, filename, caption string) error
}

// HandlerFunc processes one update.
type HandlerFunc func(ctx context.Context, u Update)

// ParseCommand splits "/cmd@bot args" into its command and argument text.
// A command addressed to a bot other than botName is not a command for
// us and yields empty results. An empty botName accepts any suffix.
func ParseCommand(text, botName string) (command, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, rest := text[1:], ""
	if i := strings.IndexAny(head, " \t\n"); i >= 0 {
		head, rest = head[:i], head[i+1:]
	}
	if at := strings.IndexByte(head, '@'); at >= 0 {
		target := head[at+1:]
		if botName != "" && !strings.EqualFold(target, botName) {
			return "", ""
		}
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(rest)
}

// SplitMessage cuts text into chunks of at most limit runes, breaking
// after the last newline of a chunk when there is one.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// EscapeMarkdown escapes s for legacy Markdown messages.
func EscapeMarkdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
