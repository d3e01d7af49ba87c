// Package bot routes Telegram commands to their handlers.
package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"cargobot/internal/logging"
	"cargobot/internal/metrics"
	"cargobot/internal/notify"
	"cargobot/internal/orders"
	"cargobot/internal/report"
	"cargobot/internal/store"
	"cargobot/internal/telegram"
)

// Store is the persistence the handlers read from.
type Store interface {
	RegisterUser(ctx context.Context, u store.User) (bool, error)
	CountUsers(ctx context.Context) (int, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	ListEvents(ctx context.Context, q store.EventQuery) ([]orders.Event, error)
	CountEvents(ctx context.Context) (int, error)
}

// Reports builds and cleans up PDF reports.
type Reports interface {
	Build(ctx context.Context, d report.Data) (string, error)
	Remove(path string) error
}

// Broadcaster delivers one text to many chats.
type Broadcaster interface {
	Broadcast(ctx context.Context, chatIDs []int64, text string) notify.Result
}

// Deps are the router's collaborators. Metrics, Clock and Location are optional.
type Deps struct {
	Store       Store
	Sender      telegram.Sender
	Reports     Reports
	Broadcaster Broadcaster
	Metrics     *metrics.Collector

	Admins   []int64
	Company  string
	Clock    func() time.Time
	Location *time.Location // zone of dates shown to users, default UTC

	Lookback       time.Duration // /orders, /completed, /status, /missing_photos, /report
	UpcomingWindow time.Duration // /upcoming
	StatsWindow    time.Duration // /stats weekly activity
	QueryTimeout   time.Duration // bound on each store call, 0 = none
}

type handlerFunc func(ctx context.Context, u telegram.Update) error

type command struct {
	handle    handlerFunc
	adminOnly bool
	failure   string // reply when handle returns an error
}

// Router dispatches updates by command.
type Router struct {
	deps     Deps
	admins   atomic.Pointer[map[int64]struct{}]
	commands map[string]command
}

// New creates a router.
func New(deps Deps) *Router {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Lookback <= 0 {
		deps.Lookback = 30 * 24 * time.Hour
	}
	if deps.UpcomingWindow <= 0 {
		deps.UpcomingWindow = 7 * 24 * time.Hour
	}
	if deps.StatsWindow <= 0 {
		deps.StatsWindow = 7 * 24 * time.Hour
	}

	if deps.QueryTimeout > 0 {
		deps.Store = timeoutStore{next: deps.Store, timeout: deps.QueryTimeout}
	}

	r := &Router{deps: deps}
	r.SetAdmins(deps.Admins)
	r.commands = map[string]command{
		"start":          {handle: r.start},
		"help":           {handle: r.help},
		"orders":         {handle: r.orders, failure: msgFetchFailed},
		"completed":      {handle: r.completed, failure: msgFetchFailed},
		"status":         {handle: r.status, failure: msgFilterFailed},
		"missing_photos": {handle: r.missingPhotos, failure: msgFetchFailed},
		"upcoming":       {handle: r.upcoming, failure: msgFetchFailed},
		"report":         {handle: r.report, failure: msgReportFailed},
		"stats":          {handle: r.stats, adminOnly: true, failure: msgStatsFailed},
		"notify":         {handle: r.notify, adminOnly: true, failure: msgNotifyFailed},
	}
	return r
}

// SetAdmins replaces the admin list.
func (r *Router) SetAdmins(ids []int64) {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	r.admins.Store(&set)
}

// IsAdmin reports whether id may run admin commands.
func (r *Router) IsAdmin(id int64) bool {
	_, ok := (*r.admins.Load())[id]
	return ok
}

func (r *Router) adminCount() int {
	return len(*r.admins.Load())
}

// Handle processes one update. Plain text is ignored.
func (r *Router) Handle(ctx context.Context, u telegram.Update) {
	if !u.IsCommand() {
		logging.BotDebug("Ignoring non-command message from %d", u.UserID)
		return
	}

	start := time.Now()
	log := logging.Get(logging.CategoryBot).With("command", u.Command, "user_id", u.UserID)

	cmd, ok := r.commands[u.Command]
	if !ok {
		log.Debug("Unknown command")
		r.send(ctx, u.ChatID, msgUnknownCommand, false)
		r.deps.Metrics.RecordCommand("unknown", metrics.OutcomeUnknown, time.Since(start))
		return
	}

	if cmd.adminOnly && !r.IsAdmin(u.UserID) {
		log.Warn("Admin command refused")
		logging.Audit().AdminDenied(u.UserID, u.Command)
		r.send(ctx, u.ChatID, msgAdminsOnly, false)
		r.deps.Metrics.RecordCommand(u.Command, metrics.OutcomeForbidden, time.Since(start))
		return
	}

	outcome := metrics.OutcomeOK
	err := cmd.handle(ctx, u)
	if cmd.adminOnly {
		logging.Audit().AdminCommand(u.UserID, u.Command, err)
	}
	if err != nil {
		outcome = metrics.OutcomeError
		log.Error("Command failed: %v", err)
		if cmd.failure != "" {
			r.send(ctx, u.ChatID, cmd.failure, false)
		}
	}

	elapsed := time.Since(start)
	r.deps.Metrics.RecordCommand(u.Command, outcome, elapsed)
	log.Debug("Handled in %v", elapsed)
}

// reply sends text, split into chunks the Bot API accepts.
func (r *Router) reply(ctx context.Context, chatID int64, text string, markdown bool) error {
	for _, chunk := range telegram.SplitMessage(text, telegram.MaxMessageLength) {
		if err := r.deps.Sender.SendMessage(ctx, chatID, chunk, markdown); err != nil {
			return fmt.Errorf("reply to %d: %w", chatID, err)
		}
	}
	return nil
}

// send is reply for messages whose delivery failure is only logged.
func (r *Router) send(ctx context.Context, chatID int64, text string, markdown bool) {
	if err := r.reply(ctx, chatID, text, markdown); err != nil {
		logging.BotWarn("%v", err)
	}
}

// timeoutStore bounds every call to next by timeout.
type timeoutStore struct {
	next    Store
	timeout time.Duration
}

func (s timeoutStore) RegisterUser(ctx context.Context, u store.User) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.RegisterUser(ctx, u)
}

func (s timeoutStore) CountUsers(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.CountUsers(ctx)
}

func (s timeoutStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.ListUserIDs(ctx)
}

func (s timeoutStore) ListEvents(ctx context.Context, q store.EventQuery) ([]orders.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.ListEvents(ctx, q)
}

func (s timeoutStore) CountEvents(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.CountEvents(ctx)
}

func (r *Router) now() time.Time {
	return r.deps.Clock().In(r.deps.Location)
}
