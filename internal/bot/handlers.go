package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cargobot/internal/logging"
	"cargobot/internal/orders"
	"cargobot/internal/report"
	"cargobot/internal/store"
	"cargobot/internal/telegram"

	"github.com/kballard/go-shellquote"
)

func (r *Router) start(ctx context.Context, u telegram.Update) error {
	isAdmin := r.IsAdmin(u.UserID)
	created, err := r.deps.Store.RegisterUser(ctx, store.User{
		TelegramID: u.UserID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsAdmin:    isAdmin,
	})
	switch {
	case err != nil:
		// The welcome still goes out.
		logging.BotError("Failed to register user %d: %v", u.UserID, err)
	case created:
		logging.Bot("Registered new user %d (@%s)", u.UserID, u.Username)
		logging.Audit().UserRegistered(u.UserID, u.Username, isAdmin)
	}

	return r.reply(ctx, u.ChatID, welcomeText(u.FirstName, r.deps.Company, days(r.deps.Lookback)), true)
}

func (r *Router) help(ctx context.Context, u telegram.Update) error {
	return r.reply(ctx, u.ChatID, helpText(days(r.deps.Lookback), days(r.deps.UpcomingWindow)), true)
}

func (r *Router) recentEvents(ctx context.Context, q store.EventQuery) ([]orders.Event, error) {
	q.Since = r.now().Add(-r.deps.Lookback)
	events, err := r.deps.Store.ListEvents(ctx, q)
	if err != nil {
		return nil, err
	}
	return orders.InLocation(events, r.deps.Location), nil
}

func (r *Router) orders(ctx context.Context, u telegram.Update) error {
	events, err := r.recentEvents(ctx, store.EventQuery{
		ExcludeTypes: []orders.EventType{orders.EventOrderDeleted},
	})
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return r.reply(ctx, u.ChatID, msgNoActiveOrders, false)
	}

	lines := []string{"📋 *Active orders:*\n"}
	for i, e := range orders.LatestPerOrder(events) {
		lines = append(lines, activeOrderEntry(i+1, e))
	}
	return r.reply(ctx, u.ChatID, strings.Join(lines, "\n"), true)
}

func (r *Router) completed(ctx context.Context, u telegram.Update) error {
	events, err := r.recentEvents(ctx, store.EventQuery{})
	if err != nil {
		return err
	}
	done := orders.Completed(events)
	n := days(r.deps.Lookback)
	if len(done) == 0 {
		return r.reply(ctx, u.ChatID, fmt.Sprintf("✅ No completed orders in the last %d days", n), false)
	}

	lines := []string{fmt.Sprintf("✅ *Completed orders (%d days):*\n", n)}
	for i, e := range done {
		lines = append(lines, completedEntry(i+1, e))
	}
	return r.reply(ctx, u.ChatID, strings.Join(lines, "\n"), true)
}

// statusArgs joins shell-style arguments. Input with unbalanced quotes
// is used as typed, minus stray quote characters at either end.
func statusArgs(raw string) string {
	words, err := shellquote.Split(raw)
	if err != nil {
		return orders.NormalizeStatusQuery(strings.Trim(strings.TrimSpace(raw), `"'`))
	}
	return orders.NormalizeStatusQuery(strings.Join(words, " "))
}

func (r *Router) status(ctx context.Context, u telegram.Update) error {
	query := statusArgs(u.Args)
	if query == "" {
		return r.reply(ctx, u.ChatID, statusUsage(), false)
	}

	events, err := r.recentEvents(ctx, store.EventQuery{})
	if err != nil {
		return err
	}
	matches := orders.MatchStatus(events, query)
	if len(matches) == 0 {
		return r.reply(ctx, u.ChatID, fmt.Sprintf("📭 No orders with status '%s' found", query), false)
	}

	lines := []string{fmt.Sprintf("🔍 *Orders with status '%s':*\n", telegram.EscapeMarkdown(query))}
	for i, e := range matches {
		if i == statusResultsLimit {
			break
		}
		lines = append(lines, statusEntry(i+1, e))
	}
	if extra := len(matches) - statusResultsLimit; extra > 0 {
		lines = append(lines, fmt.Sprintf("\n... and %d more orders", extra))
	}
	return r.reply(ctx, u.ChatID, strings.Join(lines, "\n"), true)
}

func (r *Router) missingPhotos(ctx context.Context, u telegram.Update) error {
	events, err := r.recentEvents(ctx, store.EventQuery{
		Types: []orders.EventType{orders.EventMissingPhoto},
	})
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return r.reply(ctx, u.ChatID, msgAllPhotos, false)
	}

	lines := []string{"📷 *Orders without loading photos:*\n"}
	for i, e := range events {
		if i == missingPhotosLimit {
			break
		}
		lines = append(lines, missingPhotoEntry(i+1, e))
	}
	return r.reply(ctx, u.ChatID, strings.Join(lines, "\n"), true)
}

func (r *Router) upcoming(ctx context.Context, u telegram.Update) error {
	now := r.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	events, err := r.deps.Store.ListEvents(ctx, store.EventQuery{
		Since:     today,
		Until:     today.Add(r.deps.UpcomingWindow),
		Types:     []orders.EventType{orders.EventUpcomingDeadline},
		Ascending: true,
	})
	if err != nil {
		return err
	}
	n := days(r.deps.UpcomingWindow)
	if len(events) == 0 {
		return r.reply(ctx, u.ChatID, fmt.Sprintf("📅 No upcoming events in the next %d days", n), false)
	}

	lines := []string{fmt.Sprintf("📅 *Upcoming events (%d days):*\n", n)}
	for _, e := range orders.InLocation(events, r.deps.Location) {
		lines = append(lines, upcomingEntry(e))
	}
	return r.reply(ctx, u.ChatID, strings.Join(lines, "\n"), true)
}

func (r *Router) report(ctx context.Context, u telegram.Update) (err error) {
	defer func() { r.deps.Metrics.RecordReport(err) }()

	if err := r.reply(ctx, u.ChatID, msgReportBuilding, false); err != nil {
		return err
	}

	now := r.now()
	events, err := r.recentEvents(ctx, store.EventQuery{})
	if err != nil {
		return err
	}
	data := report.Collect(events, now)
	data.Window = r.deps.Lookback

	path, err := r.deps.Reports.Build(ctx, data)
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := r.deps.Reports.Remove(path); rmErr != nil {
			logging.BotWarn("%v", rmErr)
		}
	}()

	return r.deps.Sender.SendDocument(ctx, u.ChatID, path, report.DownloadName(now), msgReportCaption)
}

func (r *Router) stats(ctx context.Context, u telegram.Update) error {
	users, err := r.deps.Store.CountUsers(ctx)
	if err != nil {
		return err
	}
	total, err := r.deps.Store.CountEvents(ctx)
	if err != nil {
		return err
	}
	weekly, err := r.deps.Store.ListEvents(ctx, store.EventQuery{
		Since: r.now().Add(-r.deps.StatsWindow),
	})
	if err != nil {
		return err
	}
	n := days(r.deps.StatsWindow)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *System statistics:*\n\n")
	fmt.Fprintf(&b, "👥 *Users:*\n• Total users: %d\n• Admins: %d\n\n", users, r.adminCount())
	fmt.Fprintf(&b, "📈 *Events:*\n• Total events: %d\n• Last %d days: %d\n\n", total, n, len(weekly))
	fmt.Fprintf(&b, "📅 *Activity over %d days:*\n", n)
	for i, tc := range orders.CountByType(weekly) {
		if i == statsTopTypes {
			break
		}
		fmt.Fprintf(&b, "• %s: %d\n", telegram.EscapeMarkdown(string(tc.Type)), tc.Count)
	}
	return r.reply(ctx, u.ChatID, b.String(), true)
}

func (r *Router) notify(ctx context.Context, u telegram.Update) error {
	text := strings.TrimSpace(u.Args)
	if text == "" {
		return r.reply(ctx, u.ChatID, msgNotifyUsage, false)
	}

	ids, err := r.deps.Store.ListUserIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return r.reply(ctx, u.ChatID, msgNoUsers, false)
	}

	res := r.deps.Broadcaster.Broadcast(ctx, ids, broadcastHeader+text)
	logging.Audit().Broadcast(u.UserID, res.ID, len(ids), res.Sent, res.Failed)

	return r.reply(ctx, u.ChatID, fmt.Sprintf("📨 Notification sent:\n✅ Delivered: %d\n❌ Failed: %d", res.Sent, res.Failed), false)
}
