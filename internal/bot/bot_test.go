package bot

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cargobot/internal/logging"
	"cargobot/internal/metrics"
	"cargobot/internal/notify"
	"cargobot/internal/orders"
	"cargobot/internal/report"
	"cargobot/internal/store"
	"cargobot/internal/telegram"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var botNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

const (
	adminID = int64(1001)
	userID  = int64(2002)
)

type sentMessage struct {
	ChatID   int64
	Text     string
	Markdown bool
}

type sentDocument struct {
	ChatID   int64
	Filename string
	Caption  string
	Body     []byte
}

type fakeSender struct {
	mu      sync.Mutex
	msgs    []sentMessage
	docs    []sentDocument
	failFor map[int64]bool
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string, markdown bool) error {
	if f.failFor[chatID] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sentMessage{ChatID: chatID, Text: text, Markdown: markdown})
	return nil
}

func (f *fakeSender) SendDocument(_ context.Context, chatID int64, path, filename, caption string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, sentDocument{ChatID: chatID, Filename: filename, Caption: caption, Body: body})
	return nil
}

// to returns the messages sent to chatID.
func (f *fakeSender) to(chatID int64) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.msgs {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) last(t *testing.T, chatID int64) sentMessage {
	t.Helper()
	msgs := f.to(chatID)
	require.NotEmpty(t, msgs, "nothing sent to %d", chatID)
	return msgs[len(msgs)-1]
}

type harness struct {
	router  *Router
	store   *store.Store
	sender  *fakeSender
	reports *report.Generator
	metrics *metrics.Collector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.SetClock(func() time.Time { return botNow })
	require.NoError(t, s.Migrate(ctx))

	h := &harness{
		store:   s,
		sender:  &fakeSender{},
		reports: &report.Generator{Dir: t.TempDir(), Company: "Margiana Logistic Services"},
		metrics: metrics.New(),
	}
	h.router = New(Deps{
		Store:       s,
		Sender:      h.sender,
		Reports:     h.reports,
		Broadcaster: notify.NewBroadcaster(h.sender, 0, 2, h.metrics),
		Metrics:     h.metrics,
		Admins:      []int64{adminID},
		Company:     "Margiana Logistic Services",
		Clock:       func() time.Time { return botNow },
	})
	return h
}

func (h *harness) command(from int64, text string) {
	cmd, args := telegram.ParseCommand(text, "")
	h.router.Handle(context.Background(), telegram.Update{
		ChatID:    from,
		UserID:    from,
		Username:  "ann",
		FirstName: "Ann",
		Text:      text,
		Command:   cmd,
		Args:      args,
	})
}

func (h *harness) seed(t *testing.T) {
	t.Helper()
	day := 24 * time.Hour
	events := []orders.Event{
		{OrderID: "1", OrderNumber: "MLS-001", Type: orders.EventOrderCreated, CreatedAt: botNow.Add(-5 * day),
			Data: orders.EventData{Client: "Ashgabat Trade", Status: "New", Containers: 2, Weight: 18000}},
		{OrderID: "1", OrderNumber: "MLS-001", Type: orders.EventStatusChanged, CreatedAt: botNow.Add(-day),
			Data: orders.EventData{Client: "Ashgabat Trade", Status: "In Transit CHN-IR", Containers: 2, Weight: 18000}},
		{OrderID: "2", OrderNumber: "MLS_002", Type: orders.EventStatusChanged, CreatedAt: botNow.Add(-2 * day),
			Data: orders.EventData{Client: "Turkmen Cotton", Status: "Completed", Containers: 3, Weight: 24000.5}},
		{OrderID: "3", OrderNumber: "MLS-003", Type: orders.EventOrderDeleted, CreatedAt: botNow.Add(-3 * time.Hour)},
		{OrderID: "4", OrderNumber: "MLS-004", Type: orders.EventMissingPhoto, CreatedAt: botNow.Add(-6 * time.Hour),
			Data: orders.EventData{Client: "Mary Textile", Status: "In Progress IR"}},
		{OrderID: "5", OrderNumber: "MLS-005", Type: orders.EventUpcomingDeadline, CreatedAt: botNow.Add(2 * day),
			Data: orders.EventData{Title: "Customs clearance", Description: "Documents due at Sarakhs"}},
		{OrderID: "5", OrderNumber: "MLS-005", Type: orders.EventUpcomingDeadline, CreatedAt: botNow.Add(-day),
			Data: orders.EventData{Title: "Past deadline"}},
		{OrderID: "5", OrderNumber: "MLS-005", Type: orders.EventUpcomingDeadline, CreatedAt: botNow.Add(10 * day),
			Data: orders.EventData{Title: "Far deadline"}},
		{OrderID: "6", OrderNumber: "MLS-006", Type: orders.EventStatusChanged, CreatedAt: botNow.Add(-40 * day),
			Data: orders.EventData{Client: "Old Client", Status: "Completed"}},
	}
	for _, e := range events {
		_, err := h.store.InsertEvent(context.Background(), e)
		require.NoError(t, err)
	}
}

func commandCount(t *testing.T, m *metrics.Collector) int {
	t.Helper()
	n, err := testutil.GatherAndCount(m.Registry(), "cargobot_commands_total")
	require.NoError(t, err)
	return n
}

func TestStartRegistersUser(t *testing.T) {
	h := newHarness(t)

	h.command(adminID, "/start")
	h.command(adminID, "/start")
	h.command(userID, "/start")

	n, err := h.store.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	u, err := h.store.GetUser(context.Background(), adminID)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	u, err = h.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, u.IsAdmin)

	welcome := h.sender.last(t, userID)
	assert.True(t, welcome.Markdown)
	assert.Contains(t, welcome.Text, "Hello, Ann!")
	assert.Contains(t, welcome.Text, "Margiana Logistic Services")
	assert.Contains(t, welcome.Text, `/missing\_photos`)
	assert.Contains(t, welcome.Text, "last 30 days")
}

type failingStore struct {
	Store
	registerErr error
	listErr     error
}

func (f failingStore) RegisterUser(ctx context.Context, u store.User) (bool, error) {
	if f.registerErr != nil {
		return false, f.registerErr
	}
	return f.Store.RegisterUser(ctx, u)
}

func (f failingStore) ListEvents(ctx context.Context, q store.EventQuery) ([]orders.Event, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListEvents(ctx, q)
}

// stallingStore blocks ListEvents until its context ends.
type stallingStore struct {
	Store
	hadDeadline chan bool
}

func (s stallingStore) ListEvents(ctx context.Context, _ store.EventQuery) ([]orders.Event, error) {
	_, ok := ctx.Deadline()
	s.hadDeadline <- ok
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestQueryTimeoutBoundsStoreCalls(t *testing.T) {
	h := newHarness(t)
	stall := stallingStore{Store: h.store, hadDeadline: make(chan bool, 1)}
	r := New(Deps{
		Store:        stall,
		Sender:       h.sender,
		Clock:        func() time.Time { return botNow },
		QueryTimeout: 20 * time.Millisecond,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Handle(context.Background(), telegram.Update{ChatID: userID, UserID: userID, Text: "/orders", Command: "orders"})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not bounded by the query timeout")
	}
	assert.True(t, <-stall.hadDeadline)
	assert.Equal(t, msgFetchFailed, h.sender.last(t, userID).Text)
}

func TestStartRegistrationFailureStillWelcomes(t *testing.T) {
	h := newHarness(t)
	h.router.deps.Store = failingStore{Store: h.store, registerErr: errors.New("db down")}

	h.command(userID, "/start")

	assert.Contains(t, h.sender.last(t, userID).Text, "Hello, Ann!")
}

func TestHelp(t *testing.T) {
	h := newHarness(t)
	h.command(userID, "/help")

	msg := h.sender.last(t, userID)
	assert.True(t, msg.Markdown)
	assert.Contains(t, msg.Text, "In Transit IR-TKM")
	assert.Contains(t, msg.Text, `/status "In Transit CHN-IR"`)
	assert.Contains(t, msg.Text, "next 7 days")
}

func TestOrders(t *testing.T) {
	h := newHarness(t)

	h.command(userID, "/orders")
	assert.Equal(t, msgNoActiveOrders, h.sender.last(t, userID).Text)

	h.seed(t)
	h.command(userID, "/orders")
	msg := h.sender.last(t, userID)

	assert.True(t, msg.Markdown)
	assert.True(t, strings.HasPrefix(msg.Text, "📋 *Active orders:*"))
	assert.Contains(t, msg.Text, "*Order #MLS-001*")
	assert.Contains(t, msg.Text, "📍 Status: In Transit CHN-IR")
	assert.NotContains(t, msg.Text, "Status: New")
	assert.Contains(t, msg.Text, `*Order #MLS\_002*`)
	assert.Contains(t, msg.Text, "⚖️ Weight: 24000.5 kg")
	assert.Contains(t, msg.Text, "🕐 Last update: 2026-10-17")
	assert.NotContains(t, msg.Text, "MLS-003")
	assert.NotContains(t, msg.Text, "MLS-006")
	assert.Equal(t, 1, strings.Count(msg.Text, "MLS-001"))
}

func TestOrdersSplitsLongReplies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		_, err := h.store.InsertEvent(ctx, orders.Event{
			OrderID:   "bulk-" + strings.Repeat("x", i%5) + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Type:      orders.EventOrderCreated,
			CreatedAt: botNow.Add(-time.Duration(i) * time.Minute),
			Data:      orders.EventData{Client: "Bulk Client", Status: "New", Containers: 1, Weight: 1000},
		})
		require.NoError(t, err)
	}

	h.command(userID, "/orders")
	msgs := h.sender.to(userID)
	require.Greater(t, len(msgs), 1)
	for _, m := range msgs {
		assert.LessOrEqual(t, len([]rune(m.Text)), telegram.MaxMessageLength)
	}
}

func TestCompleted(t *testing.T) {
	h := newHarness(t)

	h.command(userID, "/completed")
	assert.Equal(t, "✅ No completed orders in the last 30 days", h.sender.last(t, userID).Text)

	h.seed(t)
	h.command(userID, "/completed")
	msg := h.sender.last(t, userID)
	assert.Contains(t, msg.Text, "✅ *Completed orders (30 days):*")
	assert.Contains(t, msg.Text, `1. *#MLS\_002* - Turkmen Cotton`)
	assert.Contains(t, msg.Text, "📅 Completed: 2026-10-17")
	assert.Contains(t, msg.Text, "📦 Containers: 3")
	assert.NotContains(t, msg.Text, "MLS-006")
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	t.Run("no args shows usage", func(t *testing.T) {
		h.command(userID, "/status")
		msg := h.sender.last(t, userID)
		assert.False(t, msg.Markdown)
		assert.Contains(t, msg.Text, "Usage: /status [status]")
		assert.Contains(t, msg.Text, "• Cancelled")
	})

	t.Run("quoted substring match", func(t *testing.T) {
		h.command(userID, `/status "in transit"`)
		msg := h.sender.last(t, userID)
		assert.Contains(t, msg.Text, "🔍 *Orders with status 'in transit':*")
		assert.Contains(t, msg.Text, "*#MLS-001*")
		assert.Contains(t, msg.Text, "📦 2 container(s)")
		assert.NotContains(t, msg.Text, "MLS\\_002")
	})

	t.Run("unbalanced quotes", func(t *testing.T) {
		h.command(userID, `/status "Completed`)
		msg := h.sender.last(t, userID)
		assert.Contains(t, msg.Text, `MLS\_002`)
	})

	t.Run("no matches", func(t *testing.T) {
		h.command(userID, "/status Cancelled")
		assert.Equal(t, "📭 No orders with status 'Cancelled' found", h.sender.last(t, userID).Text)
	})
}

func TestStatusLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		_, err := h.store.InsertEvent(ctx, orders.Event{
			OrderID:   "o" + string(rune('a'+i)),
			Type:      orders.EventStatusChanged,
			CreatedAt: botNow.Add(-time.Duration(i) * time.Hour),
			Data:      orders.EventData{Status: "In Progress CHN"},
		})
		require.NoError(t, err)
	}

	h.command(userID, "/status progress chn")
	msg := h.sender.last(t, userID)
	assert.Contains(t, msg.Text, "\n20. *#")
	assert.NotContains(t, msg.Text, "\n21. *#")
	assert.True(t, strings.HasSuffix(msg.Text, "... and 5 more orders"))
}

func TestMissingPhotos(t *testing.T) {
	h := newHarness(t)

	h.command(userID, "/missing_photos")
	assert.Equal(t, msgAllPhotos, h.sender.last(t, userID).Text)

	h.seed(t)
	h.command(userID, "/missing_photos")
	msg := h.sender.last(t, userID)
	assert.Contains(t, msg.Text, "📷 *Orders without loading photos:*")
	assert.Contains(t, msg.Text, "1. *#MLS-004*")
	assert.Contains(t, msg.Text, "📍 In Progress IR")
	assert.NotContains(t, msg.Text, "MLS-001")
}

func TestUpcoming(t *testing.T) {
	h := newHarness(t)

	h.command(userID, "/upcoming")
	assert.Equal(t, "📅 No upcoming events in the next 7 days", h.sender.last(t, userID).Text)

	h.seed(t)
	h.command(userID, "/upcoming")
	msg := h.sender.last(t, userID)
	assert.Contains(t, msg.Text, "📅 *Upcoming events (7 days):*")
	assert.Contains(t, msg.Text, "📌 *Customs clearance*")
	assert.Contains(t, msg.Text, "Order: #MLS-005")
	assert.Contains(t, msg.Text, "Date: 2026-10-21")
	assert.Contains(t, msg.Text, "Description: Documents due at Sarakhs")
	assert.NotContains(t, msg.Text, "Past deadline")
	assert.NotContains(t, msg.Text, "Far deadline")
}

func TestUpcomingWindowEdges(t *testing.T) {
	h := newHarness(t)
	today := botNow.Truncate(24 * time.Hour)
	deadlines := []struct {
		title string
		at    time.Time
	}{
		{"Edge end", today.Add(7 * 24 * time.Hour)},
		{"Yesterday", today.Add(-time.Minute)},
		{"Earlier today", today.Add(30 * time.Minute)},
		{"Midweek", today.Add(3 * 24 * time.Hour)},
		{"After window", today.Add(7*24*time.Hour + time.Minute)},
	}
	for _, d := range deadlines {
		_, err := h.store.InsertEvent(context.Background(), orders.Event{
			OrderID: "9", OrderNumber: "MLS-009", Type: orders.EventUpcomingDeadline,
			CreatedAt: d.at, Data: orders.EventData{Title: d.title},
		})
		require.NoError(t, err)
	}

	h.command(userID, "/upcoming")
	text := h.sender.last(t, userID).Text

	assert.NotContains(t, text, "Yesterday")
	assert.NotContains(t, text, "After window")
	first := strings.Index(text, "Earlier today")
	mid := strings.Index(text, "Midweek")
	last := strings.Index(text, "Edge end")
	require.True(t, first >= 0 && mid >= 0 && last >= 0, text)
	assert.Less(t, first, mid)
	assert.Less(t, mid, last)
}

func TestDatesFollowLocation(t *testing.T) {
	h := newHarness(t)
	zone := time.FixedZone("TMT", 5*3600)
	for title, at := range map[string]time.Time{
		"Local morning":   time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC),  // 19th 01:00 local
		"Local yesterday": time.Date(2026, 10, 18, 18, 30, 0, 0, time.UTC), // 18th 23:30 local
	} {
		_, err := h.store.InsertEvent(context.Background(), orders.Event{
			OrderID: "7", OrderNumber: "MLS-007", Type: orders.EventUpcomingDeadline,
			CreatedAt: at, Data: orders.EventData{Title: title},
		})
		require.NoError(t, err)
	}

	evening := time.Date(2026, 10, 19, 21, 0, 0, 0, time.UTC) // 20th 02:00 local
	clock := botNow
	r := New(Deps{
		Store:    h.store,
		Sender:   h.sender,
		Reports:  h.reports,
		Clock:    func() time.Time { return clock },
		Location: zone,
	})
	send := func(text, cmd string) {
		r.Handle(context.Background(), telegram.Update{ChatID: userID, UserID: userID, Text: text, Command: cmd})
	}

	send("/upcoming", "upcoming")
	text := h.sender.last(t, userID).Text
	assert.Contains(t, text, "Local morning")
	assert.Contains(t, text, "Date: 2026-10-19")
	assert.NotContains(t, text, "Local yesterday")

	clock = evening
	send("/report", "report")
	require.Len(t, h.sender.docs, 1)
	assert.Equal(t, "Report_20.10.2026.pdf", h.sender.docs[0].Filename)
}

func TestReport(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	h.command(userID, "/report")

	assert.Equal(t, msgReportBuilding, h.sender.to(userID)[0].Text)
	require.Len(t, h.sender.docs, 1)
	doc := h.sender.docs[0]
	assert.Equal(t, userID, doc.ChatID)
	assert.Equal(t, "Report_19.10.2026.pdf", doc.Filename)
	assert.Equal(t, msgReportCaption, doc.Caption)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF")))

	entries, err := os.ReadDir(h.reports.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "report file should be removed after upload")

	n, err := testutil.GatherAndCount(h.metrics.Registry(), "cargobot_reports_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReportFailure(t *testing.T) {
	h := newHarness(t)
	h.reports.Dir = filepath.Join(t.TempDir(), "missing")

	h.command(userID, "/report")

	assert.Equal(t, msgReportFailed, h.sender.last(t, userID).Text)
	assert.Empty(t, h.sender.docs)
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	h.command(adminID, "/start")
	h.command(userID, "/start")

	h.command(userID, "/stats")
	assert.Equal(t, msgAdminsOnly, h.sender.last(t, userID).Text)

	h.command(adminID, "/stats")
	msg := h.sender.last(t, adminID)
	assert.True(t, msg.Markdown)
	assert.Contains(t, msg.Text, "• Total users: 2")
	assert.Contains(t, msg.Text, "• Admins: 1")
	assert.Contains(t, msg.Text, "• Total events: 9")
	assert.Contains(t, msg.Text, "• Last 7 days: 8")
	assert.Contains(t, msg.Text, "• UPCOMING\\_DEADLINE: 3\n• STATUS\\_CHANGED: 2\n")
}

func TestNotify(t *testing.T) {
	h := newHarness(t)

	t.Run("forbidden for users", func(t *testing.T) {
		h.command(userID, "/notify hi")
		assert.Equal(t, msgAdminsOnly, h.sender.last(t, userID).Text)
	})

	t.Run("usage without text", func(t *testing.T) {
		h.command(adminID, "/notify")
		assert.Equal(t, msgNotifyUsage, h.sender.last(t, adminID).Text)
	})

	t.Run("no users", func(t *testing.T) {
		h.command(adminID, "/notify hi")
		assert.Equal(t, msgNoUsers, h.sender.last(t, adminID).Text)
	})

	t.Run("broadcast", func(t *testing.T) {
		h.command(adminID, "/start")
		h.command(userID, "/start")
		h.command(3003, "/start")
		h.sender.failFor = map[int64]bool{3003: true}

		h.command(adminID, "/notify Port closed\ntomorrow")

		got := h.sender.to(userID)
		assert.Equal(t, broadcastHeader+"Port closed\ntomorrow", got[len(got)-1].Text)
		assert.True(t, got[len(got)-1].Markdown)
		assert.Equal(t, "📨 Notification sent:\n✅ Delivered: 2\n❌ Failed: 1", h.sender.last(t, adminID).Text)
	})
}

func TestSetAdmins(t *testing.T) {
	h := newHarness(t)
	assert.True(t, h.router.IsAdmin(adminID))

	h.router.SetAdmins([]int64{userID})
	assert.False(t, h.router.IsAdmin(adminID))

	h.command(userID, "/stats")
	assert.NotEqual(t, msgAdminsOnly, h.sender.last(t, userID).Text)
	h.command(adminID, "/stats")
	assert.Equal(t, msgAdminsOnly, h.sender.last(t, adminID).Text)
}

func TestUnknownAndPlainText(t *testing.T) {
	h := newHarness(t)

	h.command(userID, "/frobnicate")
	assert.Equal(t, msgUnknownCommand, h.sender.last(t, userID).Text)

	h.router.Handle(context.Background(), telegram.Update{ChatID: userID, UserID: userID, Text: "hello"})
	assert.Len(t, h.sender.to(userID), 1)
}

func TestHandlerErrorReplies(t *testing.T) {
	h := newHarness(t)
	h.router.deps.Store = failingStore{Store: h.store, listErr: errors.New("timeout")}

	h.command(userID, "/orders")
	assert.Equal(t, msgFetchFailed, h.sender.last(t, userID).Text)
	h.command(userID, "/status New")
	assert.Equal(t, msgFilterFailed, h.sender.last(t, userID).Text)

	assert.Equal(t, 2, commandCount(t, h.metrics))
}

func TestStatusArgs(t *testing.T) {
	tests := map[string]string{
		`"In Transit CHN-IR"`: "In Transit CHN-IR",
		`In Transit CHN-IR`:   "In Transit CHN-IR",
		`'Completed'`:         "Completed",
		`"In Progress`:        "In Progress",
		`  New  `:             "New",
		``:                    "",
		`In\ Transit`:         "In Transit",
	}
	for in, want := range tests {
		assert.Equal(t, want, statusArgs(in), "input %q", in)
	}
}

func TestAdminActionsAreAudited(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logging.Install(zap.New(core), logging.Config{})
	t.Cleanup(func() { logging.Install(zap.NewNop(), logging.Config{}) })

	h := newHarness(t)
	h.command(userID, "/start")
	h.command(userID, "/stats")
	h.command(adminID, "/stats")

	audit := logs.FilterField(zap.String("category", "audit")).All()
	require.Len(t, audit, 3)
	assert.Equal(t, "user_registered", audit[0].ContextMap()["event"])
	assert.Equal(t, "admin_denied", audit[1].ContextMap()["event"])
	assert.Equal(t, userID, audit[1].ContextMap()["user_id"])
	assert.Equal(t, "admin_command", audit[2].ContextMap()["event"])
	assert.Equal(t, true, audit[2].ContextMap()["success"])
}
