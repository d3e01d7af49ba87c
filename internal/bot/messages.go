package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cargobot/internal/orders"
	"cargobot/internal/telegram"
)

const (
	msgUnknownCommand = "❓ Unknown command. Use /help for the list of commands."
	msgAdminsOnly     = "⛔ This command is for administrators only"
	msgFetchFailed    = "❌ Failed to fetch data"
	msgFilterFailed   = "❌ Failed to filter orders"
	msgReportFailed   = "❌ Failed to create the report"
	msgStatsFailed    = "❌ Failed to collect statistics"
	msgNotifyFailed   = "❌ Failed to send notifications"

	msgNoActiveOrders  = "📭 No active orders found"
	msgAllPhotos       = "✅ All orders have loading photos!"
	msgReportBuilding  = "📊 Building the report... This takes a few seconds."
	msgReportCaption   = "📄 Your report is ready!"
	msgNotifyUsage     = "ℹ️ Usage: /notify [notification text]"
	msgNoUsers         = "📭 No registered users"
	broadcastHeader    = "🔔 *Notification from the administrator:*\n\n"
	statusResultsLimit = 20
	missingPhotosLimit = 15
	statsTopTypes      = 10
)

const commandList = `/orders - Active orders
/completed - Completed orders (last %[1]d days)
/status \[status] - Orders by status
/missing\_photos - Orders without loading photos
/upcoming - Upcoming events
/report - Get a PDF report
/help - Help`

func welcomeText(firstName, company string, lookbackDays int) string {
	return fmt.Sprintf(`👋 Hello, %s!

I track logistics orders for %s.

📋 *Available commands:*
%s

🔔 The bot notifies you about key events:
• New orders
• Status changes
• Container arrivals and departures
• Upcoming deadlines

Administrators also have:
/stats - Statistics
/notify - Send a notification to everyone`,
		telegram.EscapeMarkdown(firstName),
		telegram.EscapeMarkdown(company),
		fmt.Sprintf(commandList, lookbackDays),
	)
}

func helpText(lookbackDays, upcomingDays int) string {
	return fmt.Sprintf(`📖 *Command help:*

*Main commands:*
/orders - Show active orders
/completed - Completed orders for %d days
/status \[status] - Filter by status
    Statuses: %s
/missing\_photos - Orders without loading photos
/upcoming - Events for the next %d days
/report - Create a PDF report

*Examples:*
/status "In Transit CHN-IR"
/status Completed

*For administrators:*
/stats - System statistics
/notify \[text] - Send a notification to all users`,
		lookbackDays, strings.Join(orders.Statuses, ", "), upcomingDays)
}

func statusUsage() string {
	var b strings.Builder
	b.WriteString("ℹ️ Usage: /status [status]\n")
	b.WriteString("Example: /status \"In Transit CHN-IR\"\n\n")
	b.WriteString("Available statuses:\n")
	for i, s := range orders.Statuses {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("• " + s)
	}
	return b.String()
}

func orEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// md escapes a dynamic value, substituting fallback when empty.
func md(s, fallback string) string {
	return telegram.EscapeMarkdown(orEmpty(s, fallback))
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func days(d time.Duration) int {
	n := int(d.Hours() / 24)
	if n < 1 {
		return 1
	}
	return n
}

func activeOrderEntry(idx int, e orders.Event) string {
	return fmt.Sprintf(`
%d. *Order #%s*
   👤 Client: %s
   📦 Containers: %d
   ⚖️ Weight: %s kg
   📍 Status: %s
   🕐 Last update: %s
`, idx, md(e.Number(), ""), md(e.Data.Client, "Not specified"), e.Data.Containers,
		formatWeight(e.Data.Weight), md(e.Data.Status, "Unknown"), formatDate(e.CreatedAt))
}

func completedEntry(idx int, e orders.Event) string {
	return fmt.Sprintf(`
%d. *#%s* - %s
   📅 Completed: %s
   📦 Containers: %d
   ⚖️ Weight: %s kg
`, idx, md(e.Number(), ""), md(e.Data.Client, "Client"), formatDate(e.CreatedAt),
		e.Data.Containers, formatWeight(e.Data.Weight))
}

func statusEntry(idx int, e orders.Event) string {
	return fmt.Sprintf(`
%d. *#%s*
   👤 %s
   📦 %d container(s)
   ⚖️ %s kg
   🕐 %s
`, idx, md(e.Number(), ""), md(e.Data.Client, "Client"), e.Data.Containers,
		formatWeight(e.Data.Weight), formatDate(e.CreatedAt))
}

func missingPhotoEntry(idx int, e orders.Event) string {
	return fmt.Sprintf(`
%d. *#%s*
   👤 %s
   📍 %s
   🕐 %s
`, idx, md(e.Number(), ""), md(e.Data.Client, "Client"), md(e.Data.Status, "Status"), formatDate(e.CreatedAt))
}

func upcomingEntry(e orders.Event) string {
	return fmt.Sprintf(`
📌 *%s*
   Order: #%s
   Date: %s
   Description: %s
`, md(e.Data.Title, "Event"), md(e.Number(), ""), formatDate(e.CreatedAt), md(e.Data.Description, "No description"))
}
