package logging

import (
	"go.uber.org/zap"
)

// AuditEventType identifies a security-relevant action.
type AuditEventType string

const (
	AuditUserRegistered AuditEventType = "user_registered"
	AuditAdminCommand   AuditEventType = "admin_command"
	AuditAdminDenied    AuditEventType = "admin_denied"
	AuditBroadcast      AuditEventType = "broadcast"
	AuditAdminsReloaded AuditEventType = "admins_reloaded"
)

// CategoryAudit tags audit entries. It cannot be disabled.
const CategoryAudit Category = "audit"

// AuditEvent is one audit entry.
type AuditEvent struct {
	EventType AuditEventType
	UserID    int64  // acting Telegram user, 0 for the system
	Action    string // command or operation name
	Target    string
	Success   bool
	Error     string
	Fields    map[string]interface{}
}

// AuditLogger writes audit events to the installed core.
type AuditLogger struct {
	base *zap.Logger
}

// Audit returns an audit logger bound to the current core.
func Audit() *AuditLogger {
	return &AuditLogger{base: Base().With(zap.String("category", string(CategoryAudit)))}
}

// Log writes an audit event at info level, or warn when it failed.
func (a *AuditLogger) Log(event AuditEvent) {
	fields := make([]zap.Field, 0, 6+len(event.Fields))
	fields = append(fields,
		zap.String("event", string(event.EventType)),
		zap.Int64("user_id", event.UserID),
		zap.Bool("success", event.Success),
	)
	if event.Action != "" {
		fields = append(fields, zap.String("action", event.Action))
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for k, v := range event.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	if event.Success {
		a.base.Info("audit", fields...)
	} else {
		a.base.Warn("audit", fields...)
	}
}

// UserRegistered records a first /start.
func (a *AuditLogger) UserRegistered(userID int64, username string, isAdmin bool) {
	a.Log(AuditEvent{
		EventType: AuditUserRegistered,
		UserID:    userID,
		Target:    username,
		Success:   true,
		Fields:    map[string]interface{}{"is_admin": isAdmin},
	})
}

// AdminCommand records an admin command and whether it completed.
func (a *AuditLogger) AdminCommand(userID int64, command string, err error) {
	e := AuditEvent{EventType: AuditAdminCommand, UserID: userID, Action: command, Success: err == nil}
	if err != nil {
		e.Error = err.Error()
	}
	a.Log(e)
}

// AdminDenied records a non-admin attempting an admin command.
func (a *AuditLogger) AdminDenied(userID int64, command string) {
	a.Log(AuditEvent{EventType: AuditAdminDenied, UserID: userID, Action: command})
}

// Broadcast records the outcome of an admin broadcast.
func (a *AuditLogger) Broadcast(userID int64, broadcastID string, recipients, sent, failed int) {
	a.Log(AuditEvent{
		EventType: AuditBroadcast,
		UserID:    userID,
		Target:    broadcastID,
		Success:   failed == 0,
		Fields: map[string]interface{}{
			"recipients": recipients,
			"sent":       sent,
			"failed":     failed,
		},
	})
}

// AdminsReloaded records a config reload that replaced the admin list.
func (a *AuditLogger) AdminsReloaded(count int) {
	a.Log(AuditEvent{
		EventType: AuditAdminsReloaded,
		Success:   true,
		Fields:    map[string]interface{}{"admins": count},
	})
}
