package errors

import (
	"context"
	"fmt"
	"time"

	"obscore/internal/alerting"
	"obscore/internal/correlation"
)

// SecurityEventType names a security-relevant occurrence. Only members of
// the fixed set below are logged; unrecognized types are ignored.
type SecurityEventType string

const (
	EventFailedLogin              SecurityEventType = "failed_login"
	EventLoginSuccessAfterFailure SecurityEventType = "login_success_after_failures"
	EventPermissionDenied         SecurityEventType = "permission_denied"
	EventInvalidToken             SecurityEventType = "invalid_token"
	EventRateLimitExceeded        SecurityEventType = "rate_limit_exceeded"
	EventCSRFFailure              SecurityEventType = "csrf_failure"
	EventSessionHijacked          SecurityEventType = "session_hijacked"
	EventSQLInjectionAttempt      SecurityEventType = "sql_injection_attempt"
	EventPathTraversalAttempt     SecurityEventType = "path_traversal_attempt"
)

// securityEvents maps each recognized event type to its human-readable
// description.
var securityEvents = map[SecurityEventType]string{
	EventFailedLogin:              "Authentication attempt failed",
	EventLoginSuccessAfterFailure: "Login succeeded after repeated failures",
	EventPermissionDenied:         "Access to a protected resource was denied",
	EventInvalidToken:             "An invalid or expired token was presented",
	EventRateLimitExceeded:        "A client exceeded its rate limit",
	EventCSRFFailure:              "A request failed CSRF verification",
	EventSessionHijacked:          "A session showed signs of hijacking",
	EventSQLInjectionAttempt:      "Input resembling SQL injection was detected",
	EventPathTraversalAttempt:     "Input resembling path traversal was detected",
}

// alertingSecurityEvents is the subset of event types that additionally
// trigger an alert. This allowlist is an independent policy from the
// fingerprint cooldown used for exceptions.
var alertingSecurityEvents = map[SecurityEventType]bool{
	EventSessionHijacked:      true,
	EventSQLInjectionAttempt:  true,
	EventPathTraversalAttempt: true,
	EventCSRFFailure:          true,
}

// highRiskActivities is the subset of suspicious-activity types that
// trigger an alert.
var highRiskActivities = map[string]bool{
	"privilege_escalation": true,
	"account_takeover":     true,
	"data_scraping":        true,
	"mass_deletion":        true,
}

// LogSecurityEvent records a security event at warn with ambient user/IP
// context. Details pass through the logger's redaction like any other
// metadata. Unrecognized event types are ignored.
func (h *Handler) LogSecurityEvent(ctx context.Context, event SecurityEventType, details map[string]any) {
	defer func() {
		if r := recover(); r != nil && h.logger != nil {
			h.logger.Error(ctx, "security event logging failure", map[string]any{
				"panic": fmt.Sprint(r),
			})
		}
	}()

	description, ok := securityEvents[event]
	if !ok {
		return
	}

	meta := make(map[string]any, len(details)+3)
	for k, v := range details {
		meta[k] = v
	}
	meta["event_type"] = string(event)
	meta["description"] = description
	if f, ok := correlation.FieldsFromContext(ctx); ok && f.RemoteIP != "" {
		meta["remote_ip"] = f.RemoteIP
	}

	h.logger.Warn(ctx, "security event", meta)

	if alertingSecurityEvents[event] && h.alertingEnabled() {
		h.dispatcher.Dispatch(ctx, h.securityAlert(ctx, string(event), description))
	}
}

// LogSuspiciousActivity records anomalous user behavior at warn. High-risk
// activity types additionally trigger an alert.
func (h *Handler) LogSuspiciousActivity(ctx context.Context, userID, activityType string, details map[string]any) {
	defer func() {
		if r := recover(); r != nil && h.logger != nil {
			h.logger.Error(ctx, "suspicious activity logging failure", map[string]any{
				"panic": fmt.Sprint(r),
			})
		}
	}()

	meta := make(map[string]any, len(details)+2)
	for k, v := range details {
		meta[k] = v
	}
	meta["suspicious_user_id"] = userID
	meta["activity_type"] = activityType
	if f, ok := correlation.FieldsFromContext(ctx); ok {
		if f.RequestPath != "" {
			meta["request_path"] = f.RequestPath
		}
		if f.RemoteIP != "" {
			meta["remote_ip"] = f.RemoteIP
		}
	}

	h.logger.Warn(ctx, "suspicious activity", meta)

	if highRiskActivities[activityType] && h.alertingEnabled() {
		h.dispatcher.Dispatch(ctx, h.securityAlert(ctx, activityType, "High-risk user activity: "+activityType))
	}
}

func (h *Handler) securityAlert(ctx context.Context, kind, description string) alerting.Message {
	fields := map[string]string{
		"kind":        kind,
		"description": description,
	}
	if id, ok := correlation.FromContext(ctx); ok {
		fields["correlation_id"] = id
	}
	if f, ok := correlation.FieldsFromContext(ctx); ok {
		if f.UserID != "" {
			fields["user_id"] = f.UserID
		}
		if f.RemoteIP != "" {
			fields["remote_ip"] = f.RemoteIP
		}
	}
	return alerting.Message{
		Title:       "security: " + kind,
		Severity:    string(SeverityHigh),
		Fields:      fields,
		Environment: h.env,
		Timestamp:   time.Now().UTC(),
	}
}
