package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/service"
)

const (
	msgInternalError   = "Something went wrong. Please try again later."
	msgAdminWelcome    = "Welcome to the admin panel. Use the buttons below."
	msgAskToken        = "Enter your invite token to request access."
	msgNoAccess        = "You do not have proxy access. Send /start to register."
	msgRequestSent     = "Request sent. Please wait for an administrator to approve it."
	msgAlreadyPending  = "Your request is already under review. Please wait for an administrator."
	msgRejected        = "Your registration request was rejected by an administrator."
	msgAccessRevoked   = "Your access was revoked by an administrator. Contact support if you think this is a mistake."
	msgLinkUnavailable = "Access is approved, but the link cannot be built right now. Please contact an administrator."
	msgTokenNotFound   = "Token not found. Check the code and try again."
	msgTokenRevoked    = "This token was revoked by an administrator."
	msgTokenExpired    = "This token has expired."
	msgTokenUsageLimit = "This token has reached its usage limit."
	msgNotUnderstood   = "Sorry, I did not understand. Use the menu buttons below."
	msgAdminNotUnderst = "Unknown command. Use the admin menu below."
	msgNotPending      = "Request not found or already processed."
	msgNoPending       = "No pending requests."
	msgNoActiveUsers   = "No active users."
	msgNoActiveTokens  = "No active invite tokens."
	msgNoPermission    = "Insufficient permissions"
	msgUserInactive    = "User is no longer active"
	msgStaleWarning    = "⚠️ Proxy restart failed; the running service does not have this change yet."

	usageApprove     = "Usage: /approve <request_id>"
	usageReject      = "Usage: /reject <request_id>"
	usageCreate      = "Usage: /create <telegram_user_id | @username>"
	usageDelete      = "Usage: /delete <telegram_user_id>"
	usageService     = "Usage: /service <start|stop|restart|reload|status>"
	usageToken       = "Usage:\n/token create [days] [--auto|-a] [--max-uses N]\n/token list\n/token revoke <token>"
	usageTokenCreate = "Usage: /token create [days] [--auto|-a] [--max-uses N]"
	usageTokenRevoke = "Usage: /token revoke <token>"

	createHint = "Create a user:\n/create <tg_user_id>\n/create @username\n\nThe @username form only works for users who have sent /start to the bot before."

	helpText = `Commands:
/start - register (request goes to an administrator)
/link - get your proxy link (once approved)

For administrators:
/approve <id> - approve a request
/reject <id> - reject a request
/create <tg_user_id | @username> - create a user
/delete <tg_user_id> - delete a user
/service <start|stop|restart|reload|status> - control the proxy service
/token create [days] [--auto|-a] [--max-uses N] - create an invite token
/token list - list active invite tokens
/token revoke <token> - revoke an invite token`

	guideText = `How to connect to the proxy:

1) Tap "🔗 My link" and the bot sends you a link.
2) Tap the link and Telegram offers to add the proxy.
3) Confirm.

If it does not work, contact an administrator.`
)

const dash = "—"

func orDash(s *string) string {
	if s == nil || *s == "" {
		return dash
	}
	return *s
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05 -07:00")
}

func formatDate(t time.Time) string {
	return t.Local().Format("02.01.2006")
}

func formatUsage(count int64, maxUsage *int64) string {
	if maxUsage == nil {
		return fmt.Sprintf("%d/∞", count)
	}
	return fmt.Sprintf("%d/%d", count, *maxUsage)
}

func formatCreator(id *int64) string {
	if id == nil {
		return dash
	}
	return fmt.Sprint(*id)
}

func linkMessage(link string) string {
	return "Your proxy link:\n\n" + link
}

func requestCard(title string, req *domain.RegistrationRequest) string {
	return fmt.Sprintf("%s #%d:\nUser ID: %d\nUsername: @%s\nName: %s\nTime: %s",
		title, req.ID, req.ExternalID, orDash(req.Handle), orDash(req.DisplayName), formatTimestamp(req.CreatedAt))
}

func autoApproveAudit(id service.Identity, tok *domain.InviteToken) string {
	return fmt.Sprintf("✅ Auto-approved by token\nUser ID: %d\nUsername: @%s\nName: %s\nToken: %s\nToken ID: %d\nMode: %s\nExpires: %s\nUsage: %s\nCreated by: %s",
		id.ExternalID, orDash(id.Handle), orDash(id.DisplayName),
		tok.Token, tok.ID, tok.Mode, formatTimestamp(tok.ExpiresAt),
		formatUsage(tok.UsageCount, tok.MaxUsage), formatCreator(tok.CreatedBy))
}

func tokenLine(tok domain.InviteToken) string {
	mode := "MANUAL"
	if tok.AutoApprove() {
		mode = "AUTO"
	}
	return fmt.Sprintf("• %s | %s | until %s | usage %s | creator %s | created %s",
		tok.Token, mode, formatDate(tok.ExpiresAt), formatUsage(tok.UsageCount, tok.MaxUsage),
		formatCreator(tok.CreatedBy), formatDate(tok.CreatedAt))
}

func tokenModeLabel(tok *domain.InviteToken) string {
	if tok.AutoApprove() {
		return "AUTO-APPROVE 🚀"
	}
	return "Manual ✅"
}

func tokenCreatedHTML(tok *domain.InviteToken, botUsername string) string {
	var b strings.Builder
	b.WriteString("✅ Token created:\n")
	fmt.Fprintf(&b, "Code: <code>%s</code>\n", html.EscapeString(tok.Token))
	if botUsername != "" {
		fmt.Fprintf(&b, "Link: %s\n", html.EscapeString(StartLink(botUsername, tok.Token)))
	} else {
		b.WriteString("Link: unavailable (the bot has no Telegram username).\n")
	}
	fmt.Fprintf(&b, "Mode: %s\n", tokenModeLabel(tok))
	fmt.Fprintf(&b, "Valid until: %s\n", formatDate(tok.ExpiresAt))
	if tok.MaxUsage != nil {
		fmt.Fprintf(&b, "Usage limit: %d\n", *tok.MaxUsage)
	} else {
		b.WriteString("Usage limit: unlimited\n")
	}
	fmt.Fprintf(&b, "Use <code>/token revoke %s</code> to revoke it.", html.EscapeString(tok.Token))
	return b.String()
}

func userCardText(u *domain.RegistrationRequest, page int) string {
	return fmt.Sprintf("👤 User card\n\nList page: %d\nTG ID: %d\nUsername: @%s\nName: %s\nStatus: %s\nProxy username: %s\nCreated: %s",
		page, u.ExternalID, orDash(u.Handle), orDash(u.DisplayName), u.Status, orDash(u.ProxyUsername), formatTimestamp(u.CreatedAt))
}

func statsText(s *domain.AdminStats) string {
	return fmt.Sprintf("📊 Statistics:\nTotal records: %d\nPending: %d\nActive: %d\nRejected: %d\nDeleted: %d",
		s.Total, s.Pending, s.Approved, s.Rejected, s.Deleted)
}

// shortTitle truncates to 40 runes for inline buttons.
func shortTitle(s string) string {
	r := []rune(s)
	if len(r) > 40 {
		return string(r[:37]) + "..."
	}
	return s
}
