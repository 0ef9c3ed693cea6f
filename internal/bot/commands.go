package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/logger"
	"telemt-admin/internal/service"
	"telemt-admin/internal/servicectl"
)

// handleCommand reports false for commands it does not know, which then fall
// through to the menu handler.
func (h *Handler) handleCommand(ctx context.Context, a Action, cmd string, args []string) (bool, error) {
	switch cmd {
	case "start":
		return true, h.cmdStart(ctx, a)
	case "link":
		return true, h.sendUserLink(ctx, a)
	case "help":
		return true, h.sendWithMenu(ctx, a, helpText)
	}

	adminCommands := map[string]func(context.Context, Action, []string) error{
		"approve": h.cmdApprove,
		"reject":  h.cmdReject,
		"create":  h.cmdCreate,
		"delete":  h.cmdDelete,
		"service": h.cmdService,
		"token":   h.cmdToken,
	}
	fn, ok := adminCommands[cmd]
	if !ok {
		return false, nil
	}
	if !h.isAdmin(a.SenderID) {
		logger.FromContext(ctx).Warn("Admin command from non-admin ignored", "sender_id", a.SenderID, "command", cmd)
		return true, nil
	}
	logger.FromContext(ctx).Info("Admin command", "admin_id", a.SenderID, "command", cmd, "args", args)
	return true, fn(ctx, a, args)
}

func (h *Handler) cmdStart(ctx context.Context, a Action) error {
	logger.FromContext(ctx).Info("Received /start", "sender_id", a.SenderID, "handle", orDash(a.Handle))

	if h.isAdmin(a.SenderID) {
		return h.sendWithMenu(ctx, a, msgAdminWelcome)
	}

	existing, err := h.registration.Lookup(ctx, a.SenderID)
	if err != nil {
		return err
	}
	if existing != nil {
		switch existing.Status {
		case domain.RequestStatusApproved:
			if existing.Secret != nil {
				h.waiting.Unmark(a.SenderID)
				return h.sendLinkForSecret(ctx, a, *existing.Secret)
			}
		case domain.RequestStatusPending:
			h.waiting.Unmark(a.SenderID)
			return h.sendWithMenu(ctx, a, msgAlreadyPending)
		case domain.RequestStatusRejected:
			h.waiting.Unmark(a.SenderID)
			return h.sendWithMenu(ctx, a, msgRejected)
		}
	}

	if token, ok := ParseStartToken(a.Text); ok {
		return h.redeem(ctx, a, token)
	}

	h.waiting.Mark(a.SenderID)
	return h.sendWithMenu(ctx, a, msgAskToken)
}

// redeem applies an invite token for the sender and answers with the outcome.
func (h *Handler) redeem(ctx context.Context, a Action, token string) error {
	res, err := h.access.Redeem(ctx, a.identity(), token)
	if err != nil {
		msg, known := tokenErrorMessage(err)
		if !known {
			return err
		}
		if !service.KeepsWaiting(err) {
			h.waiting.Unmark(a.SenderID)
		}
		return h.sendWithMenu(ctx, a, msg)
	}
	h.waiting.Unmark(a.SenderID)

	if res.Grant != nil {
		if err := h.sendGrantToUser(ctx, a.ChatID, res.Grant); err != nil {
			return err
		}
		audit := autoApproveAudit(a.identity(), res.Token)
		if res.Grant.Stale() {
			audit += "\n\n" + msgStaleWarning
		}
		h.NotifyAdmins(ctx, audit, nil)
		return nil
	}

	switch res.Register.Outcome {
	case domain.RegisterApproved:
		if res.LinkErr != nil {
			logger.FromContext(ctx).Error("Failed to build link", "sender_id", a.SenderID, "error", res.LinkErr)
			return h.sendWithMenu(ctx, a, msgLinkUnavailable)
		}
		return h.sendWithMenu(ctx, a, linkMessage(res.Link))
	case domain.RegisterRejected:
		return h.sendWithMenu(ctx, a, msgRejected)
	case domain.RegisterRevoked:
		return h.sendWithMenu(ctx, a, msgAccessRevoked)
	case domain.RegisterAlreadyPending:
		return h.sendWithMenu(ctx, a, msgAlreadyPending)
	case domain.RegisterNewPending:
		if err := h.sendWithMenu(ctx, a, msgRequestSent); err != nil {
			return err
		}
		req := res.Register.Request
		h.NotifyAdmins(ctx, requestCard("📋 New request", req), approveRejectButtons(req.ID))
		return nil
	}
	return fmt.Errorf("unexpected register outcome %s", res.Register.Outcome)
}

func tokenErrorMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrTokenNotFound):
		return msgTokenNotFound, true
	case errors.Is(err, domain.ErrTokenRevoked):
		return msgTokenRevoked, true
	case errors.Is(err, domain.ErrTokenExpired):
		return msgTokenExpired, true
	case errors.Is(err, domain.ErrTokenUsageLimit):
		return msgTokenUsageLimit, true
	}
	return "", false
}

func (h *Handler) sendUserLink(ctx context.Context, a Action) error {
	user, err := h.registration.ActiveUser(ctx, a.SenderID)
	if err != nil {
		return err
	}
	if user == nil || user.Secret == nil {
		return h.sendWithMenu(ctx, a, msgNoAccess)
	}
	return h.sendLinkForSecret(ctx, a, *user.Secret)
}

func (h *Handler) sendLinkForSecret(ctx context.Context, a Action, secret string) error {
	link, err := h.provisioning.LinkForSecret(secret)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to build link", "sender_id", a.SenderID, "error", err)
		return h.sendWithMenu(ctx, a, msgLinkUnavailable)
	}
	return h.sendWithMenu(ctx, a, linkMessage(link))
}

func (h *Handler) sendGrantToUser(ctx context.Context, chatID int64, g *service.GrantResult) error {
	text := "Access approved! Your connection link:\n\n" + g.Link
	if g.LinkErr != nil {
		text = msgLinkUnavailable
	}
	return h.out.Send(ctx, Reply{ChatID: chatID, Text: text, Menu: userMenu()})
}

// grantSummary is the admin-facing line about a committed grant.
func grantSummary(head string, g *service.GrantResult) string {
	var b strings.Builder
	b.WriteString(head)
	if g.LinkErr != nil {
		fmt.Fprintf(&b, "\nLink unavailable: %v", g.LinkErr)
	} else {
		b.WriteString("\n" + g.Link)
	}
	if g.Stale() {
		b.WriteString("\n\n" + msgStaleWarning)
	}
	return b.String()
}

func (h *Handler) cmdApprove(ctx context.Context, a Action, args []string) error {
	id, ok := parseIDArg(args)
	if !ok {
		return h.send(ctx, a.ChatID, usageApprove)
	}
	grant, err := h.provisioning.ApproveRequest(ctx, id)
	if err != nil {
		return err
	}
	if grant == nil {
		return h.send(ctx, a.ChatID, msgNotPending)
	}
	h.waiting.Unmark(grant.ExternalID)
	if err := h.send(ctx, a.ChatID, grantSummary("Approved. The link was sent to the user.", grant)); err != nil {
		return err
	}
	return h.sendGrantToUser(ctx, grant.ExternalID, grant)
}

func (h *Handler) cmdReject(ctx context.Context, a Action, args []string) error {
	id, ok := parseIDArg(args)
	if !ok {
		return h.send(ctx, a.ChatID, usageReject)
	}
	req, err := h.registration.Reject(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return h.send(ctx, a.ChatID, msgNotPending)
	}
	h.waiting.Unmark(req.ExternalID)
	if err := h.send(ctx, a.ChatID, "Request rejected."); err != nil {
		return err
	}
	return h.send(ctx, req.ExternalID, msgRejected)
}

func (h *Handler) cmdCreate(ctx context.Context, a Action, args []string) error {
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	target, ok := ParseCreateTarget(arg)
	if !ok {
		return h.send(ctx, a.ChatID, usageCreate)
	}

	externalID := target.ID
	if target.Handle != "" {
		id, found, err := h.registration.ResolveHandle(ctx, target.Handle)
		if err != nil {
			return err
		}
		if !found {
			return h.send(ctx, a.ChatID, fmt.Sprintf(
				"User @%s is not in the database.\nThey must send /start to the bot at least once.", target.Handle))
		}
		externalID = id
	}

	grant, err := h.provisioning.GrantDirect(ctx, service.Identity{ExternalID: externalID})
	if err != nil {
		return err
	}
	h.waiting.Unmark(externalID)
	return h.out.Send(ctx, Reply{
		ChatID: a.ChatID,
		Text:   grantSummary(fmt.Sprintf("User %s created.\nLink:", grant.ProxyUsername), grant),
		Inline: deleteUserButton(externalID),
	})
}

func (h *Handler) revokeText(ctx context.Context, externalID int64) (string, error) {
	res, err := h.provisioning.Revoke(ctx, externalID)
	if err != nil {
		return "", err
	}
	h.waiting.Unmark(externalID)
	if !res.Found() {
		return fmt.Sprintf("User %s not found", res.ProxyUsername), nil
	}
	text := fmt.Sprintf("User %s deleted", res.ProxyUsername)
	if res.Stale() {
		text += "\n\n" + msgStaleWarning
	}
	return text, nil
}

func (h *Handler) cmdDelete(ctx context.Context, a Action, args []string) error {
	id, ok := parseIDArg(args)
	if !ok {
		return h.send(ctx, a.ChatID, usageDelete)
	}
	text, err := h.revokeText(ctx, id)
	if err != nil {
		return err
	}
	return h.out.Send(ctx, Reply{ChatID: a.ChatID, Text: text})
}

func (h *Handler) cmdService(ctx context.Context, a Action, args []string) error {
	action := domain.ServiceStatus
	if len(args) > 0 {
		parsed, ok := domain.ParseServiceAction(args[0])
		if !ok {
			return h.send(ctx, a.ChatID, usageService)
		}
		action = parsed
	}
	result := h.controller.Do(ctx, action)
	return h.send(ctx, a.ChatID, servicectl.FormatResult(h.controller.Unit(), action, result))
}

func (h *Handler) cmdToken(ctx context.Context, a Action, args []string) error {
	if len(args) == 0 {
		return h.send(ctx, a.ChatID, usageToken)
	}
	switch args[0] {
	case "create":
		return h.tokenCreate(ctx, a, args[1:])
	case "list":
		return h.tokenList(ctx, a)
	case "revoke":
		if len(args) < 2 {
			return h.send(ctx, a.ChatID, usageTokenRevoke)
		}
		revoked, err := h.invites.Revoke(ctx, args[1])
		if err != nil {
			return err
		}
		if !revoked {
			return h.send(ctx, a.ChatID, "Token not found or already revoked.")
		}
		return h.send(ctx, a.ChatID, fmt.Sprintf("Token %s revoked.", args[1]))
	}
	return h.send(ctx, a.ChatID, usageToken)
}

func (h *Handler) tokenCreate(ctx context.Context, a Action, args []string) error {
	parsed, err := parseTokenCreateArgs(args)
	if errors.Is(err, errBadMaxUses) {
		return h.send(ctx, a.ChatID, "--max-uses must be an integer >= 1.")
	}
	if err != nil {
		return h.send(ctx, a.ChatID, usageTokenCreate)
	}

	days := h.settings.DefaultTokenDays
	if parsed.Days != nil {
		days = *parsed.Days
	}
	creator := a.SenderID
	tok, err := h.invites.CreateToken(ctx, service.CreateTokenParams{
		Days:        days,
		AutoApprove: parsed.AutoApprove,
		MaxUsage:    parsed.MaxUses,
		CreatedBy:   &creator,
	})
	switch {
	case errors.Is(err, service.ErrInvalidDays):
		return h.send(ctx, a.ChatID, "Token lifetime must be at least 1 day.")
	case errors.Is(err, service.ErrTokenTooLong):
		return h.send(ctx, a.ChatID, fmt.Sprintf("Tokens cannot be valid for more than %d days.", h.settings.MaxTokenDays))
	case errors.Is(err, service.ErrInvalidMaxUsage):
		return h.send(ctx, a.ChatID, "--max-uses must be an integer >= 1.")
	case errors.Is(err, service.ErrAutoApproveDisabled):
		return h.send(ctx, a.ChatID, "Auto-approve tokens are disabled in the configuration.")
	case err != nil:
		return err
	}
	return h.out.Send(ctx, Reply{ChatID: a.ChatID, Text: tokenCreatedHTML(tok, h.settings.BotUsername), HTML: true})
}

func (h *Handler) tokenList(ctx context.Context, a Action) error {
	tokens, err := h.invites.ListActive(ctx, 50)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return h.send(ctx, a.ChatID, msgNoActiveTokens)
	}
	lines := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		lines = append(lines, tokenLine(tok))
	}
	return h.send(ctx, a.ChatID, "Active tokens:\n\n"+strings.Join(lines, "\n"))
}
