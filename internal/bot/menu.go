package bot

import (
	"context"
	"fmt"
	"strings"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/logger"
)

const pendingPanelLimit = 10

// handleMenu handles plain text: a token from a waiting user first, then the
// reply keyboard buttons.
func (h *Handler) handleMenu(ctx context.Context, a Action, text string) error {
	admin := h.isAdmin(a.SenderID)

	if !admin && !strings.HasPrefix(text, "/") && h.waiting.IsWaiting(a.SenderID) {
		token, ok := normalizeToken(text)
		if !ok {
			return h.sendWithMenu(ctx, a, msgAskToken)
		}
		logger.FromContext(ctx).Info("Processing invite token from waiting user", "sender_id", a.SenderID)
		return h.redeem(ctx, a, token)
	}

	switch {
	case text == btnUserLink:
		return h.sendUserLink(ctx, a)
	case text == btnUserGuide:
		return h.sendWithMenu(ctx, a, guideText)
	case text == btnUserSupport:
		return h.sendWithMenu(ctx, a, h.supportText())
	case admin && text == btnAdminPending:
		return h.showPending(ctx, a.ChatID)
	case admin && text == btnAdminUsers:
		return h.showUsersPage(ctx, a.ChatID, 1, 0)
	case admin && text == btnAdminService:
		return h.showService(ctx, a.ChatID)
	case admin && text == btnAdminStats:
		return h.showStats(ctx, a.ChatID)
	case admin && text == btnAdminCreate:
		return h.sendWithMenu(ctx, a, createHint)
	case admin && text == btnAdminHelp:
		return h.sendWithMenu(ctx, a, helpText)
	case admin:
		return h.sendWithMenu(ctx, a, msgAdminNotUnderst)
	}
	return h.sendWithMenu(ctx, a, msgNotUnderstood)
}

func (h *Handler) supportText() string {
	if h.settings.SupportContact == "" {
		return "Contact an administrator for help."
	}
	return "Support: " + h.settings.SupportContact
}

func (h *Handler) showPending(ctx context.Context, chatID int64) error {
	pending, err := h.registration.ListPending(ctx, pendingPanelLimit)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return h.out.Send(ctx, Reply{ChatID: chatID, Text: msgNoPending, Menu: adminMenu()})
	}
	for i := range pending {
		req := &pending[i]
		card := requestCard(fmt.Sprintf("📋 Request #%d", req.ID), req)
		if err := h.out.Send(ctx, Reply{ChatID: chatID, Text: card, Inline: approveRejectButtons(req.ID)}); err != nil {
			return err
		}
	}
	return nil
}

// showUsersPage renders one page of active users. A non-zero editMessageID
// replaces that message instead of sending a new one.
func (h *Handler) showUsersPage(ctx context.Context, chatID int64, page, editMessageID int) error {
	res, err := h.registration.ActiveUsersPage(ctx, page, h.settings.UsersPageSize)
	if err != nil {
		return err
	}
	if res.Total == 0 {
		if editMessageID != 0 {
			return h.out.Send(ctx, Reply{ChatID: chatID, Text: msgNoActiveUsers, Inline: clearKeyboard(), EditMessageID: editMessageID})
		}
		return h.out.Send(ctx, Reply{ChatID: chatID, Text: msgNoActiveUsers, Menu: adminMenu()})
	}

	titles := make([]userTitle, 0, len(res.Users))
	for i := range res.Users {
		u := &res.Users[i]
		titles = append(titles, userTitle{ExternalID: u.ExternalID, Title: shortTitle(u.Label())})
	}
	text := fmt.Sprintf("👥 Active users: %d\nPage %d of %d\n\nPick a user:", res.Total, res.Page, res.TotalPages)
	return h.out.Send(ctx, Reply{
		ChatID:        chatID,
		Text:          text,
		Inline:        usersPageKeyboard(titles, res.Page, res.TotalPages),
		EditMessageID: editMessageID,
	})
}

func (h *Handler) showService(ctx context.Context, chatID int64) error {
	result := h.controller.Do(ctx, domain.ServiceStatus)
	return h.out.Send(ctx, Reply{
		ChatID: chatID,
		Text:   servicePanelText(h.controller.Unit(), domain.ServiceStatus, result),
		Inline: serviceControlButtons(),
	})
}

func (h *Handler) showStats(ctx context.Context, chatID int64) error {
	stats, err := h.registration.Stats(ctx)
	if err != nil {
		return err
	}
	return h.out.Send(ctx, Reply{ChatID: chatID, Text: statsText(stats), Menu: adminMenu()})
}
