package bot

import (
	"context"
	"strings"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/logger"
	"telemt-admin/internal/servicectl"
)

type callbackFunc func(ctx context.Context, a Action, data string) error

func (h *Handler) callbackRoutes() []struct {
	prefix string
	fn     callbackFunc
} {
	return []struct {
		prefix string
		fn     callbackFunc
	}{
		{"users_page:", h.cbUsersPage},
		{"user_open:", h.cbUserOpen},
		{"user_view:", h.cbUserView},
		{"user_ban:", h.cbUserBan},
		{"approve:", h.cbApprove},
		{"reject:", h.cbReject},
		{"delete_user:", h.cbDeleteUser},
		{"service:", h.cbService},
	}
}

// handleCallback dispatches button presses. Every callback is admin-only.
func (h *Handler) handleCallback(ctx context.Context, a Action) error {
	for _, route := range h.callbackRoutes() {
		if !strings.HasPrefix(a.CallbackData, route.prefix) {
			continue
		}
		if !h.isAdmin(a.SenderID) {
			logger.FromContext(ctx).Warn("Callback from non-admin rejected", "sender_id", a.SenderID, "data", a.CallbackData)
			return h.out.AnswerCallback(ctx, a.CallbackID, msgNoPermission, true)
		}
		return route.fn(ctx, a, a.CallbackData)
	}
	logger.FromContext(ctx).Debug("Unknown callback ignored", "data", a.CallbackData)
	return h.out.AnswerCallback(ctx, a.CallbackID, "", false)
}

func (h *Handler) editInPlace(ctx context.Context, a Action, text string, inline [][]Button) error {
	if a.MessageID == 0 {
		return nil
	}
	return h.out.Send(ctx, Reply{ChatID: a.ChatID, Text: text, Inline: inline, EditMessageID: a.MessageID})
}

func (h *Handler) cbApprove(ctx context.Context, a Action, data string) error {
	id, err := parseCallbackID(data, "approve:")
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Approve callback received", "admin_id", a.SenderID, "request_id", id)

	grant, err := h.provisioning.ApproveRequest(ctx, id)
	if err != nil {
		return err
	}
	if grant == nil {
		return h.out.AnswerCallback(ctx, a.CallbackID, msgNotPending, false)
	}
	h.waiting.Unmark(grant.ExternalID)
	if err := h.out.AnswerCallback(ctx, a.CallbackID, "Approved", false); err != nil {
		return err
	}
	text := "✅ Request approved"
	if grant.Stale() {
		text += "\n\n" + msgStaleWarning
	}
	if err := h.editInPlace(ctx, a, text, clearKeyboard()); err != nil {
		return err
	}
	return h.sendGrantToUser(ctx, grant.ExternalID, grant)
}

func (h *Handler) cbReject(ctx context.Context, a Action, data string) error {
	id, err := parseCallbackID(data, "reject:")
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Reject callback received", "admin_id", a.SenderID, "request_id", id)

	req, err := h.registration.Reject(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return h.out.AnswerCallback(ctx, a.CallbackID, msgNotPending, false)
	}
	h.waiting.Unmark(req.ExternalID)
	if err := h.out.AnswerCallback(ctx, a.CallbackID, "Rejected", false); err != nil {
		return err
	}
	if err := h.editInPlace(ctx, a, "❌ Request rejected", clearKeyboard()); err != nil {
		return err
	}
	return h.send(ctx, req.ExternalID, msgRejected)
}

func (h *Handler) cbUsersPage(ctx context.Context, a Action, data string) error {
	page, err := parseCallbackPage(data, "users_page:")
	if err != nil {
		return err
	}
	if err := h.out.AnswerCallback(ctx, a.CallbackID, "", false); err != nil {
		return err
	}
	if a.MessageID == 0 {
		return nil
	}
	return h.showUsersPage(ctx, a.ChatID, page, a.MessageID)
}

func (h *Handler) cbUserOpen(ctx context.Context, a Action, data string) error {
	externalID, page, err := parseCallbackUserAction(data, "user_open:")
	if err != nil {
		return err
	}
	user, err := h.registration.ActiveUser(ctx, externalID)
	if err != nil {
		return err
	}
	if user == nil {
		return h.out.AnswerCallback(ctx, a.CallbackID, msgUserInactive, true)
	}
	if err := h.out.AnswerCallback(ctx, a.CallbackID, "User card", false); err != nil {
		return err
	}
	return h.editInPlace(ctx, a, userCardText(user, page), userCardKeyboard(externalID, page))
}

func (h *Handler) cbUserView(ctx context.Context, a Action, data string) error {
	externalID, _, err := parseCallbackUserAction(data, "user_view:")
	if err != nil {
		return err
	}
	user, err := h.registration.ActiveUser(ctx, externalID)
	if err != nil {
		return err
	}
	if user == nil {
		return h.out.AnswerCallback(ctx, a.CallbackID, msgUserInactive, true)
	}
	if err := h.out.AnswerCallback(ctx, a.CallbackID, "Sending link and QR", false); err != nil {
		return err
	}

	link, err := h.provisioning.LinkForSecret(*user.Secret)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to build link", "external_id", externalID, "error", err)
		return h.send(ctx, a.ChatID, msgLinkUnavailable)
	}
	png, err := qrPNG(link)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to render QR code", "external_id", externalID, "error", err)
		return h.send(ctx, a.ChatID, link)
	}
	return h.out.Send(ctx, Reply{
		ChatID: a.ChatID,
		Photo: &Photo{
			Name:    domain.ProxyUsername(externalID) + ".png",
			Bytes:   png,
			Caption: user.Label() + "\n\n" + link,
		},
	})
}

func (h *Handler) cbUserBan(ctx context.Context, a Action, data string) error {
	externalID, page, err := parseCallbackUserAction(data, "user_ban:")
	if err != nil {
		return err
	}
	text, err := h.revokeText(ctx, externalID)
	if err != nil {
		return err
	}
	if err := h.out.AnswerCallback(ctx, a.CallbackID, firstLine(text), false); err != nil {
		return err
	}
	if err := h.send(ctx, a.ChatID, text); err != nil {
		return err
	}
	if a.MessageID == 0 {
		return nil
	}
	return h.showUsersPage(ctx, a.ChatID, page, a.MessageID)
}

func (h *Handler) cbDeleteUser(ctx context.Context, a Action, data string) error {
	externalID, err := parseCallbackID(data, "delete_user:")
	if err != nil {
		return err
	}
	text, err := h.revokeText(ctx, externalID)
	if err != nil {
		return err
	}
	if err := h.out.AnswerCallback(ctx, a.CallbackID, firstLine(text), false); err != nil {
		return err
	}
	if a.MessageID != 0 {
		if err := h.out.Send(ctx, Reply{ChatID: a.ChatID, Inline: clearKeyboard(), EditMessageID: a.MessageID}); err != nil {
			return err
		}
	}
	return h.out.Send(ctx, Reply{ChatID: a.ChatID, Text: text, Menu: adminMenu()})
}

func (h *Handler) cbService(ctx context.Context, a Action, data string) error {
	action, ok := domain.ParseServiceAction(strings.TrimPrefix(data, "service:"))
	// Buttons never offer start or stop.
	if !ok || action == domain.ServiceStart || action == domain.ServiceStop {
		action = domain.ServiceStatus
	}
	result := h.controller.Do(ctx, action)
	if err := h.out.AnswerCallback(ctx, a.CallbackID, "Done: "+string(action), false); err != nil {
		return err
	}
	return h.editInPlace(ctx, a, servicePanelText(h.controller.Unit(), action, result), serviceControlButtons())
}

func servicePanelText(unit string, action domain.ServiceAction, r domain.ServiceResult) string {
	return "⚙️ Service " + unit + "\n\n" + servicectl.FormatResult(unit, action, r)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
