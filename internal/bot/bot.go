// Package bot routes chat actions to the access services and renders replies.
// It knows nothing about the Telegram wire format.
package bot

import (
	"context"
	"slices"
	"strings"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/logger"
	"telemt-admin/internal/service"
)

// Action is one inbound message or button press.
type Action struct {
	ID           string // correlation id
	SenderID     int64
	ChatID       int64
	Handle       *string
	DisplayName  *string
	Text         string
	CallbackID   string
	CallbackData string
	MessageID    int // message carrying the pressed button
}

func (a Action) IsCallback() bool {
	return a.CallbackID != ""
}

func (a Action) identity() service.Identity {
	return service.Identity{ExternalID: a.SenderID, Handle: a.Handle, DisplayName: a.DisplayName}
}

type Button struct {
	Text string
	Data string
}

type Photo struct {
	Name    string
	Bytes   []byte
	Caption string
}

// Reply is one outbound message. A non-nil empty Inline with EditMessageID
// clears the keyboard of the edited message.
type Reply struct {
	ChatID        int64
	Text          string
	HTML          bool
	Inline        [][]Button
	Menu          [][]string
	EditMessageID int
	Photo         *Photo
}

type Responder interface {
	Send(ctx context.Context, r Reply) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// ServiceController runs service-manager actions for the admin panel.
type ServiceController interface {
	Do(ctx context.Context, action domain.ServiceAction) domain.ServiceResult
	Unit() string
}

type Settings struct {
	AdminIDs         []int64
	UsersPageSize    int
	DefaultTokenDays int64
	MaxTokenDays     int64
	SupportContact   string
	BotUsername      string
}

type Handler struct {
	settings     Settings
	registration service.RegistrationService
	invites      service.InviteService
	provisioning service.ProvisioningService
	access       service.AccessService
	waiting      *service.WaitingSet
	controller   ServiceController
	out          Responder
}

type Deps struct {
	Registration service.RegistrationService
	Invites      service.InviteService
	Provisioning service.ProvisioningService
	Access       service.AccessService
	Waiting      *service.WaitingSet
	Controller   ServiceController
	Responder    Responder
}

func NewHandler(settings Settings, deps Deps) *Handler {
	if settings.UsersPageSize < 1 {
		settings.UsersPageSize = 10
	}
	if deps.Waiting == nil {
		deps.Waiting = service.NewWaitingSet()
	}
	return &Handler{
		settings:     settings,
		registration: deps.Registration,
		invites:      deps.Invites,
		provisioning: deps.Provisioning,
		access:       deps.Access,
		waiting:      deps.Waiting,
		controller:   deps.Controller,
		out:          deps.Responder,
	}
}

func (h *Handler) isAdmin(id int64) bool {
	return slices.Contains(h.settings.AdminIDs, id)
}

// Handle processes one action. Failures are logged and answered with a
// generic message; nothing is returned to the transport.
func (h *Handler) Handle(ctx context.Context, a Action) {
	if a.ID != "" {
		ctx = logger.WithCorrelation(ctx, a.ID)
	}
	log := logger.FromContext(ctx)

	var err error
	if a.IsCallback() {
		err = h.handleCallback(ctx, a)
	} else {
		err = h.handleMessage(ctx, a)
	}
	if err == nil {
		return
	}

	log.Error("Failed to handle action", "sender_id", a.SenderID, "callback", a.CallbackData, "error", err)
	if a.IsCallback() {
		_ = h.out.AnswerCallback(ctx, a.CallbackID, msgInternalError, true)
		return
	}
	_ = h.out.Send(ctx, Reply{ChatID: a.ChatID, Text: msgInternalError})
}

func (h *Handler) handleMessage(ctx context.Context, a Action) error {
	text := strings.TrimSpace(a.Text)
	if cmd, args, ok := parseCommand(text); ok {
		if handled, err := h.handleCommand(ctx, a, cmd, args); handled {
			return err
		}
	}
	return h.handleMenu(ctx, a, text)
}

func (h *Handler) send(ctx context.Context, chatID int64, text string) error {
	return h.out.Send(ctx, Reply{ChatID: chatID, Text: text})
}

func (h *Handler) sendWithMenu(ctx context.Context, a Action, text string) error {
	return h.out.Send(ctx, Reply{ChatID: a.ChatID, Text: text, Menu: h.menuFor(a.SenderID)})
}

func (h *Handler) menuFor(id int64) [][]string {
	if h.isAdmin(id) {
		return adminMenu()
	}
	return userMenu()
}

// NotifyAdmins sends text to every admin, logging individual failures.
func (h *Handler) NotifyAdmins(ctx context.Context, text string, inline [][]Button) {
	for _, adminID := range h.settings.AdminIDs {
		if err := h.out.Send(ctx, Reply{ChatID: adminID, Text: text, Inline: inline}); err != nil {
			logger.FromContext(ctx).Warn("Failed to notify admin", "admin_id", adminID, "error", err)
		}
	}
}
