package bot

import (
	"fmt"

	"telemt-admin/internal/domain"
)

const (
	btnUserLink    = "🔗 My link"
	btnUserGuide   = "❓ Guide"
	btnUserSupport = "🆘 Support"

	btnAdminPending = "📥 Pending requests"
	btnAdminUsers   = "👥 Users"
	btnAdminService = "⚙️ Service status"
	btnAdminStats   = "📊 Statistics"
	btnAdminCreate  = "➕ Create user"
	btnAdminHelp    = "📖 Help"
)

func userMenu() [][]string {
	return [][]string{
		{btnUserLink, btnUserGuide},
		{btnUserSupport},
	}
}

func adminMenu() [][]string {
	return [][]string{
		{btnAdminPending, btnAdminUsers},
		{btnAdminService, btnAdminStats},
		{btnAdminCreate, btnAdminHelp},
	}
}

func approveRejectButtons(requestID int64) [][]Button {
	return [][]Button{{
		{Text: "✅ Approve", Data: fmt.Sprintf("approve:%d", requestID)},
		{Text: "❌ Reject", Data: fmt.Sprintf("reject:%d", requestID)},
	}}
}

func deleteUserButton(externalID int64) [][]Button {
	return [][]Button{{
		{Text: "🗑 Delete user", Data: fmt.Sprintf("delete_user:%d", externalID)},
	}}
}

func serviceControlButtons() [][]Button {
	return [][]Button{
		{
			{Text: "🔄 Refresh", Data: "service:" + string(domain.ServiceStatus)},
			{Text: "♻️ Restart", Data: "service:" + string(domain.ServiceRestart)},
		},
		{
			{Text: "📖 Reload config", Data: "service:" + string(domain.ServiceReload)},
		},
	}
}

type userTitle struct {
	ExternalID int64
	Title      string
}

func usersPageKeyboard(users []userTitle, page, totalPages int) [][]Button {
	rows := make([][]Button, 0, len(users)+1)
	for _, u := range users {
		rows = append(rows, []Button{{Text: u.Title, Data: fmt.Sprintf("user_open:%d:%d", u.ExternalID, page)}})
	}

	var nav []Button
	if page > 1 {
		nav = append(nav, Button{Text: "⬅️ Back", Data: fmt.Sprintf("users_page:%d", page-1)})
	}
	nav = append(nav, Button{Text: fmt.Sprintf("%d/%d", page, totalPages), Data: fmt.Sprintf("users_page:%d", page)})
	if page < totalPages {
		nav = append(nav, Button{Text: "Next ➡️", Data: fmt.Sprintf("users_page:%d", page+1)})
	}
	return append(rows, nav)
}

func userCardKeyboard(externalID int64, page int) [][]Button {
	return [][]Button{
		{
			{Text: "🔗 Link + QR", Data: fmt.Sprintf("user_view:%d:%d", externalID, page)},
			{Text: "⛔ Ban", Data: fmt.Sprintf("user_ban:%d:%d", externalID, page)},
		},
		{
			{Text: "⬅️ Back to list", Data: fmt.Sprintf("users_page:%d", page)},
		},
	}
}

func clearKeyboard() [][]Button {
	return [][]Button{}
}
