package bot

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

var errUsage = errors.New("usage")

// parseCommand splits "/cmd@bot a b" into "cmd" and ["a", "b"].
func parseCommand(text string) (string, []string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	cmd := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	if cmd == "" {
		return "", nil, false
	}
	return strings.ToLower(cmd), fields[1:], true
}

// ParseStartToken extracts the deep-link payload of "/start <token>". The
// payload is URL-decoded and stripped of backticks.
func ParseStartToken(text string) (string, bool) {
	cmd, args, ok := parseCommand(strings.TrimSpace(text))
	if !ok || cmd != "start" || len(args) == 0 {
		return "", false
	}
	return normalizeToken(args[0])
}

func normalizeToken(raw string) (string, bool) {
	token := strings.TrimSpace(raw)
	if decoded, err := url.QueryUnescape(token); err == nil {
		token = decoded
	}
	token = strings.TrimSpace(strings.Trim(strings.TrimSpace(token), "`"))
	return token, token != ""
}

// CreateTarget is either a numeric id or a handle without the @.
type CreateTarget struct {
	ID     int64
	Handle string
}

func ParseCreateTarget(arg string) (CreateTarget, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return CreateTarget{}, false
	}
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return CreateTarget{ID: id}, true
	}
	handle, ok := strings.CutPrefix(arg, "@")
	handle = strings.TrimSpace(handle)
	if !ok || handle == "" {
		return CreateTarget{}, false
	}
	return CreateTarget{Handle: handle}, true
}

func parseIDArg(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	return id, err == nil
}

func parseCallbackID(data, prefix string) (int64, error) {
	rest, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, errUsage
	}
	return strconv.ParseInt(rest, 10, 64)
}

// parseCallbackUserAction reads "<prefix><id>:<page>"; page is at least 1.
func parseCallbackUserAction(data, prefix string) (int64, int, error) {
	rest, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, 0, errUsage
	}
	idPart, pagePart, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, 0, errUsage
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	page, err := strconv.Atoi(pagePart)
	if err != nil {
		return 0, 0, err
	}
	return id, max(page, 1), nil
}

func parseCallbackPage(data, prefix string) (int, error) {
	rest, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, errUsage
	}
	page, err := strconv.Atoi(rest)
	if err != nil {
		return 0, err
	}
	return max(page, 1), nil
}

type tokenCreateArgs struct {
	Days        *int64
	AutoApprove bool
	MaxUses     *int64
}

var errBadMaxUses = errors.New("--max-uses must be an integer >= 1")

// parseTokenCreateArgs reads "[days] [--auto|-a] [--max-uses N]" in any order.
func parseTokenCreateArgs(args []string) (tokenCreateArgs, error) {
	var out tokenCreateArgs
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--auto", "-a":
			out.AutoApprove = true
		case "--max-uses":
			if i+1 >= len(args) {
				return out, errUsage
			}
			n, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil || n < 1 {
				return out, errBadMaxUses
			}
			out.MaxUses = &n
			i++
		default:
			n, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil || out.Days != nil {
				return out, errUsage
			}
			out.Days = &n
		}
	}
	return out, nil
}

// StartLink is the deep link that opens the bot with token as /start payload.
func StartLink(botUsername, token string) string {
	return "https://t.me/" + strings.TrimPrefix(botUsername, "@") + "?start=" + token
}
