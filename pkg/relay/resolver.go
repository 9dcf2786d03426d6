package relay

import (
	"fmt"
	"strings"

	"github.com/llmrelay/llmrelay/pkg/config"
)

const (
	chatPathSuffix   = "/chat/completions"
	defaultChatPath  = "/v1/chat/completions"
	modelPlaceholder = "{model_name}"
)

// ErrMissingRoute reports a (tenant, model) pair with no resolvable upstream.
type ErrMissingRoute struct {
	Model string
	Chat  bool
}

func (e *ErrMissingRoute) Error() string {
	if e.Chat {
		return fmt.Sprintf("no chat-url or domain configured for model %q", e.Model)
	}
	return fmt.Sprintf("no domain configured for model %q", e.Model)
}

// IsChatPath reports whether the request path addresses a chat-completions
// endpoint.
func IsChatPath(path string) bool {
	return strings.HasSuffix(path, chatPathSuffix)
}

// ResolveTarget turns a merged RouteConfig into the upstream URL for a
// request. In passthrough mode an exact redirect match replaces the path;
// otherwise the original path plus query string is appended verbatim.
func ResolveTarget(rc config.RouteConfig, chat bool, path, rawQuery, model string) (string, error) {
	var target string
	if chat {
		switch {
		case rc.ChatURL != "":
			target = rc.ChatURL
		case rc.URL != "":
			// Legacy entries configured the chat endpoint under "url".
			target = rc.URL
		case rc.Domain != "":
			target = strings.TrimRight(rc.Domain, "/") + defaultChatPath
		default:
			return "", &ErrMissingRoute{Model: model, Chat: true}
		}
	} else {
		if rc.Domain == "" {
			return "", &ErrMissingRoute{Model: model}
		}
		if repl, ok := rc.Redirect[path]; ok {
			target = strings.TrimRight(rc.Domain, "/") + repl
		} else {
			target = strings.TrimRight(rc.Domain, "/") + path
			if rawQuery != "" {
				target += "?" + rawQuery
			}
		}
	}
	return strings.ReplaceAll(target, modelPlaceholder, model), nil
}
