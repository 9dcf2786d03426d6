package relay

import (
	"encoding/json"
	"mime"
	"net/url"
	"strings"

	"github.com/llmrelay/llmrelay/pkg/config"
)

type payloadKind int

const (
	payloadRaw payloadKind = iota
	payloadJSON
	payloadText
	payloadForm
)

// Payload is the typed view of an inbound body, classified by Content-Type.
// Exactly one of the value fields is populated, matching kind.
type Payload struct {
	kind payloadKind
	JSON any
	Text string
	Form url.Values
	Raw  []byte
}

// ClassifyBody inspects the declared content type and produces a typed
// payload. Unparseable JSON and unrecognized content types degrade to raw
// bytes; no business transformation happens here.
func ClassifyBody(contentType string, body []byte) Payload {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	switch {
	case strings.HasPrefix(mediaType, "application/json"):
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return Payload{kind: payloadRaw, Raw: body}
		}
		return Payload{kind: payloadJSON, JSON: v}
	case strings.HasPrefix(mediaType, "text/"):
		return Payload{kind: payloadText, Text: string(body)}
	case mediaType == "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return Payload{kind: payloadRaw, Raw: body}
		}
		return Payload{kind: payloadForm, Form: form}
	default:
		// multipart/*, application/octet-stream, missing or unknown types
		// all forward untouched.
		return Payload{kind: payloadRaw, Raw: body}
	}
}

// Model extracts the model identifier from a JSON payload, falling back to
// the wildcard for non-JSON bodies or bodies without a model field.
func (p Payload) Model() string {
	if p.kind == payloadJSON {
		if m, ok := p.JSON.(map[string]any); ok {
			if s, ok := m["model"].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return config.Wildcard
}

// Stream reports whether the payload asks for a streamed response. Only a
// JSON body with a truthy stream field streams; everything else buffers.
func (p Payload) Stream() bool {
	if p.kind != payloadJSON {
		return false
	}
	m, ok := p.JSON.(map[string]any)
	if !ok {
		return false
	}
	v, ok := m["stream"]
	if !ok {
		return false
	}
	return truthy(v)
}

// truthy mirrors loose client behavior: clients send the stream flag as a
// bool, a number or a string, and anything except false, null, 0, "" and
// empty composites counts as set.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// Encode produces the outbound body: raw payloads forward verbatim, every
// other kind is serialized as JSON.
func (p Payload) Encode() ([]byte, error) {
	switch p.kind {
	case payloadRaw:
		return p.Raw, nil
	case payloadJSON:
		return json.Marshal(p.JSON)
	case payloadText:
		return json.Marshal(p.Text)
	case payloadForm:
		return json.Marshal(p.Form)
	default:
		return json.Marshal(nil)
	}
}
