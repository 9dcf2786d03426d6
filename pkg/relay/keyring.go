package relay

import (
	"strings"
	"sync"
)

// Keyring rotates over comma-separated credential lists. The literal
// configured field value is the rotation identity, so every request sharing
// the same key string shares one cursor for the process lifetime.
type Keyring struct {
	mu   sync.Mutex
	next map[string]int
}

func NewKeyring() *Keyring {
	return &Keyring{next: map[string]int{}}
}

// Select picks the credential to use for a request. ok=false means no key is
// configured and the caller's own Authorization header passes through.
// For comma-separated fields the read-select-advance step is atomic with
// respect to concurrent selections of the same field value.
func (k *Keyring) Select(field string, chat bool) (string, bool) {
	field = strings.TrimSpace(field)
	if field == "" {
		return "", false
	}
	var cred string
	if !strings.Contains(field, ",") {
		cred = field
	} else {
		entries := splitKeyField(field)
		if len(entries) == 0 {
			return "", false
		}
		k.mu.Lock()
		idx := k.next[field] % len(entries)
		cred = entries[idx]
		k.next[field] = (idx + 1) % len(entries)
		k.mu.Unlock()
	}
	if !chat {
		// Some upstream adapters register the same key twice, once with a
		// "-ca" suffix that only their chat endpoint accepts verbatim.
		cred = strings.TrimSuffix(cred, "-ca")
	}
	return cred, true
}

func splitKeyField(field string) []string {
	parts := strings.Split(field, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
