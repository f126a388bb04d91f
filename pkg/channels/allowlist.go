package channels

import "strings"

// Allowlist restricts which senders may talk to the guide. An entry
// matches the raw sender ID, the ID half of a compound "id|username"
// sender, or the username half. An empty list allows everyone.
type Allowlist []string

func (a Allowlist) Allows(senderID string) bool {
	if len(a) == 0 {
		return true
	}

	idPart, userPart := senderID, ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart, userPart = senderID[:idx], senderID[idx+1:]
	}

	for _, entry := range a {
		entry = strings.TrimSpace(strings.TrimPrefix(entry, "@"))
		if entry == "" {
			continue
		}
		if entry == senderID || entry == idPart || (userPart != "" && entry == userPart) {
			return true
		}
	}
	return false
}
