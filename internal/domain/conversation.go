package domain

import (
	"fmt"
	"strings"
)

// convDelimiter never appears in a valid participant id (hex object ids and
// uuids only), which keeps the derived id injective over unordered pairs.
const convDelimiter = ":"

// ConversationID derives the canonical conversation id for two participants.
// It is symmetric (order of a and b does not matter) and collision-free:
// distinct pairs always produce distinct ids.
func ConversationID(a, b string) (string, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return "", fmt.Errorf("%w: participant id is empty", ErrValidation)
	}
	if strings.Contains(a, convDelimiter) || strings.Contains(b, convDelimiter) {
		return "", fmt.Errorf("%w: participant id contains %q", ErrValidation, convDelimiter)
	}
	if a == b {
		return "", fmt.Errorf("%w: conversation requires two distinct participants", ErrValidation)
	}
	if a < b {
		return a + convDelimiter + b, nil
	}
	return b + convDelimiter + a, nil
}
