package directory

import (
	"context"
	"fmt"

	"github.com/nyirinkindi/eshuri-messaging/internal/domain"
)

// Static is a fixed in-memory Directory keyed by user id. Used by tests and
// local development.
type Static map[string]*Profile

func (s Static) GetUser(_ context.Context, userID string) (*Profile, error) {
	p, ok := s[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	out := *p
	return &out, nil
}
