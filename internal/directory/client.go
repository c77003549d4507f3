// Package directory consumes the platform's user-directory service:
// existence checks and display profile fields for conversation lists.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nyirinkindi/eshuri-messaging/internal/domain"
)

// Profile is the subset of directory fields the messaging UI needs.
type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"profile_picture,omitempty"`
}

// Directory resolves user ids to profiles. GetUser returns
// domain.ErrNotFound for unknown ids.
type Directory interface {
	GetUser(ctx context.Context, userID string) (*Profile, error)
}

// Client is the HTTP directory client with retry on transient failures.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    32,
		IdleConnTimeout: 90 * time.Second,
	}
	return &Client{
		base: baseURL,
		http: &http.Client{Transport: tr, Timeout: timeout},
	}
}

func (c *Client) GetUser(ctx context.Context, userID string) (*Profile, error) {
	url := fmt.Sprintf("%s/v1/users/%s", c.base, userID)

	var profile *Profile
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: user %s", domain.ErrNotFound, userID))
		case resp.StatusCode >= 500:
			return fmt.Errorf("directory returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("directory returned %d", resp.StatusCode))
		}

		var p Profile
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return backoff.Permanent(err)
		}
		profile = &p
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return profile, nil
}
