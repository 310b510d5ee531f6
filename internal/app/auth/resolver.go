// Package auth decides whether a bearer credential may act on a channel.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/agent2rss/agent2rss/internal/app/storage"
)

// Role identifies the authority a grant carries.
type Role string

const (
	// RoleSuperAdmin is authorized against every channel.
	RoleSuperAdmin Role = "super_admin"
	// RoleChannelOwner is authorized only for the channel whose token
	// matched.
	RoleChannelOwner Role = "channel_owner"
)

// Grant is a successful authorization decision.
type Grant struct {
	Role      Role
	ChannelID string
}

// Admin reports whether the grant carries super-admin authority.
func (g Grant) Admin() bool { return g.Role == RoleSuperAdmin }

// Structured failure reasons. Each names the check that failed so the
// caller can produce an actionable message; none carries a token value.
var (
	ErrCredentialMissing = errors.New("credential missing")
	ErrChannelRequired   = errors.New("channel required")
	ErrChannelNotFound   = errors.New("channel not found")
	ErrInvalidCredential = errors.New("invalid credential")
)

// Resolver evaluates the two-tier token model: a global admin token and
// per-channel tokens read from the channel store. It holds no state
// beyond its configuration and performs read-only lookups.
type Resolver struct {
	adminToken string
	channels   storage.ChannelStore
}

// NewResolver builds a resolver. An empty adminToken disables the
// super-admin tier entirely; it never matches an absent credential.
func NewResolver(adminToken string, channels storage.ChannelStore) *Resolver {
	return &Resolver{adminToken: adminToken, channels: channels}
}

// Verify runs the ordered decision chain for a credential and an
// optional target channel.
func (r *Resolver) Verify(ctx context.Context, credential, channelID string) (Grant, error) {
	if r.adminToken != "" && tokensEqual(credential, r.adminToken) {
		return Grant{Role: RoleSuperAdmin}, nil
	}
	if credential == "" {
		return Grant{}, ErrCredentialMissing
	}
	if channelID == "" {
		return Grant{}, ErrChannelRequired
	}

	ch, err := r.channels.GetChannel(ctx, channelID)
	if err != nil {
		if storage.IsNotFound(err) {
			return Grant{}, fmt.Errorf("channel %q: %w", channelID, ErrChannelNotFound)
		}
		return Grant{}, err
	}

	if tokensEqual(credential, ch.Token) {
		return Grant{Role: RoleChannelOwner, ChannelID: channelID}, nil
	}
	return Grant{}, ErrInvalidCredential
}

func tokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
