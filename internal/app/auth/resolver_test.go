package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/agent2rss/agent2rss/internal/app/domain/channel"
	"github.com/agent2rss/agent2rss/internal/app/storage/memory"
)

func newResolver(t *testing.T, adminToken string) *Resolver {
	t.Helper()
	store := memory.New()
	for _, ch := range []channel.Channel{
		{ID: "tech", Name: "Tech", Token: "ch_abc"},
		{ID: "news", Name: "News", Token: "ch_xyz"},
	} {
		if _, err := store.CreateChannel(context.Background(), ch); err != nil {
			t.Fatalf("seed channel %s: %v", ch.ID, err)
		}
	}
	return NewResolver(adminToken, store)
}

func TestVerifyAdminToken(t *testing.T) {
	r := newResolver(t, "admin-secret")

	grant, err := r.Verify(context.Background(), "admin-secret", "tech")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !grant.Admin() {
		t.Fatalf("expected super admin, got %+v", grant)
	}

	// The admin token works with no channel at all.
	grant, err = r.Verify(context.Background(), "admin-secret", "")
	if err != nil {
		t.Fatalf("verify without channel: %v", err)
	}
	if grant.Role != RoleSuperAdmin {
		t.Fatalf("expected super admin, got %+v", grant)
	}
}

func TestVerifyChannelToken(t *testing.T) {
	r := newResolver(t, "admin-secret")

	grant, err := r.Verify(context.Background(), "ch_abc", "tech")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if grant.Role != RoleChannelOwner || grant.ChannelID != "tech" {
		t.Fatalf("unexpected grant: %+v", grant)
	}
}

func TestVerifyWrongChannelToken(t *testing.T) {
	r := newResolver(t, "admin-secret")

	// A valid token for another channel is still invalid here.
	_, err := r.Verify(context.Background(), "ch_xyz", "tech")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}

func TestVerifyMissingCredential(t *testing.T) {
	r := newResolver(t, "admin-secret")

	_, err := r.Verify(context.Background(), "", "tech")
	if !errors.Is(err, ErrCredentialMissing) {
		t.Fatalf("expected credential missing, got %v", err)
	}
}

func TestVerifyEmptyAdminTokenNeverMatches(t *testing.T) {
	r := newResolver(t, "")

	// With no admin token configured, an empty credential must not be
	// promoted to admin.
	_, err := r.Verify(context.Background(), "", "")
	if !errors.Is(err, ErrCredentialMissing) {
		t.Fatalf("expected credential missing, got %v", err)
	}
}

func TestVerifyChannelRequired(t *testing.T) {
	r := newResolver(t, "admin-secret")

	_, err := r.Verify(context.Background(), "ch_abc", "")
	if !errors.Is(err, ErrChannelRequired) {
		t.Fatalf("expected channel required, got %v", err)
	}
}

func TestVerifyUnknownChannel(t *testing.T) {
	r := newResolver(t, "admin-secret")

	_, err := r.Verify(context.Background(), "ch_abc", "ghost")
	if !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("expected channel not found, got %v", err)
	}
}
