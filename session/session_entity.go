package session

import (
	"context"
	"time"

	"beacon/authority"

	"github.com/fundwit/go-commons/types"
)

type Identity struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Nickname string   `json:"nickname"`
}

// Session is the cached security context of one login token. When an
// impersonation episode is running, Identity carries the impersonated user
// and RealIdentity keeps the impersonator for audit.
type Session struct {
	Token        string                `json:"token"`
	Identity     Identity              `json:"identity"`
	RealIdentity *Identity             `json:"realIdentity,omitempty"`
	Perms        authority.Permissions `json:"perms"`

	SigningTime time.Time `json:"-"`

	Context context.Context `json:"-"`
}

func (s *Session) Clone() Session {
	c := *s
	c.Perms = append(authority.Permissions{}, s.Perms...)
	if s.RealIdentity != nil {
		real := *s.RealIdentity
		c.RealIdentity = &real
	}
	return c
}

// AuditUserID is the id trail entries should carry: the real actor, not
// the substituted identity.
func (s *Session) AuditUserID() types.ID {
	if s.RealIdentity != nil {
		return s.RealIdentity.ID
	}
	return s.Identity.ID
}

func (s *Session) IsImpersonating() bool {
	return s.RealIdentity != nil
}
