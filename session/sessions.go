package session

import (
	"time"

	"beacon/authority"
	"beacon/bizerror"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

const TokenExpiration = 24 * time.Hour

var TokenCache = cache.New(TokenExpiration, 1*time.Minute)

type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

const KeySecCtx = "SecCtx"
const KeySecToken = "sec_token"

var (
	// ValidateImpersonationFunc reports whether the impersonator still has a
	// live impersonation episode. Wired at startup, nil means "never".
	ValidateImpersonationFunc func(impersonatorId types.ID) bool
	// LoadPermsFunc resolves the expanded permission names of a user.
	// Wired at startup.
	LoadPermsFunc func(userId types.ID) (authority.Permissions, error)
)

func ExtractSessionFromGinContext(ctx *gin.Context) *Session {
	value, found := ctx.Get(KeySecCtx)
	if !found {
		return &Session{Context: ctx.Request.Context()}
	}
	s0, ok := value.(*Session)
	if !ok || s0.Token == "" {
		return &Session{Context: ctx.Request.Context()}
	}
	s := s0.Clone()
	s.Context = ctx.Request.Context() // trace context
	return &s
}

func SimpleAuthFilter() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie(KeySecToken)
		if err != nil {
			panic(bizerror.ErrUnauthenticated)
		}
		securityContextValue, found := TokenCache.Get(token)
		if !found {
			panic(bizerror.ErrUnauthenticated)
		}
		secCtx, ok := securityContextValue.(*Session)
		if !ok {
			panic(bizerror.ErrUnauthenticated)
		}
		secCtx = refreshImpersonation(secCtx)
		InjectSessionIntoGinContext(ctx, secCtx)
		ctx.Next()
	}
}

// refreshImpersonation restores the real identity when the backing
// impersonation session has been ended or swept in the meantime.
func refreshImpersonation(s *Session) *Session {
	if s.RealIdentity == nil {
		return s
	}
	if ValidateImpersonationFunc != nil && ValidateImpersonationFunc(s.RealIdentity.ID) {
		return s
	}
	return RestoreIdentity(s)
}

// SubstituteIdentity swaps the cached session for a copy acting as the given
// user. Cached sessions are immutable once published: identity switches
// replace the whole cache entry, so requests holding the previous pointer
// keep a consistent identity/perms pair.
func SubstituteIdentity(s *Session, impersonated Identity) error {
	perms := authority.Permissions{}
	if LoadPermsFunc != nil {
		loaded, err := LoadPermsFunc(impersonated.ID)
		if err != nil {
			return err
		}
		perms = loaded
	}
	next := s.Clone()
	real := s.Identity
	next.RealIdentity = &real
	next.Identity = impersonated
	next.Perms = perms
	TokenCache.Set(next.Token, &next, cache.DefaultExpiration)
	return nil
}

// RestoreIdentity swaps the cached substituted session for a copy reverted
// to its real identity, and returns that copy.
func RestoreIdentity(s *Session) *Session {
	if s.RealIdentity == nil {
		return s
	}
	next := s.Clone()
	next.Identity = *s.RealIdentity
	next.RealIdentity = nil
	next.Perms = authority.Permissions{}
	if LoadPermsFunc != nil {
		if perms, err := LoadPermsFunc(next.Identity.ID); err == nil {
			next.Perms = perms
		}
	}
	TokenCache.Set(next.Token, &next, cache.DefaultExpiration)
	return &next
}

// FindCachedSessionOfUser scans the token cache for the session whose real
// actor is the given user.
func FindCachedSessionOfUser(userId types.ID) *Session {
	for _, item := range TokenCache.Items() {
		s, ok := item.Object.(*Session)
		if !ok {
			continue
		}
		if s.AuditUserID() == userId {
			return s
		}
	}
	return nil
}

func InjectSessionIntoGinContext(ctx *gin.Context, secCtx *Session) {
	if secCtx != nil && secCtx.Token != "" {
		ctx.Set(KeySecCtx, secCtx)
	}
}
