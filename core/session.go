package core

import (
	"context"
	"time"
)

type (
	// Session maps an opaque token to the authenticated username.
	Session struct {
		Token     string
		Username  string
		CreatedAt time.Time
	}

	// SessionStore is the persistence seam for issued sessions. Lookup must
	// be a pure mapping with no side effects; Delete of an absent token is
	// not an error, and a deleted token never validates again.
	SessionStore interface {
		Put(ctx context.Context, session Session) error
		Validate(ctx context.Context, token string) (string, error)
		Delete(ctx context.Context, token string) error
	}
)
