package ctxkeys

import (
	"context"

	"github.com/filedrop/filedrop/internal/model"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey string

const (
	userKey      contextKey = "user"
	sessionIDKey contextKey = "session_id"
)

func User(ctx context.Context) *model.User {
	user, _ := ctx.Value(userKey).(*model.User)
	return user
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}
