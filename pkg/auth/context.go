package auth

import "context"

type contextKey string

const UserKey contextKey = "user"

func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, UserKey, identity)
}

func IdentityFrom(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(UserKey).(string)
	return identity, ok && identity != ""
}
