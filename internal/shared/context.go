package shared

import "context"

// Session identifies the acting cashier and the drawer they operate for the
// duration of a request. It is resolved by the session middleware; handlers
// only read it.
type Session struct {
	CashierID int64
	DrawerID  int64
}

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
