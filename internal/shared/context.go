package shared

import "context"

type accountContextKey struct{}

// ContextWithAccount stores the authenticated account identifier in context.
func ContextWithAccount(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountContextKey{}, accountID)
}

// AccountFromContext returns the authenticated account identifier, if any.
func AccountFromContext(ctx context.Context) (string, bool) {
	accountID, ok := ctx.Value(accountContextKey{}).(string)
	return accountID, ok && accountID != ""
}

// ResolveAccount reconciles the account named by a request with the one
// established by authentication. An empty requested value defaults to the
// authenticated account; a different value is rejected.
func ResolveAccount(ctx context.Context, requested string) (string, error) {
	authenticated, ok := AccountFromContext(ctx)
	if !ok {
		return requested, nil
	}
	if requested == "" || requested == authenticated {
		return authenticated, nil
	}
	return "", ErrAccountMismatch
}
