package auth

import "context"

type ctxKey string

const principalKey ctxKey = "principal"

// ContextWithPrincipal stores the authenticated caller's Principal in ctx.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the Principal stored by ContextWithPrincipal,
// if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}
