package utils

import (
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// Claims extracts the verified access token, stopping with 401 when absent.
func Claims(ctx iris.Context) *AccessToken {
	tok := jwt.Get(ctx)
	if tok == nil {
		JSONError(ctx, iris.StatusUnauthorized, ErrUnauthenticated, "valid access token required")
		return nil
	}
	claims, ok := tok.(*AccessToken)
	if !ok {
		JSONError(ctx, iris.StatusUnauthorized, ErrUnauthenticated, "valid access token required")
		return nil
	}
	return claims
}

// RequireAction gates a route party on the role permission table.
func RequireAction(action Action) iris.Handler {
	return func(ctx iris.Context) {
		claims := Claims(ctx)
		if claims == nil {
			return
		}
		if !Can(claims.Role, action) {
			Forbidden(ctx, "insufficient role for this operation")
			return
		}
		ctx.Values().Set("userID", claims.ID)
		ctx.Next()
	}
}

// UserIDFromTokenMiddleware stores the caller's user id in the request values.
func UserIDFromTokenMiddleware(ctx iris.Context) {
	claims := Claims(ctx)
	if claims == nil {
		return
	}
	ctx.Values().Set("userID", claims.ID)
	ctx.Next()
}
