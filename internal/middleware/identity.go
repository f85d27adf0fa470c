package middleware

// identity.go holds the context keys the authentication middleware writes
// and the typed getters handlers use to read them back.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/credit-repair-auth/internal/model"
    "github.com/iliyamo/credit-repair-auth/internal/token"
)

const (
    ctxAuth   = "auth"         // *model.AuthContext
    ctxToken  = "access_token" // token.AccessToken as presented
    ctxClaims = "claims"       // *token.AccessClaims after verification
)

// AuthFrom returns the identity attached by Require or Optional.
func AuthFrom(c echo.Context) (*model.AuthContext, bool) {
    ac, ok := c.Get(ctxAuth).(*model.AuthContext)
    return ac, ok && ac != nil
}

// AccessTokenFrom returns the raw bearer token of an authenticated request.
func AccessTokenFrom(c echo.Context) (token.AccessToken, bool) {
    t, ok := c.Get(ctxToken).(token.AccessToken)
    return t, ok && t != ""
}

// ClaimsFrom returns the verified access token claims.
func ClaimsFrom(c echo.Context) (*token.AccessClaims, bool) {
    cl, ok := c.Get(ctxClaims).(*token.AccessClaims)
    return cl, ok && cl != nil
}

// SetAuth attaches an identity to c. Exposed for handler tests.
func SetAuth(c echo.Context, ac *model.AuthContext, raw token.AccessToken, claims *token.AccessClaims) {
    c.Set(ctxAuth, ac)
    c.Set(ctxToken, raw)
    c.Set(ctxClaims, claims)
}

// userID is the identity used in log fields: the numeric id of an
// authenticated caller or "anon".
func userID(c echo.Context) string {
    if ac, ok := AuthFrom(c); ok {
        return strconv.FormatUint(ac.UserID, 10)
    }
    return "anon"
}
