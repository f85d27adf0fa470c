package middleware // reusable HTTP middleware: authentication, role gates, rate limits, request logs

import (
    "context"
    "errors"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/credit-repair-auth/internal/apperr"
    "github.com/iliyamo/credit-repair-auth/internal/model"
    "github.com/iliyamo/credit-repair-auth/internal/repository"
    "github.com/iliyamo/credit-repair-auth/internal/token"
    "github.com/iliyamo/credit-repair-auth/internal/utils"
)

var (
    errMissingToken = apperr.New(apperr.MissingToken, "Please provide a valid authentication token")
    errInactiveUser = apperr.New(apperr.InactiveOrMissingUser, "User account not found or has been deactivated")
    errRevokedToken = apperr.New(apperr.RevokedToken, "Please log in again")
)

// AccessVerifier checks signature, expiry, issuer and audience of an access
// token. *token.Issuer satisfies it.
type AccessVerifier interface {
    VerifyAccess(t token.AccessToken) (*token.AccessClaims, error)
}

// UserFinder loads the live user row for a token subject.
type UserFinder interface {
    FindByID(ctx context.Context, id uint64) (model.User, error)
}

// BlacklistChecker reports whether a token hash has been revoked.
type BlacklistChecker interface {
    IsBlacklisted(ctx context.Context, tokenHash string, now time.Time) (bool, error)
}

// Authenticator builds the request identity from a bearer token. Role and
// active status always come from the store, never from the token payload,
// so deactivation or a role change applies before the token expires.
type Authenticator struct {
    tokens    AccessVerifier
    users     UserFinder
    blacklist BlacklistChecker
    timeout   time.Duration
    log       *zap.Logger
    now       func() time.Time
}

func NewAuthenticator(tokens AccessVerifier, users UserFinder, blacklist BlacklistChecker, timeout time.Duration, log *zap.Logger) *Authenticator {
    if timeout <= 0 {
        timeout = 5 * time.Second
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &Authenticator{tokens: tokens, users: users, blacklist: blacklist, timeout: timeout, log: log, now: time.Now}
}

// Require rejects requests that do not carry a valid, unrevoked access
// token for an active user.
func (a *Authenticator) Require() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearerToken(c)
            if !ok {
                return RespondError(c, errMissingToken)
            }
            ac, claims, err := a.authenticate(c, raw)
            if err != nil {
                if apperr.KindOf(err) == apperr.StoreUnavailable {
                    a.log.Error("authentication lookup failed",
                        zap.String("ip", c.RealIP()), zap.String("path", c.Path()), zap.Error(err))
                }
                return RespondError(c, err)
            }
            SetAuth(c, ac, raw, claims)
            a.log.Debug("user authenticated",
                zap.Uint64("user_id", ac.UserID), zap.String("role", string(ac.Role)), zap.String("ip", c.RealIP()))
            return next(c)
        }
    }
}

// Optional attaches an identity when a usable token is present and lets
// the request through anonymously otherwise. A store failure is still an
// error: it is not evidence that the caller is anonymous.
func (a *Authenticator) Optional() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearerToken(c)
            if !ok {
                return next(c)
            }
            ac, claims, err := a.authenticate(c, raw)
            if err != nil {
                if apperr.KindOf(err) == apperr.StoreUnavailable {
                    a.log.Error("optional authentication lookup failed",
                        zap.String("ip", c.RealIP()), zap.String("path", c.Path()), zap.Error(err))
                    return RespondError(c, err)
                }
                return next(c)
            }
            SetAuth(c, ac, raw, claims)
            return next(c)
        }
    }
}

// authenticate runs verify -> live user lookup -> blacklist check.
func (a *Authenticator) authenticate(c echo.Context, raw token.AccessToken) (*model.AuthContext, *token.AccessClaims, error) {
    claims, err := a.tokens.VerifyAccess(raw)
    if err != nil {
        return nil, nil, err
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), a.timeout)
    defer cancel()

    u, err := a.users.FindByID(ctx, claims.UserID)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, nil, errInactiveUser
    }
    if err != nil {
        return nil, nil, apperr.Store(err, "find user by id")
    }
    if !u.IsActive {
        return nil, nil, errInactiveUser
    }

    revoked, err := a.blacklist.IsBlacklisted(ctx, utils.HashToken(string(raw)), a.now())
    if err != nil {
        return nil, nil, apperr.Store(err, "check blacklist")
    }
    if revoked {
        return nil, nil, errRevokedToken
    }

    return &model.AuthContext{
        UserID:    u.ID,
        Email:     u.Email,
        FirstName: u.FirstName,
        LastName:  u.LastName,
        Role:      u.Role,
        LastLogin: u.LastLogin,
    }, claims, nil
}

// bearerToken reads "Authorization: Bearer <token>". The scheme is matched
// case-insensitively.
func bearerToken(c echo.Context) (token.AccessToken, bool) {
    auth := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
    scheme, raw, found := strings.Cut(auth, " ")
    if !found || !strings.EqualFold(scheme, "Bearer") {
        return "", false
    }
    raw = strings.TrimSpace(raw)
    if raw == "" {
        return "", false
    }
    return token.AccessToken(raw), true
}
