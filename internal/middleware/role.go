package middleware // middleware provides shared request processing for handlers

import (
    "context"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/credit-repair-auth/internal/apperr"
    "github.com/iliyamo/credit-repair-auth/internal/audit"
    "github.com/iliyamo/credit-repair-auth/internal/model"
)

var errAuthRequired = apperr.New(apperr.MissingToken, "Please log in to access this resource")

// RoleGate authorizes requests that already passed Authenticator.Require.
// Denials are logged and recorded as audit events.
type RoleGate struct {
    log   *zap.Logger
    audit audit.Recorder
}

func NewRoleGate(log *zap.Logger, rec audit.Recorder) *RoleGate {
    if log == nil {
        log = zap.NewNop()
    }
    if rec == nil {
        rec = audit.Nop{}
    }
    return &RoleGate{log: log, audit: rec}
}

// RequireRole lets the request through only if the caller's role is one
// of roles. A request without an identity is rejected with 401, which
// means the gate was mounted without Require in front of it.
func (g *RoleGate) RequireRole(roles ...model.Role) echo.MiddlewareFunc {
    allowed := make(map[model.Role]bool, len(roles))
    names := make([]string, 0, len(roles))
    for _, r := range roles {
        allowed[r] = true
        names = append(names, string(r))
    }
    required := strings.Join(names, ", ")

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ac, ok := AuthFrom(c)
            if !ok {
                return RespondError(c, errAuthRequired)
            }
            if !allowed[ac.Role] {
                g.log.Warn("insufficient permissions",
                    zap.Uint64("user_id", ac.UserID),
                    zap.String("role", string(ac.Role)),
                    zap.String("required", required),
                    zap.String("method", c.Request().Method),
                    zap.String("path", c.Path()))
                g.audit.Record(context.WithoutCancel(c.Request().Context()), audit.Event{
                    Name:     audit.EventPermissionDenied,
                    UserID:   ac.UserID,
                    Email:    ac.Email,
                    IP:       c.RealIP(),
                    Reason:   "role " + string(ac.Role) + " not in [" + required + "]",
                    Metadata: map[string]string{"path": c.Path()},
                })
                return RespondError(c, apperr.New(apperr.InsufficientPermissions,
                    "Access denied. Required role(s): "+required))
            }
            return next(c)
        }
    }
}

// RequireAdmin allows admin and super_admin.
func (g *RoleGate) RequireAdmin() echo.MiddlewareFunc {
    return g.RequireRole(model.RoleAdmin, model.RoleSuperAdmin)
}

// RequireManager allows manager and above.
func (g *RoleGate) RequireManager() echo.MiddlewareFunc {
    return g.RequireRole(model.RoleManager, model.RoleAdmin, model.RoleSuperAdmin)
}

// RequireStaff allows any internal user.
func (g *RoleGate) RequireStaff() echo.MiddlewareFunc {
    return g.RequireRole(model.RoleStaff, model.RoleManager, model.RoleAdmin, model.RoleSuperAdmin)
}

// RequireClient allows client portal users only.
func (g *RoleGate) RequireClient() echo.MiddlewareFunc {
    return g.RequireRole(model.RoleClient)
}
