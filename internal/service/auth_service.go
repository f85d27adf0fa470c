// Package service orchestrates the authentication flows (register, login,
// logout, refresh, password reset) over the credential store, token issuer,
// lockout policy and reset-token manager.
package service

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/credit-repair-auth/internal/apperr"
	"github.com/iliyamo/credit-repair-auth/internal/audit"
	"github.com/iliyamo/credit-repair-auth/internal/lockout"
	"github.com/iliyamo/credit-repair-auth/internal/model"
	"github.com/iliyamo/credit-repair-auth/internal/repository"
	"github.com/iliyamo/credit-repair-auth/internal/resettoken"
	"github.com/iliyamo/credit-repair-auth/internal/token"
	"github.com/iliyamo/credit-repair-auth/internal/utils"
)

// ForgotPasswordMessage is returned whether or not the address is known.
const ForgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

var (
	errInvalidCredentials = apperr.New(apperr.InvalidCredentials, "Email or password is incorrect")
	errDeactivated        = apperr.New(apperr.AccountDeactivated, "Your account has been deactivated. Please contact support.")
	errEmailExists        = apperr.New(apperr.EmailExists, "An account with this email address already exists")
	errInvalidRefresh     = apperr.New(apperr.InvalidRefreshToken, "Invalid or expired refresh token")
	errInactiveUser       = apperr.New(apperr.InactiveOrMissingUser, "User account not found or has been deactivated")
	errWrongPassword      = apperr.New(apperr.InvalidCredentials, "Current password is incorrect")
	errResetDelivery      = apperr.New(apperr.DeliveryFailed, "Failed to process password reset request")
)

// UserStore is the user half of the credential store.
type UserStore interface {
	Create(ctx context.Context, u model.NewUser) (uint64, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id uint64) (model.User, error)
	RecordFailedLogin(ctx context.Context, id uint64, threshold int, lockUntil time.Time) (int, *time.Time, error)
	RecordSuccessfulLogin(ctx context.Context, id uint64, at time.Time) error
	SetPassword(ctx context.Context, id uint64, hash string) error
	ClearResetToken(ctx context.Context, id uint64) error
}

// RefreshStore persists refresh token hashes.
type RefreshStore interface {
	InsertRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	FindRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	DeleteRefresh(ctx context.Context, tokenHash string) (bool, error)
	DeleteRefreshForUser(ctx context.Context, userID uint64) (int64, error)
}

// BlacklistStore records revoked access tokens.
type BlacklistStore interface {
	Insert(ctx context.Context, tokenHash string, expiresAt time.Time) error
}

// Mailer hands a message to the email collaborator.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// RequestMeta carries caller details for logs and audit events.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Session is the result of register, login and refresh.
type Session struct {
	User   model.User
	Tokens token.Pair
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      model.Role
}

type LoginInput struct {
	Email    string
	Password string
}

// Deps wires an AuthService.
type Deps struct {
	Users       UserStore
	Refresh     RefreshStore
	Blacklist   BlacklistStore
	Tokens      *token.Issuer
	Hasher      *utils.PasswordHasher
	Reset       *resettoken.Manager
	Lockout     lockout.Policy
	Mailer      Mailer
	Audit       audit.Recorder
	Log         *zap.Logger
	Timeout     time.Duration // bound for every store call
	FrontendURL string
	ResetTTL    time.Duration // only used in the email text
}

type AuthService struct {
	d   Deps
	now func() time.Time
}

func NewAuthService(d Deps) *AuthService {
	if d.Timeout <= 0 {
		d.Timeout = 5 * time.Second
	}
	if d.Lockout.Threshold <= 0 {
		d.Lockout = lockout.Default()
	}
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.ResetTTL <= 0 {
		d.ResetTTL = resettoken.DefaultTTL
	}
	return &AuthService{d: d, now: time.Now}
}

// WithClock replaces the time source used for lockout decisions.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func (s *AuthService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.d.Timeout)
}

// storeErr logs an infrastructure failure with full context and returns the
// generic error the client sees.
func (s *AuthService) storeErr(op string, err error, fields ...zap.Field) error {
	s.d.Log.Error("store operation failed", append(fields, zap.String("op", op), zap.Error(err))...)
	return apperr.Store(err, op)
}

func (s *AuthService) record(ctx context.Context, ev audit.Event) {
	if ev.Time.IsZero() {
		ev.Time = s.now().UTC()
	}
	s.d.Audit.Record(context.WithoutCancel(ctx), ev)
}

// Register creates an account and signs the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (Session, error) {
	in.Email = repository.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	if err := validateRegister(in); err != nil {
		return Session{}, err
	}

	sctx, cancel := s.storeCtx(ctx)
	_, err := s.d.Users.FindByEmail(sctx, in.Email)
	cancel()
	switch {
	case err == nil:
		return Session{}, errEmailExists
	case !errors.Is(err, repository.ErrNotFound):
		return Session{}, s.storeErr("find user by email", err, zap.String("ip", meta.IP))
	}

	hash, err := s.d.Hasher.Hash(in.Password)
	if err != nil {
		return Session{}, s.storeErr("hash password", err)
	}

	sctx, cancel = s.storeCtx(ctx)
	id, err := s.d.Users.Create(sctx, model.NewUser{
		Email: in.Email, PasswordHash: hash, FirstName: in.FirstName, LastName: in.LastName, Role: in.Role,
	})
	cancel()
	if errors.Is(err, repository.ErrEmailExists) {
		return Session{}, errEmailExists
	}
	if err != nil {
		return Session{}, s.storeErr("create user", err, zap.String("ip", meta.IP))
	}

	now := s.now().UTC()
	u := model.User{
		ID: id, Email: in.Email, PasswordHash: hash, FirstName: in.FirstName, LastName: in.LastName,
		Role: in.Role, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	pair, err := s.startSession(ctx, u)
	if err != nil {
		return Session{}, err
	}

	s.d.Log.Info("user registered", zap.Uint64("user_id", id), zap.String("role", string(u.Role)), zap.String("ip", meta.IP))
	s.record(ctx, audit.Event{Name: audit.EventRegister, UserID: id, Email: u.Email, IP: meta.IP, Success: true})

	s.sendWelcome(ctx, u)
	return Session{User: u, Tokens: pair}, nil
}

// sendWelcome never fails the registration.
func (s *AuthService) sendWelcome(ctx context.Context, u model.User) {
	if s.d.Mailer == nil {
		return
	}
	subject, html := welcomeEmail(u)
	sctx, cancel := s.storeCtx(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.d.Mailer.Send(sctx, u.Email, subject, html); err != nil {
		s.d.Log.Warn("failed to send welcome email", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
}

// Login verifies credentials under the lockout policy.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta RequestMeta) (Session, error) {
	email := repository.NormalizeEmail(in.Email)
	if err := validateLogin(email, in.Password); err != nil {
		return Session{}, err
	}

	sctx, cancel := s.storeCtx(ctx)
	u, err := s.d.Users.FindByEmail(sctx, email)
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		s.record(ctx, audit.Event{Name: audit.EventLoginFailure, Email: email, IP: meta.IP, Reason: "unknown email"})
		return Session{}, errInvalidCredentials
	}
	if err != nil {
		return Session{}, s.storeErr("find user by email", err, zap.String("ip", meta.IP))
	}

	if !u.IsActive {
		// Deactivation is only disclosed to a caller who knows the password.
		ok, err := s.d.Hasher.Verify(in.Password, u.PasswordHash)
		if err != nil || !ok {
			s.record(ctx, audit.Event{Name: audit.EventLoginFailure, UserID: u.ID, Email: email, IP: meta.IP, Reason: "inactive account, bad password"})
			return Session{}, errInvalidCredentials
		}
		s.record(ctx, audit.Event{Name: audit.EventLoginFailure, UserID: u.ID, Email: email, IP: meta.IP, Reason: "account deactivated"})
		return Session{}, errDeactivated
	}

	now := s.now().UTC()
	if d := s.d.Lockout.Evaluate(u.LockedUntil, now); !d.Permitted {
		s.record(ctx, audit.Event{Name: audit.EventLoginFailure, UserID: u.ID, Email: email, IP: meta.IP, Reason: "account locked"})
		e := apperr.New(apperr.AccountLocked, "Account is temporarily locked due to multiple failed login attempts")
		e.RetryAfterSeconds = d.RemainingLockSeconds
		return Session{}, e
	}

	ok, err := s.d.Hasher.Verify(in.Password, u.PasswordHash)
	if err != nil {
		return Session{}, s.storeErr("verify password", err, zap.Uint64("user_id", u.ID))
	}
	if !ok {
		return Session{}, s.failedLogin(ctx, u, now, meta)
	}

	sctx, cancel = s.storeCtx(ctx)
	err = s.d.Users.RecordSuccessfulLogin(sctx, u.ID, now)
	cancel()
	if err != nil {
		return Session{}, s.storeErr("record successful login", err, zap.Uint64("user_id", u.ID))
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLogin = &now

	pair, err := s.startSession(ctx, u)
	if err != nil {
		return Session{}, err
	}

	s.d.Log.Info("user logged in", zap.Uint64("user_id", u.ID), zap.String("role", string(u.Role)),
		zap.String("ip", meta.IP), zap.String("user_agent", meta.UserAgent))
	s.record(ctx, audit.Event{Name: audit.EventLoginSuccess, UserID: u.ID, Email: u.Email, IP: meta.IP, Success: true})
	return Session{User: u, Tokens: pair}, nil
}

// failedLogin counts the failure atomically in the store and returns the
// credentials error with an attempts-remaining hint.
func (s *AuthService) failedLogin(ctx context.Context, u model.User, now time.Time, meta RequestMeta) error {
	sctx, cancel := s.storeCtx(ctx)
	attempts, lockedUntil, err := s.d.Users.RecordFailedLogin(sctx, u.ID, s.d.Lockout.Threshold, s.d.Lockout.LockUntil(now))
	cancel()
	if err != nil {
		return s.storeErr("record failed login", err, zap.Uint64("user_id", u.ID))
	}

	s.record(ctx, audit.Event{Name: audit.EventLoginFailure, UserID: u.ID, Email: u.Email, IP: meta.IP, Reason: "bad password"})
	if lockedUntil != nil {
		s.d.Log.Warn("account locked", zap.Uint64("user_id", u.ID), zap.Int("failed_attempts", attempts),
			zap.Time("locked_until", *lockedUntil), zap.String("ip", meta.IP))
		s.record(ctx, audit.Event{
			Name: audit.EventLockout, UserID: u.ID, Email: u.Email, IP: meta.IP, Success: true,
			Metadata: map[string]string{"locked_until": lockedUntil.UTC().Format(time.RFC3339)},
		})
	}

	e := apperr.New(apperr.InvalidCredentials, errInvalidCredentials.Message)
	remaining := s.d.Lockout.AttemptsRemaining(attempts)
	e.AttemptsRemaining = &remaining
	return e
}

// startSession issues a token pair and persists the refresh token hash.
func (s *AuthService) startSession(ctx context.Context, u model.User) (token.Pair, error) {
	pair, err := s.d.Tokens.IssuePair(u)
	if err != nil {
		return token.Pair{}, s.storeErr("issue tokens", err, zap.Uint64("user_id", u.ID))
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.d.Refresh.InsertRefresh(sctx, u.ID, utils.HashToken(string(pair.Refresh)), pair.RefreshExpiry); err != nil {
		return token.Pair{}, s.storeErr("insert refresh token", err, zap.Uint64("user_id", u.ID))
	}
	return pair, nil
}

// Logout blacklists the presented access token until its own expiry and
// deletes every refresh token of the user. Both writes run concurrently
// and both must finish before Logout returns. Repeating a logout is not an
// error.
func (s *AuthService) Logout(ctx context.Context, ac *model.AuthContext, raw token.AccessToken, expiresAt time.Time, meta RequestMeta) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	var deleted int64
	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error {
		return s.d.Blacklist.Insert(gctx, utils.HashToken(string(raw)), expiresAt)
	})
	g.Go(func() error {
		n, err := s.d.Refresh.DeleteRefreshForUser(gctx, ac.UserID)
		deleted = n
		return err
	})
	if err := g.Wait(); err != nil {
		return s.storeErr("logout", err, zap.Uint64("user_id", ac.UserID))
	}

	s.d.Log.Info("user logged out", zap.Uint64("user_id", ac.UserID), zap.Int64("refresh_tokens_deleted", deleted))
	s.record(ctx, audit.Event{
		Name: audit.EventTokenBlacklisted, UserID: ac.UserID, Email: ac.Email, IP: meta.IP, Success: true,
		Metadata: map[string]string{"expires_at": expiresAt.UTC().Format(time.RFC3339)},
	})
	s.record(ctx, audit.Event{Name: audit.EventLogout, UserID: ac.UserID, Email: ac.Email, IP: meta.IP, Success: true})
	return nil
}

// Refresh rotates a refresh token: the presented one is deleted and a new
// pair is issued. Only one of two concurrent rotations of the same token
// can win the delete.
func (s *AuthService) Refresh(ctx context.Context, raw token.RefreshToken, meta RequestMeta) (Session, error) {
	raw = token.RefreshToken(strings.TrimSpace(string(raw)))
	if raw == "" {
		return Session{}, validation(apperr.FieldError{Field: "refreshToken", Message: "Refresh token is required"})
	}
	claims, err := s.d.Tokens.VerifyRefresh(raw)
	if err != nil {
		return Session{}, errInvalidRefresh
	}
	hash := utils.HashToken(string(raw))

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	owner, err := s.d.Refresh.FindRefresh(sctx, hash, s.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, errInvalidRefresh
	}
	if err != nil {
		return Session{}, s.storeErr("find refresh token", err)
	}
	if owner != claims.UserID {
		return Session{}, errInvalidRefresh
	}

	u, err := s.d.Users.FindByID(sctx, owner)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, errInactiveUser
	}
	if err != nil {
		return Session{}, s.storeErr("find user by id", err, zap.Uint64("user_id", owner))
	}
	if !u.IsActive {
		return Session{}, errInactiveUser
	}

	won, err := s.d.Refresh.DeleteRefresh(sctx, hash)
	if err != nil {
		return Session{}, s.storeErr("delete refresh token", err, zap.Uint64("user_id", owner))
	}
	if !won {
		return Session{}, errInvalidRefresh
	}

	pair, err := s.startSession(ctx, u)
	if err != nil {
		return Session{}, err
	}
	s.record(ctx, audit.Event{Name: audit.EventRefresh, UserID: u.ID, Email: u.Email, IP: meta.IP, Success: true})
	return Session{User: u, Tokens: pair}, nil
}

// ForgotPassword issues a reset token and mails the reset link. The
// returned message is the same for known and unknown addresses. A mail
// failure is reported, since delivering the link is the whole point of
// the request.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, meta RequestMeta) (string, error) {
	email = repository.NormalizeEmail(email)
	if !validEmail(email) {
		return "", validation(apperr.FieldError{Field: "email", Message: "Please provide a valid email address"})
	}

	sctx, cancel := s.storeCtx(ctx)
	u, err := s.d.Users.FindByEmail(sctx, email)
	cancel()
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !u.IsActive) {
		s.record(ctx, audit.Event{Name: audit.EventResetRequested, Email: email, IP: meta.IP, Reason: "no active account"})
		return ForgotPasswordMessage, nil
	}
	if err != nil {
		return "", s.storeErr("find user by email", err, zap.String("ip", meta.IP))
	}

	if s.d.Mailer == nil {
		s.d.Log.Error("no mailer configured, reset link not sent", zap.Uint64("user_id", u.ID))
		return "", errResetDelivery
	}

	sctx, cancel = s.storeCtx(ctx)
	secret, _, err := s.d.Reset.Issue(sctx, u.ID)
	cancel()
	if err != nil {
		s.d.Log.Error("issue reset token failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		return "", err
	}

	link := strings.TrimRight(s.d.FrontendURL, "/") + "/reset-password?token=" + secret
	subject, html := resetEmail(u, link, s.d.ResetTTL)
	sctx, cancel = s.storeCtx(ctx)
	err = s.d.Mailer.Send(sctx, u.Email, subject, html)
	cancel()
	if err != nil {
		s.d.Log.Error("failed to send password reset email", zap.Uint64("user_id", u.ID), zap.Error(err))
		// the link never left the building; drop the token
		cctx, ccancel := s.storeCtx(context.WithoutCancel(ctx))
		if cerr := s.d.Users.ClearResetToken(cctx, u.ID); cerr != nil {
			s.d.Log.Error("clear reset token failed", zap.Uint64("user_id", u.ID), zap.Error(cerr))
		}
		ccancel()
		return "", apperr.Wrap(err, apperr.DeliveryFailed, errResetDelivery.Message)
	}

	s.d.Log.Info("password reset requested", zap.Uint64("user_id", u.ID), zap.String("ip", meta.IP))
	s.record(ctx, audit.Event{Name: audit.EventResetRequested, UserID: u.ID, Email: u.Email, IP: meta.IP, Success: true})
	return ForgotPasswordMessage, nil
}

// ResetPassword redeems a reset secret: the secret is cleared, the new
// password stored and every session of the user ended, all in one store
// transaction.
func (s *AuthService) ResetPassword(ctx context.Context, secret, password string, meta RequestMeta) error {
	var details []apperr.FieldError
	if strings.TrimSpace(secret) == "" {
		details = append(details, apperr.FieldError{Field: "token", Message: "Reset token is required"})
	}
	if msg := utils.ValidatePasswordStrength(password); msg != "" {
		details = append(details, apperr.FieldError{Field: "password", Message: msg})
	}
	if len(details) > 0 {
		return validation(details...)
	}

	// hash first so a hashing failure cannot burn the token
	hash, err := s.d.Hasher.Hash(password)
	if err != nil {
		return s.storeErr("hash password", err)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	r, err := s.d.Reset.Redeem(sctx, strings.TrimSpace(secret), hash)
	if err != nil {
		if apperr.KindOf(err) == apperr.StoreUnavailable {
			s.d.Log.Error("redeem reset token failed", zap.String("ip", meta.IP), zap.Error(err))
		} else {
			s.record(ctx, audit.Event{Name: audit.EventResetConsumed, IP: meta.IP, Reason: "invalid or expired token"})
		}
		return err
	}

	s.d.Log.Info("password reset", zap.Uint64("user_id", r.UserID), zap.String("ip", meta.IP))
	s.record(ctx, audit.Event{Name: audit.EventResetConsumed, UserID: r.UserID, IP: meta.IP, Success: true})
	s.record(ctx, audit.Event{
		Name: audit.EventSessionsRevoked, UserID: r.UserID, IP: meta.IP, Success: true,
		Metadata: map[string]string{"refresh_tokens_deleted": strconv.FormatInt(r.SessionsRevoked, 10)},
	})
	return nil
}

// Me returns the live user row behind an authenticated request.
func (s *AuthService) Me(ctx context.Context, ac *model.AuthContext) (model.User, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	u, err := s.d.Users.FindByID(sctx, ac.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, errInactiveUser
	}
	if err != nil {
		return model.User{}, s.storeErr("find user by id", err, zap.Uint64("user_id", ac.UserID))
	}
	return u, nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one, and ends every refresh session.
func (s *AuthService) ChangePassword(ctx context.Context, ac *model.AuthContext, current, next string, meta RequestMeta) error {
	var details []apperr.FieldError
	if current == "" {
		details = append(details, apperr.FieldError{Field: "currentPassword", Message: "Current password is required"})
	}
	if msg := utils.ValidatePasswordStrength(next); msg != "" {
		details = append(details, apperr.FieldError{Field: "newPassword", Message: msg})
	} else if next == current {
		details = append(details, apperr.FieldError{Field: "newPassword", Message: "New password must differ from the current password"})
	}
	if len(details) > 0 {
		return validation(details...)
	}

	u, err := s.Me(ctx, ac)
	if err != nil {
		return err
	}
	ok, err := s.d.Hasher.Verify(current, u.PasswordHash)
	if err != nil {
		return s.storeErr("verify password", err, zap.Uint64("user_id", u.ID))
	}
	if !ok {
		s.record(ctx, audit.Event{Name: audit.EventPasswordChanged, UserID: u.ID, Email: u.Email, IP: meta.IP, Reason: "wrong current password"})
		return errWrongPassword
	}

	hash, err := s.d.Hasher.Hash(next)
	if err != nil {
		return s.storeErr("hash password", err)
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.d.Users.SetPassword(sctx, u.ID, hash); err != nil {
		return s.storeErr("set password", err, zap.Uint64("user_id", u.ID))
	}
	if _, err := s.d.Refresh.DeleteRefreshForUser(sctx, u.ID); err != nil {
		return s.storeErr("delete refresh tokens", err, zap.Uint64("user_id", u.ID))
	}

	s.record(ctx, audit.Event{Name: audit.EventPasswordChanged, UserID: u.ID, Email: u.Email, IP: meta.IP, Success: true})
	return nil
}

func validateRegister(in RegisterInput) error {
	var details []apperr.FieldError
	if !validEmail(in.Email) {
		details = append(details, apperr.FieldError{Field: "email", Message: "Please provide a valid email address"})
	}
	if msg := utils.ValidatePasswordStrength(in.Password); msg != "" {
		details = append(details, apperr.FieldError{Field: "password", Message: msg})
	}
	if n := utf8.RuneCountInString(in.FirstName); n < 2 || n > 50 {
		details = append(details, apperr.FieldError{Field: "firstName", Message: "First name must be between 2 and 50 characters"})
	}
	if n := utf8.RuneCountInString(in.LastName); n < 2 || n > 50 {
		details = append(details, apperr.FieldError{Field: "lastName", Message: "Last name must be between 2 and 50 characters"})
	}
	if !in.Role.SelfAssignable() {
		details = append(details, apperr.FieldError{Field: "role", Message: "Invalid role specified"})
	}
	if len(details) > 0 {
		return validation(details...)
	}
	return nil
}

func validateLogin(email, password string) error {
	var details []apperr.FieldError
	if !validEmail(email) {
		details = append(details, apperr.FieldError{Field: "email", Message: "Please provide a valid email address"})
	}
	if password == "" {
		details = append(details, apperr.FieldError{Field: "password", Message: "Password is required"})
	}
	if len(details) > 0 {
		return validation(details...)
	}
	return nil
}

// validEmail accepts a bare address (no display name).
func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}

func validation(details ...apperr.FieldError) error {
	e := apperr.New(apperr.ValidationFailed, "One or more fields are invalid")
	e.Details = details
	return e
}
