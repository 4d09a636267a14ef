package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bav-systems/visitas-api/internal/models"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
)

type authUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type ipGate interface {
	IsDenied(ctx context.Context, address string) (bool, error)
}

type sessionGate interface {
	Claim(ctx context.Context, address, signature string) (bool, error)
	Release(ctx context.Context, address string) error
}

type lockoutGate interface {
	Threshold() int
	RecordFailure(ctx context.Context, userID string) (int, bool, error)
	RecordSuccess(ctx context.Context, userID string) error
	MustChangePassword(ctx context.Context, userID string) (bool, error)
	ClearMustChangePassword(ctx context.Context, userID string) error
}

type authAuditRecorder interface {
	Record(ctx context.Context, userID *string, action, details, originIP string)
}

type loginMetrics interface {
	ObserveLogin(outcome string)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
}

// AuthService walks every login through the same gate: IP policy first, then
// the account's active flag, then the credential check with its failure
// counter, and finally the per-IP session claim. Each rejection leaves a
// bitácora trace.
type AuthService struct {
	users     authUserRepository
	ipPolicy  ipGate
	sessions  sessionGate
	lockout   lockoutGate
	audit     authAuditRecorder
	metrics   loginMetrics
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, ipPolicy ipGate, sessions sessionGate, lockout lockoutGate, audit authAuditRecorder, metrics loginMetrics, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		users:     users,
		ipPolicy:  ipPolicy,
		sessions:  sessions,
		lockout:   lockout,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Login authenticates a user and returns issued tokens.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	denied, err := s.ipPolicy.IsDenied(ctx, req.IP)
	if err != nil {
		return nil, err
	}
	if denied {
		s.audit.Record(ctx, nil, models.AuditActionAccessDenied, fmt.Sprintf("IP bloqueada: %s", req.IP), req.IP)
		s.observe("ip_denied")
		return nil, appErrors.Clone(appErrors.ErrIPDenied, fmt.Sprintf("acceso denegado desde la IP: %s", req.IP))
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown usernames never create a counter; the response body
			// stays indistinguishable from a wrong password.
			s.audit.Record(ctx, nil, models.AuditActionLoginFailure, fmt.Sprintf("Credenciales inválidas (usuario inexistente): %s", req.Username), req.IP)
			s.observe("unknown_user")
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		s.observe("account_locked")
		return nil, appErrors.Clone(appErrors.ErrAccountLocked, "")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, s.rejectFailedCredential(ctx, user, req)
	}

	claimed, err := s.sessions.Claim(ctx, req.IP, req.Signature)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Historical double write on a rejected duplicate session, kept as
		// observable behavior.
		s.audit.Record(ctx, &user.ID, models.AuditActionLoginSuccess, fmt.Sprintf("El usuario %s entró al sistema", user.Username), req.IP)
		s.audit.Record(ctx, &user.ID, models.AuditActionDuplicateSession, fmt.Sprintf("El usuario %s intentó abrir una segunda sesión desde un navegador diferente en la misma IP.", user.Username), req.IP)
		s.observe("session_conflict")
		return nil, appErrors.Clone(appErrors.ErrSessionConflict, "")
	}

	if err := s.lockout.RecordSuccess(ctx, user.ID); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.String("user_id", user.ID), zap.Error(err))
	}

	mustChange, err := s.lockout.MustChangePassword(ctx, user.ID)
	if err != nil {
		s.logger.Warn("failed to load password change flag", zap.String("user_id", user.ID), zap.Error(err))
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refreshTokenValue, err := s.generateRefreshTokenString()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	refreshToken := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refreshTokenValue,
		ExpiresAt: time.Now().UTC().Add(s.config.RefreshTokenExpiry),
		CreatedAt: time.Now().UTC(),
		Revoked:   false,
		IPAddress: req.IP,
		UserAgent: req.Signature,
	}
	if err := s.users.CreateRefreshToken(ctx, refreshToken); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	s.audit.Record(ctx, &user.ID, models.AuditActionLoginSuccess, fmt.Sprintf("El usuario %s entró al sistema", user.Username), req.IP)
	s.observe("success")

	return &models.LoginResponse{
		AccessToken:            accessToken,
		RefreshToken:           refreshToken.Token,
		ExpiresIn:              int64(s.config.AccessTokenExpiry.Seconds()),
		PasswordChangeRequired: mustChange,
		IssuedAt:               time.Now().UTC(),
		User: models.UserInfo{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			FullName:  user.FullName,
			Superuser: user.Superuser,
		},
	}, nil
}

func (s *AuthService) rejectFailedCredential(ctx context.Context, user *models.User, req models.LoginRequest) error {
	attempts, locked, err := s.lockout.RecordFailure(ctx, user.ID)
	if err != nil {
		return err
	}

	var details string
	if locked {
		details = fmt.Sprintf("USUARIO BLOQUEADO tras %d intentos: %s", s.lockout.Threshold(), user.Username)
	} else {
		details = fmt.Sprintf("Intento fallido %d/%d para: %s", attempts, s.lockout.Threshold(), user.Username)
	}
	s.audit.Record(ctx, nil, models.AuditActionLoginFailure, details, req.IP)

	if locked {
		s.observe("locked_out")
		return appErrors.Clone(appErrors.ErrAccountLocked, "has superado el límite de intentos, tu cuenta ha sido bloqueada")
	}
	s.observe("bad_password")
	return appErrors.Clone(appErrors.ErrInvalidCredentials, "")
}

// Logout releases the caller's IP slot unconditionally and revokes the
// refresh token. The bitácora entry is written only for authenticated callers.
func (s *AuthService) Logout(ctx context.Context, ip, refreshToken string, user *models.User) error {
	if err := s.sessions.Release(ctx, ip); err != nil {
		s.logger.Warn("failed to release session slot on logout", zap.String("ip", ip), zap.Error(err))
	}

	if refreshToken != "" {
		storedToken, err := s.users.FindRefreshToken(ctx, refreshToken)
		if err == nil {
			if err := s.users.RevokeRefreshToken(ctx, storedToken.ID, time.Now().UTC()); err != nil {
				s.logger.Warn("failed to revoke refresh token", zap.Error(err))
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load refresh token on logout", zap.Error(err))
		}
	}

	if user != nil {
		s.audit.Record(ctx, &user.ID, models.AuditActionLogout, fmt.Sprintf("El usuario %s cerró sesión", user.Username), ip)
	}
	return nil
}

// Warn handles the duplicate-session warning screen. For an authenticated
// caller it is a forced logout: the slot is released, every refresh token is
// revoked and the exit lands in the bitácora. An anonymous visitor only sees
// the notice; the holder's slot stays untouched.
func (s *AuthService) Warn(ctx context.Context, ip string, user *models.User) error {
	if user == nil {
		return nil
	}

	if err := s.sessions.Release(ctx, ip); err != nil {
		s.logger.Warn("failed to release session slot on warn", zap.String("ip", ip), zap.Error(err))
	}

	s.audit.Record(ctx, &user.ID, models.AuditActionWarnLogout, fmt.Sprintf("El usuario %s salió del sistema. IP: %s", user.Username, ip), ip)
	if err := s.users.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens on warn", zap.Error(err))
	}
	return nil
}

// ChangePassword changes the password for the given user ID and clears the
// mandatory-change flag.
func (s *AuthService) ChangePassword(ctx context.Context, userID, ip string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "la contraseña actual no coincide")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.users.UpdatePassword(ctx, userID, string(newHash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.lockout.ClearMustChangePassword(ctx, userID); err != nil {
		s.logger.Warn("failed to clear password change flag", zap.String("user_id", userID), zap.Error(err))
	}

	if err := s.users.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password change", zap.Error(err))
	}

	s.audit.Record(ctx, &userID, models.AuditActionPasswordChange, fmt.Sprintf("El usuario %s actualizó su contraseña", user.Username), ip)

	return nil
}

// RefreshToken exchanges a refresh token for a new access token pair.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken, ip, signature string) (*models.LoginResponse, error) {
	storedToken, err := s.users.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}

	if storedToken.Revoked || time.Now().UTC().After(storedToken.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is expired or revoked")
	}

	user, err := s.users.FindByID(ctx, storedToken.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "associated user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrAccountLocked, "")
	}

	if err := s.users.RevokeRefreshToken(ctx, storedToken.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to revoke used refresh token", zap.Error(err))
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate access token")
	}

	refreshTokenValue, err := s.generateRefreshTokenString()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	newRefresh := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refreshTokenValue,
		ExpiresAt: time.Now().UTC().Add(s.config.RefreshTokenExpiry),
		CreatedAt: time.Now().UTC(),
		IPAddress: ip,
		UserAgent: signature,
	}
	if err := s.users.CreateRefreshToken(ctx, newRefresh); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh.Token,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     time.Now().UTC(),
		User: models.UserInfo{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			FullName:  user.FullName,
			Superuser: user.Superuser,
		},
	}, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveLogin(outcome)
	}
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID:    user.ID,
		Username:  user.Username,
		Superuser: user.Superuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) generateRefreshTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
