package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bav-systems/visitas-api/internal/models"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
)

type fakeUsers struct {
	user             *models.User
	refreshTokens    map[string]*models.RefreshToken
	lastLoginUpdated bool
	revokedAll       bool
}

func (f *fakeUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.user == nil || f.user.Username != username {
		return nil, sql.ErrNoRows
	}
	return f.user, nil
}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return f.user, nil
}

func (f *fakeUsers) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	f.lastLoginUpdated = true
	return nil
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if f.user != nil && f.user.ID == id {
		f.user.PasswordHash = passwordHash
	}
	return nil
}

func (f *fakeUsers) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if f.refreshTokens == nil {
		f.refreshTokens = make(map[string]*models.RefreshToken)
	}
	f.refreshTokens[token.Token] = token
	return nil
}

func (f *fakeUsers) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := f.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (f *fakeUsers) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range f.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (f *fakeUsers) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	f.revokedAll = true
	for _, token := range f.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

type fakeIPGate struct {
	denied map[string]bool
}

func (f *fakeIPGate) IsDenied(ctx context.Context, address string) (bool, error) {
	return f.denied[address], nil
}

type fakeSessions struct {
	holders  map[string]*models.ActiveSession
	released []string
}

func (f *fakeSessions) Claim(ctx context.Context, address, signature string) (bool, error) {
	if f.holders == nil {
		f.holders = make(map[string]*models.ActiveSession)
	}
	if current, ok := f.holders[address]; ok && current.Active && current.ClientSignature != signature {
		return false, nil
	}
	f.holders[address] = &models.ActiveSession{Address: address, ClientSignature: signature, LastSeen: time.Now(), Active: true}
	return true, nil
}

func (f *fakeSessions) Release(ctx context.Context, address string) error {
	f.released = append(f.released, address)
	if current, ok := f.holders[address]; ok {
		current.Active = false
	}
	return nil
}

type fakeLockout struct {
	users      *fakeUsers
	attempts   map[string]int
	mustChange map[string]bool
	threshold  int
}

func (f *fakeLockout) Threshold() int {
	if f.threshold == 0 {
		return 3
	}
	return f.threshold
}

func (f *fakeLockout) RecordFailure(ctx context.Context, userID string) (int, bool, error) {
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[userID]++
	locked := f.attempts[userID] == f.Threshold()
	if locked && f.users != nil && f.users.user != nil && f.users.user.ID == userID {
		f.users.user.Active = false
	}
	return f.attempts[userID], locked, nil
}

func (f *fakeLockout) RecordSuccess(ctx context.Context, userID string) error {
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[userID] = 0
	return nil
}

func (f *fakeLockout) MustChangePassword(ctx context.Context, userID string) (bool, error) {
	return f.mustChange[userID], nil
}

func (f *fakeLockout) ClearMustChangePassword(ctx context.Context, userID string) error {
	if f.mustChange == nil {
		f.mustChange = make(map[string]bool)
	}
	f.mustChange[userID] = false
	return nil
}

type fakeAudit struct {
	entries []models.AuditEntry
}

func (f *fakeAudit) Record(ctx context.Context, userID *string, action, details, originIP string) {
	f.entries = append(f.entries, models.AuditEntry{UserID: userID, Action: action, Details: details, OriginIP: originIP})
}

func (f *fakeAudit) byAction(action string) []models.AuditEntry {
	var out []models.AuditEntry
	for _, e := range f.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type gateFixture struct {
	users    *fakeUsers
	ips      *fakeIPGate
	sessions *fakeSessions
	lockout  *fakeLockout
	audit    *fakeAudit
	svc      *AuthService
}

func newGateFixture(t *testing.T, password string) *gateFixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	users := &fakeUsers{user: &models.User{
		ID:           "u1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		FullName:     "Alice",
		Active:       true,
	}}
	ips := &fakeIPGate{denied: map[string]bool{"10.0.0.1": true, "192.168.1.8": true}}
	sessions := &fakeSessions{}
	lockout := &fakeLockout{users: users}
	audit := &fakeAudit{}

	svc := NewAuthService(users, ips, sessions, lockout, audit, nil, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "visitas-api",
	})

	return &gateFixture{users: users, ips: ips, sessions: sessions, lockout: lockout, audit: audit, svc: svc}
}

func loginReq(username, password, ip, signature string) models.LoginRequest {
	return models.LoginRequest{Username: username, Password: password, IP: ip, Signature: signature}
}

func TestLoginSuccess(t *testing.T) {
	fx := newGateFixture(t, "secreta123")

	res, err := fx.svc.Login(context.Background(), loginReq("alice", "secreta123", "192.168.1.50", "Chrome/1"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "alice", res.User.Username)
	assert.True(t, fx.users.lastLoginUpdated)

	holder := fx.sessions.holders["192.168.1.50"]
	require.NotNil(t, holder)
	assert.True(t, holder.Active)
	assert.Equal(t, "Chrome/1", holder.ClientSignature)

	success := fx.audit.byAction(models.AuditActionLoginSuccess)
	require.Len(t, success, 1)
	assert.Equal(t, "El usuario alice entró al sistema", success[0].Details)

	claims, err := fx.svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestLoginDeniedIPWritesSingleAuditEntry(t *testing.T) {
	fx := newGateFixture(t, "secreta123")

	_, err := fx.svc.Login(context.Background(), loginReq("alice", "secreta123", "10.0.0.1", "Chrome/1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrIPDenied.Code, appErr.Code)

	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, models.AuditActionAccessDenied, fx.audit.entries[0].Action)
	assert.Equal(t, "IP bloqueada: 10.0.0.1", fx.audit.entries[0].Details)
	assert.Nil(t, fx.audit.entries[0].UserID)
}

func TestLoginUnknownUserLeavesCounterUntouched(t *testing.T) {
	fx := newGateFixture(t, "secreta123")

	_, err := fx.svc.Login(context.Background(), loginReq("ghost", "whatever1", "192.168.1.50", "Chrome/1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)

	failures := fx.audit.byAction(models.AuditActionLoginFailure)
	require.Len(t, failures, 1)
	assert.Equal(t, "Credenciales inválidas (usuario inexistente): ghost", failures[0].Details)
	assert.Empty(t, fx.lockout.attempts)
}

func TestLoginUnknownUserAndBadPasswordAreIndistinguishable(t *testing.T) {
	fx := newGateFixture(t, "secreta123")

	_, unknownErr := fx.svc.Login(context.Background(), loginReq("ghost", "whatever1", "192.168.1.50", "Chrome/1"))
	_, badPassErr := fx.svc.Login(context.Background(), loginReq("alice", "wrongpass", "192.168.1.50", "Chrome/1"))

	unknown := appErrors.FromError(unknownErr)
	badPass := appErrors.FromError(badPassErr)
	assert.Equal(t, unknown.Code, badPass.Code)
	assert.Equal(t, unknown.Status, badPass.Status)
	assert.Equal(t, unknown.Message, badPass.Message)
}

func TestThreeFailuresLockTheAccount(t *testing.T) {
	fx := newGateFixture(t, "secreta123")
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := fx.svc.Login(ctx, loginReq("alice", "wrongpass", "192.168.1.50", "Chrome/1"))
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
	}

	_, err := fx.svc.Login(ctx, loginReq("alice", "wrongpass", "192.168.1.50", "Chrome/1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAccountLocked.Code, appErr.Code)
	assert.False(t, fx.users.user.Active)

	failures := fx.audit.byAction(models.AuditActionLoginFailure)
	require.Len(t, failures, 3)
	assert.Equal(t, "Intento fallido 1/3 para: alice", failures[0].Details)
	assert.Equal(t, "Intento fallido 2/3 para: alice", failures[1].Details)
	assert.Equal(t, "USUARIO BLOQUEADO tras 3 intentos: alice", failures[2].Details)

	// The correct password no longer helps once the account is locked.
	_, err = fx.svc.Login(ctx, loginReq("alice", "secreta123", "192.168.1.50", "Chrome/1"))
	require.Error(t, err)
	appErr = appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAccountLocked.Code, appErr.Code)
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	fx := newGateFixture(t, "secreta123")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := fx.svc.Login(ctx, loginReq("alice", "wrongpass", "192.168.1.50", "Chrome/1"))
		require.Error(t, err)
	}
	assert.Equal(t, 2, fx.lockout.attempts["u1"])

	_, err := fx.svc.Login(ctx, loginReq("alice", "secreta123", "192.168.1.50", "Chrome/1"))
	require.NoError(t, err)
	assert.Equal(t, 0, fx.lockout.attempts["u1"])
}

func TestSessionConflictPreservesHolder(t *testing.T) {
	fx := newGateFixture(t, "secreta123")
	ctx := context.Background()

	_, err := fx.svc.Login(ctx, loginReq("alice", "secreta123", "192.168.1.50", "Chrome/1"))
	require.NoError(t, err)

	_, err = fx.svc.Login(ctx, loginReq("alice", "secreta123", "192.168.1.50", "Firefox/2"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSessionConflict.Code, appErr.Code)

	holder := fx.sessions.holders["192.168.1.50"]
	require.NotNil(t, holder)
	assert.True(t, holder.Active)
	assert.Equal(t, "Chrome/1", holder.ClientSignature)

	// The historical double write on a rejected duplicate session.
	assert.Len(t, fx.audit.byAction(models.AuditActionLoginSuccess), 2)
	duplicates := fx.audit.byAction(models.AuditActionDuplicateSession)
	require.Len(t, duplicates, 1)
	assert.Contains(t, duplicates[0].Details, "segunda sesión")
}

func TestLogoutReleasesSlotAndAllowsNewSignature(t *testing.T) {
	fx := newGateFixture(t, "secreta123")
	ctx := context.Background()

	res, err := fx.svc.Login(ctx, loginReq("alice", "secreta123", "192.168.1.50", "Chrome/1"))
	require.NoError(t, err)

	err = fx.svc.Logout(ctx, "192.168.1.50", res.RefreshToken, fx.users.user)
	require.NoError(t, err)
	assert.Contains(t, fx.sessions.released, "192.168.1.50")
	assert.True(t, fx.users.refreshTokens[res.RefreshToken].Revoked)

	logouts := fx.audit.byAction(models.AuditActionLogout)
	require.Len(t, logouts, 1)
	assert.Equal(t, "El usuario alice cerró sesión", logouts[0].Details)

	_, err = fx.svc.Login(ctx, loginReq("alice", "secreta123", "192.168.1.50", "Firefox/2"))
	require.NoError(t, err)
	assert.Equal(t, "Firefox/2", fx.sessions.holders["192.168.1.50"].ClientSignature)
}

func TestLogoutUnauthenticatedWritesNoAudit(t *testing.T) {
	fx := newGateFixture(t, "secreta123")

	err := fx.svc.Logout(context.Background(), "192.168.1.50", "", nil)
	require.NoError(t, err)
	assert.Contains(t, fx.sessions.released, "192.168.1.50")
	assert.Empty(t, fx.audit.entries)
}

func TestWarnForcesLogout(t *testing.T) {
	fx := newGateFixture(t, "secreta123")
	ctx := context.Background()

	_, err := fx.svc.Login(ctx, loginReq("alice", "secreta123", "192.168.1.50", "Chrome/1"))
	require.NoError(t, err)

	err = fx.svc.Warn(ctx, "192.168.1.50", fx.users.user)
	require.NoError(t, err)
	assert.Contains(t, fx.sessions.released, "192.168.1.50")
	assert.True(t, fx.users.revokedAll)

	warns := fx.audit.byAction(models.AuditActionWarnLogout)
	require.Len(t, warns, 1)
	assert.Equal(t, "El usuario alice salió del sistema. IP: 192.168.1.50", warns[0].Details)
}

func TestWarnAnonymousLeavesHolderUntouched(t *testing.T) {
	fx := newGateFixture(t, "secreta123")
	ctx := context.Background()

	_, err := fx.svc.Login(ctx, loginReq("alice", "secreta123", "192.168.1.50", "Chrome/1"))
	require.NoError(t, err)

	require.NoError(t, fx.svc.Warn(ctx, "192.168.1.50", nil))

	assert.Empty(t, fx.sessions.released)
	assert.False(t, fx.users.revokedAll)
	assert.Empty(t, fx.audit.byAction(models.AuditActionWarnLogout))

	// The holder's claim is still exclusive afterwards.
	claimed, err := fx.sessions.Claim(ctx, "192.168.1.50", "Firefox/2")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestChangePasswordClearsMandatoryFlag(t *testing.T) {
	fx := newGateFixture(t, "secreta123")
	fx.lockout.mustChange = map[string]bool{"u1": true}
	ctx := context.Background()

	res, err := fx.svc.Login(ctx, loginReq("alice", "secreta123", "192.168.1.50", "Chrome/1"))
	require.NoError(t, err)
	assert.True(t, res.PasswordChangeRequired)

	err = fx.svc.ChangePassword(ctx, "u1", "192.168.1.50", models.ChangePasswordRequest{
		OldPassword: "secreta123",
		NewPassword: "nueva456",
	})
	require.NoError(t, err)
	assert.False(t, fx.lockout.mustChange["u1"])
	assert.True(t, fx.users.revokedAll)

	changes := fx.audit.byAction(models.AuditActionPasswordChange)
	require.Len(t, changes, 1)

	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(fx.users.user.PasswordHash), []byte("nueva456")))
}

func TestChangePasswordRejectsWrongOldPassword(t *testing.T) {
	fx := newGateFixture(t, "secreta123")

	err := fx.svc.ChangePassword(context.Background(), "u1", "192.168.1.50", models.ChangePasswordRequest{
		OldPassword: "wrongpass",
		NewPassword: "nueva456",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	fx := newGateFixture(t, "secreta123")
	ctx := context.Background()

	res, err := fx.svc.Login(ctx, loginReq("alice", "secreta123", "192.168.1.50", "Chrome/1"))
	require.NoError(t, err)

	rotated, err := fx.svc.RefreshToken(ctx, res.RefreshToken, "192.168.1.50", "Chrome/1")
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, rotated.RefreshToken)
	assert.True(t, fx.users.refreshTokens[res.RefreshToken].Revoked)

	_, err = fx.svc.RefreshToken(ctx, res.RefreshToken, "192.168.1.50", "Chrome/1")
	require.Error(t, err)
}
