package auth

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoutil "hrdesk/internal/platform/crypto"
)

type fakeStore struct {
	users    map[string]AuthUser
	sessions map[string]bool
	perms    map[string]bool
	secrets  map[string][]byte
	mfa      map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]AuthUser{},
		sessions: map[string]bool{},
		perms:    map[string]bool{},
		secrets:  map[string][]byte{},
		mfa:      map[string]bool{},
	}
}

func (f *fakeStore) FindActiveUserByEmail(_ context.Context, email string) (AuthUser, error) {
	u, ok := f.users[email]
	if !ok {
		return AuthUser{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) CreateSession(_ context.Context, userID, tokenHash string, _ time.Time) error {
	f.sessions[userID+":"+tokenHash] = true
	return nil
}

func (f *fakeStore) UpdateLastLogin(context.Context, string) error { return nil }

func (f *fakeStore) RevokeSession(_ context.Context, userID, tokenHash string) error {
	delete(f.sessions, userID+":"+tokenHash)
	return nil
}

func (f *fakeStore) SessionValid(_ context.Context, userID, tokenHash string) (bool, error) {
	return f.sessions[userID+":"+tokenHash], nil
}

func (f *fakeStore) HasPermission(_ context.Context, roleID, permission string) (bool, error) {
	return f.perms[roleID+":"+permission], nil
}

func (f *fakeStore) UpdateMFASecret(_ context.Context, userID string, secretEnc []byte) error {
	f.secrets[userID] = secretEnc
	return nil
}

func (f *fakeStore) GetMFASecret(_ context.Context, userID string) ([]byte, error) {
	return f.secrets[userID], nil
}

func (f *fakeStore) SetMFAEnabled(_ context.Context, userID string, enabled bool) error {
	f.mfa[userID] = enabled
	return nil
}

func TestLoginIssuesTokenAndSession(t *testing.T) {
	store := newFakeStore()
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	store.users["hr@example.com"] = AuthUser{ID: "u1", RoleID: "r1", RoleName: RoleHR, Password: hash}

	svc := NewService(store, "test-secret", nil, "hrdesk")
	res, err := svc.Login(context.Background(), "hr@example.com", "s3cret-pass", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	user, err := svc.Authenticate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UserID)
	assert.Equal(t, RoleHR, user.RoleName)

	require.NoError(t, svc.Logout(context.Background(), user))
	_, err = svc.Authenticate(context.Background(), res.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := newFakeStore()
	hash, err := HashPassword("right")
	require.NoError(t, err)
	store.users["hr@example.com"] = AuthUser{ID: "u1", Password: hash}
	svc := NewService(store, "test-secret", nil, "hrdesk")

	_, err = svc.Login(context.Background(), "hr@example.com", "wrong", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), "nobody@example.com", "right", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginWithMFA(t *testing.T) {
	crypto, err := cryptoutil.New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	store := newFakeStore()
	svc := NewService(store, "test-secret", crypto, "hrdesk")

	setup, err := svc.SetupMFA(context.Background(), "u1")
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.ToggleMFA(context.Background(), "u1", code, true))
	assert.True(t, store.mfa["u1"])

	hash, err := HashPassword("pw")
	require.NoError(t, err)
	store.users["a@example.com"] = AuthUser{ID: "u1", Password: hash, MFAEnabled: true, MFASecretEn: store.secrets["u1"]}

	_, err = svc.Login(context.Background(), "a@example.com", "pw", "")
	assert.ErrorIs(t, err, ErrMFARequired)
	_, err = svc.Login(context.Background(), "a@example.com", "pw", "000000x")
	assert.ErrorIs(t, err, ErrMFAInvalid)
	_, err = svc.Login(context.Background(), "a@example.com", "pw", code)
	assert.NoError(t, err)
}

func TestSetupMFARequiresKey(t *testing.T) {
	svc := NewService(newFakeStore(), "s", nil, "hrdesk")
	_, err := svc.SetupMFA(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrMFAUnavailable)
}

func TestRolePermissionsUseKnownKeys(t *testing.T) {
	known := map[string]bool{}
	for _, p := range DefaultPermissions {
		known[p] = true
	}
	for role, perms := range RolePermissions {
		for _, p := range perms {
			assert.True(t, known[p], "role %s references unknown permission %s", role, p)
		}
	}
}
