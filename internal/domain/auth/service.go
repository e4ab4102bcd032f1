package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	cryptoutil "hrdesk/internal/platform/crypto"
)

const SessionTTL = 8 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMFARequired        = errors.New("mfa code required")
	ErrMFAInvalid         = errors.New("invalid mfa code")
	ErrMFAUnavailable     = errors.New("mfa requires encryption key")
	ErrSessionExpired     = errors.New("session expired")
)

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error)
	CreateSession(ctx context.Context, userID, tokenHash string, expires time.Time) error
	UpdateLastLogin(ctx context.Context, userID string) error
	RevokeSession(ctx context.Context, userID, tokenHash string) error
	SessionValid(ctx context.Context, userID, tokenHash string) (bool, error)
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
	UpdateMFASecret(ctx context.Context, userID string, secretEnc []byte) error
	GetMFASecret(ctx context.Context, userID string) ([]byte, error)
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error
}

type LoginResult struct {
	Token string      `json:"token"`
	User  UserContext `json:"-"`
}

type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

type Service struct {
	store  StoreAPI
	secret string
	crypto *cryptoutil.Service
	issuer string
}

func NewService(store StoreAPI, secret string, crypto *cryptoutil.Service, issuer string) *Service {
	return &Service{store: store, secret: secret, crypto: crypto, issuer: issuer}
}

func (s *Service) Login(ctx context.Context, email, password, mfaCode string) (LoginResult, error) {
	user, err := s.store.FindActiveUserByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if user.MFAEnabled {
		if mfaCode == "" {
			return LoginResult{}, ErrMFARequired
		}
		secret, err := s.crypto.DecryptString(user.MFASecretEn)
		if err != nil || secret == "" || !totp.Validate(mfaCode, secret) {
			return LoginResult{}, ErrMFAInvalid
		}
	}

	sessionID, err := randomToken()
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.store.CreateSession(ctx, user.ID, HashToken(sessionID), time.Now().Add(SessionTTL)); err != nil {
		return LoginResult{}, fmt.Errorf("start session: %w", err)
	}

	uc := UserContext{UserID: user.ID, RoleID: user.RoleID, RoleName: user.RoleName, SessionID: sessionID}
	token, err := GenerateToken(s.secret, Claims{UserID: uc.UserID, RoleID: uc.RoleID, RoleName: uc.RoleName, SessionID: sessionID}, SessionTTL)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("update last_login failed", "userId", user.ID, "err", err)
	}
	return LoginResult{Token: token, User: uc}, nil
}

func (s *Service) Logout(ctx context.Context, user UserContext) error {
	if user.SessionID == "" {
		return nil
	}
	return s.store.RevokeSession(ctx, user.UserID, HashToken(user.SessionID))
}

// Authenticate parses a bearer token and checks that its session is still live.
func (s *Service) Authenticate(ctx context.Context, token string) (UserContext, error) {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return UserContext{}, err
	}
	ok, err := s.store.SessionValid(ctx, claims.UserID, HashToken(claims.SessionID))
	if err != nil {
		return UserContext{}, err
	}
	if !ok {
		return UserContext{}, ErrSessionExpired
	}
	return UserContext{UserID: claims.UserID, RoleID: claims.RoleID, RoleName: claims.RoleName, SessionID: claims.SessionID}, nil
}

func (s *Service) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	return s.store.HasPermission(ctx, roleID, permission)
}

func (s *Service) SetupMFA(ctx context.Context, userID string) (MFASetup, error) {
	if !s.crypto.Configured() {
		return MFASetup{}, ErrMFAUnavailable
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: userID,
		Period:      30,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return MFASetup{}, err
	}
	encrypted, err := s.crypto.Encrypt([]byte(key.Secret()))
	if err != nil {
		return MFASetup{}, err
	}
	if err := s.store.UpdateMFASecret(ctx, userID, encrypted); err != nil {
		return MFASetup{}, err
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// ToggleMFA enables or disables the second factor after checking a current code.
func (s *Service) ToggleMFA(ctx context.Context, userID, code string, enabled bool) error {
	if !s.crypto.Configured() {
		return ErrMFAUnavailable
	}
	secretEnc, err := s.store.GetMFASecret(ctx, userID)
	if err != nil || len(secretEnc) == 0 {
		return ErrMFAInvalid
	}
	secret, err := s.crypto.DecryptString(secretEnc)
	if err != nil || !totp.Validate(code, secret) {
		return ErrMFAInvalid
	}
	return s.store.SetMFAEnabled(ctx, userID, enabled)
}

func randomToken() (string, error) {
	buff := make([]byte, 32)
	if _, err := rand.Read(buff); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buff), nil
}
