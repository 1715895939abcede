package services

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/internal/repository"
	appErr "github.com/comfydeploy/engine/pkg/errors"
	"github.com/comfydeploy/engine/pkg/logger"
)

// MachineTokenTTL is the lifetime of a machine access token.
const MachineTokenTTL = 7 * 24 * time.Hour

// MachineClaims is the payload of a machine access token. The token carries
// the caller identity only: it is not bound to a version or a machine.
type MachineClaims struct {
	UserID string  `json:"user_id"`
	OrgID  *string `json:"org_id"`
	jwt.RegisteredClaims
}

// SessionClaims is the payload of a session token issued by the identity provider.
// The name claims feed the local directory used for display names.
type SessionClaims struct {
	OrgID    string `json:"org_id,omitempty"`
	OrgName  string `json:"org_name,omitempty"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// AuthService signs machine access tokens and resolves bearer credentials
// into caller identities.
type AuthService interface {
	MintMachineToken(caller identity.Identity) (string, time.Time, error)
	ParseMachineToken(token string) (*MachineClaims, error)
	// Authenticate resolves a bearer credential: a session JWT or an API key secret.
	Authenticate(ctx context.Context, bearer string) (identity.Identity, error)
	// AuthenticateMachine resolves a machine access token into the identity it was minted for.
	AuthenticateMachine(token string) (identity.Identity, error)
}

type authService struct {
	apiKeys       repository.APIKeyRepository
	directory     repository.DirectoryRepository
	sessionSecret []byte
	machineSecret []byte
	now           func() time.Time
}

// NewAuthService builds the AuthService. directory may be nil, in which case
// session name claims are not recorded.
func NewAuthService(apiKeys repository.APIKeyRepository, directory repository.DirectoryRepository, sessionSecret, machineSecret []byte) AuthService {
	return &authService{
		apiKeys:       apiKeys,
		directory:     directory,
		sessionSecret: sessionSecret,
		machineSecret: machineSecret,
		now:           time.Now,
	}
}

func (s *authService) MintMachineToken(caller identity.Identity) (string, time.Time, error) {
	if !caller.Authenticated() {
		return "", time.Time{}, appErr.Unauthenticated()
	}
	now := s.now()
	exp := now.Add(MachineTokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, MachineClaims{
		UserID: caller.UserID,
		OrgID:  models.OrgRef(caller.OrgID),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := token.SignedString(s.machineSecret)
	if err != nil {
		return "", time.Time{}, appErr.Upstream(err, "sign machine token failed")
	}
	return signed, exp, nil
}

func (s *authService) ParseMachineToken(token string) (*MachineClaims, error) {
	var claims MachineClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.machineSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnauthenticated, "invalid machine token")
	}
	return &claims, nil
}

func (s *authService) AuthenticateMachine(token string) (identity.Identity, error) {
	claims, err := s.ParseMachineToken(strings.TrimSpace(token))
	if err != nil {
		return identity.Anonymous, err
	}
	if claims.UserID == "" {
		return identity.Anonymous, appErr.Unauthenticated()
	}
	id := identity.Identity{UserID: claims.UserID}
	if claims.OrgID != nil {
		id.OrgID = *claims.OrgID
	}
	return id, nil
}

func (s *authService) Authenticate(ctx context.Context, bearer string) (identity.Identity, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return identity.Anonymous, appErr.Unauthenticated()
	}
	if strings.Count(bearer, ".") == 2 {
		return s.verifySession(ctx, bearer)
	}

	var key models.APIKey
	if err := s.apiKeys.GetActiveByKey(ctx, bearer, &key); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return identity.Anonymous, appErr.Unauthenticated()
		}
		return identity.Anonymous, err
	}
	id := identity.Identity{UserID: key.UserID}
	if key.OrgID != nil {
		id.OrgID = *key.OrgID
	}
	return id, nil
}

func (s *authService) verifySession(ctx context.Context, token string) (identity.Identity, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.sessionSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || claims.Subject == "" {
		return identity.Anonymous, appErr.Wrap(err, appErr.CodeUnauthenticated, "invalid session token")
	}
	s.syncDirectory(ctx, &claims)
	return identity.Identity{UserID: claims.Subject, OrgID: claims.OrgID}, nil
}

// syncDirectory records the names carried by a session so display names
// resolve without a call to the identity provider. Failures do not block sign-in.
func (s *authService) syncDirectory(ctx context.Context, claims *SessionClaims) {
	if s.directory == nil {
		return
	}
	if claims.Username != "" || claims.Name != "" {
		u := &models.User{ID: claims.Subject, Username: claims.Username, Name: claims.Name}
		if err := s.directory.SyncUser(ctx, u); err != nil {
			logger.L().Warn("sync user failed", zap.String("user_id", claims.Subject), zap.Error(err))
		}
	}
	if claims.OrgID != "" && claims.OrgName != "" {
		o := &models.Organization{ID: claims.OrgID, Name: claims.OrgName}
		if err := s.directory.SyncOrganization(ctx, o); err != nil {
			logger.L().Warn("sync organization failed", zap.String("org_id", claims.OrgID), zap.Error(err))
		}
	}
}
