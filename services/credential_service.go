// services/credential_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"callalert-backend/models"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

// CredentialService owns the per-user Google token pair. Callers always
// get a freshly refreshed access token: we refresh unconditionally rather
// than tracking expiry, trading an extra token-endpoint call per poll for
// never handing the calendar gateway a stale credential.
type CredentialService struct {
	db   *gorm.DB
	conf *oauth2.Config
}

func NewCredentialService(db *gorm.DB) *CredentialService {
	return &CredentialService{
		db: db,
		conf: &oauth2.Config{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
			Scopes: []string{
				"openid",
				"email",
				"profile",
				"https://www.googleapis.com/auth/calendar.events",
			},
			Endpoint: google.Endpoint,
		},
	}
}

// OAuthConfig exposes the shared config for the consent-flow handlers.
func (s *CredentialService) OAuthConfig() *oauth2.Config { return s.conf }

// ValidToken returns a currently valid access token for the user. The
// rotated pair is persisted before the token is handed back, so a crash
// after refresh never loses the newest refresh token. A refresh failure
// means the user must re-run the consent flow; callers must not retry
// within the same cycle.
func (s *CredentialService) ValidToken(ctx context.Context, userID uuid.UUID) (string, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return "", fmt.Errorf("looking up user %s: %w", userID, err)
	}
	if user.RefreshToken == "" {
		return "", fmt.Errorf("%w: %s", ErrNoCredential, user.Email)
	}

	// Seeding the token source without an access token forces it to hit
	// the refresh endpoint instead of returning a cached value.
	src := s.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: user.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredentialRefreshFailed, err)
	}

	updates := map[string]interface{}{"access_token": tok.AccessToken}
	if tok.RefreshToken != "" && tok.RefreshToken != user.RefreshToken {
		updates["refresh_token"] = tok.RefreshToken
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return "", fmt.Errorf("%w: persisting refreshed token: %v", ErrCredentialRefreshFailed, err)
	}

	return tok.AccessToken, nil
}
