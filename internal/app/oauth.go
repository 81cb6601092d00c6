package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kevinnadar22/mongovault/internal/infrastructure/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

const shutdownTimeout = 5 * time.Second

// GoogleOAuthService serves the one-time OAuth flow that produces the
// refresh token the Drive archive store runs on. It is only started when
// the gdrive store is configured with a client secret file.
type GoogleOAuthService struct {
	oauthCfg *oauth2.Config
	logger   *logger.Logger
	server   *http.Server
}

func NewGoogleOAuthService(log *logger.Logger, clientSecretPath string) (*GoogleOAuthService, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if clientSecretPath == "" {
		return nil, errors.New("client secret path cannot be empty")
	}

	raw, err := os.ReadFile(clientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(raw, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file: %w", err)
	}

	return &GoogleOAuthService{oauthCfg: oauthCfg, logger: log}, nil
}

// StartAuthServer serves the consent flow on addr until Shutdown.
func (s *GoogleOAuthService) StartAuthServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/google/drive", s.handleConsent)
	mux.HandleFunc("GET /auth/google/callback", s.handleCallback)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Infof("Google Drive OAuth helper listening on %s", addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("OAuth server error: %v", err)
		}
	}()

	return nil
}

// handleConsent sends the operator to Google's consent page. AccessTypeOffline
// is what makes Google hand back a refresh token.
func (s *GoogleOAuthService) handleConsent(w http.ResponseWriter, r *http.Request) {
	url := s.oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (s *GoogleOAuthService) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code parameter", http.StatusBadRequest)
		return
	}

	token, err := s.oauthCfg.Exchange(r.Context(), code)
	if err != nil {
		http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusInternalServerError)
		return
	}

	if token.RefreshToken == "" {
		// Google only issues a refresh token on the first consent.
		fmt.Fprintln(w, "No refresh token returned. Revoke the app's access in your Google account and authorize again.")
		return
	}

	tokenJSON, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		http.Error(w, "failed to encode token", http.StatusInternalServerError)
		return
	}

	s.logger.Infof("Google Drive refresh token issued")
	fmt.Fprintf(w, "Refresh token:\n%s\n\nFull token JSON (save as your credentials file):\n%s\n", token.RefreshToken, tokenJSON)
}

func (s *GoogleOAuthService) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown OAuth server: %w", err)
	}
	s.logger.Infof("OAuth server stopped")
	return nil
}
