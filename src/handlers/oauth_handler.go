package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/username/smartledger/backend/src/config"
	"github.com/username/smartledger/backend/src/logger"
)

var (
	googleOauthConfig *oauth2.Config
	oauthStateString  string
)

// InitializeGoogleOAuthConfig wires the Google sign-in flow from
// configuration. Must be called after config.LoadConfig.
func InitializeGoogleOAuthConfig() {
	googleOauthConfig = &oauth2.Config{
		RedirectURL:  config.Cfg.GoogleRedirectURL,
		ClientID:     config.Cfg.GoogleClientID,
		ClientSecret: config.Cfg.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		logger.L.Error("Failed to generate OAuth state", "error", err)
	}
	oauthStateString = hex.EncodeToString(buf)
}

func (h *UserHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	url := googleOauthConfig.AuthCodeURL(oauthStateString)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleGoogleCallback exchanges the authorization code, finds or onboards
// the user keyed by their Google account id, and redirects to the frontend
// with our own bearer token.
func (h *UserHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("state") != oauthStateString {
		logger.L.Warn("Invalid OAuth state from Google callback")
		http.Redirect(w, r, config.Cfg.FrontendBaseURL+"/signin?error=invalid_state", http.StatusTemporaryRedirect)
		return
	}

	code := r.FormValue("code")
	token, err := googleOauthConfig.Exchange(context.Background(), code)
	if err != nil {
		logger.L.Error("Failed to exchange code for token", "error", err)
		http.Redirect(w, r, config.Cfg.FrontendBaseURL+"/signin?error=token_exchange_failed", http.StatusTemporaryRedirect)
		return
	}

	response, err := http.Get("https://www.googleapis.com/oauth2/v2/userinfo?access_token=" + token.AccessToken)
	if err != nil {
		logger.L.Error("Failed to get user info from Google", "error", err)
		http.Redirect(w, r, config.Cfg.FrontendBaseURL+"/signin?error=userinfo_failed", http.StatusTemporaryRedirect)
		return
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		logger.L.Error("Failed to read user info response body", "error", err)
		http.Redirect(w, r, config.Cfg.FrontendBaseURL+"/signin?error=userinfo_read_failed", http.StatusTemporaryRedirect)
		return
	}

	var googleUser struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Name     string `json:"name"`
		Verified bool   `json:"verified_email"`
	}
	if err := json.Unmarshal(contents, &googleUser); err != nil {
		logger.L.Error("Failed to unmarshal Google user info", "error", err)
		http.Redirect(w, r, config.Cfg.FrontendBaseURL+"/signin?error=userinfo_parse_failed", http.StatusTemporaryRedirect)
		return
	}

	if !googleUser.Verified {
		http.Redirect(w, r, config.Cfg.FrontendBaseURL+"/signin?error=email_not_verified_by_google", http.StatusTemporaryRedirect)
		return
	}

	uid := "google-" + googleUser.ID
	username := googleUser.Name
	if username == "" {
		username = googleUser.Email
	}
	if err := h.userService.CreateProfile(uid, googleUser.Email, username); err != nil {
		logger.L.Error("Failed to onboard Google user", "uid", uid, "error", err)
		http.Redirect(w, r, config.Cfg.FrontendBaseURL+"/signin?error=user_creation_failed", http.StatusTemporaryRedirect)
		return
	}

	appToken, err := h.authService.GenerateToken(uid, googleUser.Email)
	if err != nil {
		logger.L.Error("Failed to generate app token for Google user", "uid", uid, "error", err)
		http.Redirect(w, r, config.Cfg.FrontendBaseURL+"/signin?error=token_generation_failed", http.StatusTemporaryRedirect)
		return
	}

	redirectURL := fmt.Sprintf("%s/auth/google/callback?token=%s&email=%s",
		config.Cfg.FrontendBaseURL,
		appToken,
		url.QueryEscape(googleUser.Email))
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}
