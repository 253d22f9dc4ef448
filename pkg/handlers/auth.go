package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"teamhub-backend/pkg/config"
	"teamhub-backend/pkg/database"
	"teamhub-backend/pkg/middleware"
	"teamhub-backend/pkg/models"
	"teamhub-backend/pkg/utils"
)

// AuthHandler owns registration, login, token refresh, two-factor and
// the OAuth code exchange.
type AuthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	jwt    *utils.JWTService
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(cfg *config.Config, db database.DatabaseInterface) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		db:     db,
		jwt:    utils.NewJWTService(cfg.JWTSecret),
	}
}

// issueTokens mints a token pair and records the refresh token's session.
func (h *AuthHandler) issueTokens(r *http.Request, user *models.User) (*models.UserLoginResponse, error) {
	accessToken, refreshToken, expiresIn, err := h.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:           user.ID,
		RefreshTokenHash: utils.HashToken(refreshToken),
		UserAgent:        r.UserAgent(),
		IP:               middleware.ClientIP(r),
		ExpiresAt:        time.Now().Add(utils.RefreshTokenTTL),
	}
	if err := h.db.CreateSession(session); err != nil {
		return nil, err
	}

	return &models.UserLoginResponse{
		User:         *user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

// Register creates an account with a bcrypt-hashed password and logs it
// straight in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.UserRegisterRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid registration request", err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to process password")
		return
	}

	user := &models.User{
		Email:    req.Email,
		Password: string(hash),
		Name:     req.Name,
		Provider: "email",
	}
	if err := h.db.CreateUser(user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "An account with this email already exists")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to create user")
		return
	}

	resp, err := h.issueTokens(r, user)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to issue tokens")
		return
	}
	utils.WriteCreatedResponse(w, resp)
}

// Login checks the password. Accounts with two-factor enabled get a
// short-lived pending token instead of the real pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid login request", err.Error())
		return
	}

	user, err := h.db.GetUserByEmail(req.Email)
	if err != nil {
		// Same answer for unknown email and wrong password.
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}
	if user.Disabled {
		utils.WriteForbiddenResponse(w, "This account has been disabled")
		return
	}

	if user.TOTPEnabled {
		pending, err := h.jwt.GenerateTwoFactorToken(user.ID, user.Email)
		if err != nil {
			utils.WriteInternalServerErrorResponse(w, "Failed to issue token")
			return
		}
		utils.WriteSuccessResponse(w, &models.UserLoginResponse{
			User:              *user,
			TwoFactorRequired: true,
			PendingToken:      pending,
		})
		return
	}

	resp, err := h.issueTokens(r, user)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to issue tokens")
		return
	}
	utils.WriteSuccessResponse(w, resp)
}

// TwoFactorVerify exchanges a pending token plus a TOTP code for a full
// token pair.
func (h *AuthHandler) TwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	var req models.TwoFactorVerifyRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid verification request", err.Error())
		return
	}

	claims, err := h.jwt.ValidateTwoFactorToken(req.PendingToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid or expired pending token")
		return
	}

	user, err := h.db.GetUserByID(claims.UserID)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid or expired pending token")
		return
	}
	if user.Disabled {
		utils.WriteForbiddenResponse(w, "This account has been disabled")
		return
	}
	if !user.TOTPEnabled || !utils.ValidateTOTP(user.TOTPSecret, req.Code, time.Now()) {
		utils.WriteUnauthorizedResponse(w, "Invalid verification code")
		return
	}

	resp, err := h.issueTokens(r, user)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to issue tokens")
		return
	}
	utils.WriteSuccessResponse(w, resp)
}

// TwoFactorSetup generates a fresh secret for the authenticated user.
// The secret stays inactive until confirmed via TwoFactorEnable.
func (h *AuthHandler) TwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	secret, err := utils.GenerateTOTPSecret()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate secret")
		return
	}
	if err := h.db.SetUserTOTP(user.ID, secret, false); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to store secret")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"secret":           secret,
		"provisioning_uri": utils.TOTPProvisioningURI("TeamHub", user.Email, secret),
	})
}

// TwoFactorEnable turns two-factor on after the user proves they hold
// the secret from setup.
func (h *AuthHandler) TwoFactorEnable(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.TwoFactorCodeRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid code", err.Error())
		return
	}

	full, err := h.db.GetUserByID(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load user")
		return
	}
	if full.TOTPSecret == "" {
		utils.WriteBadRequestResponse(w, "Run two-factor setup first")
		return
	}
	if !utils.ValidateTOTP(full.TOTPSecret, req.Code, time.Now()) {
		utils.WriteUnauthorizedResponse(w, "Invalid verification code")
		return
	}

	if err := h.db.SetUserTOTP(user.ID, full.TOTPSecret, true); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to enable two-factor")
		return
	}
	utils.WriteSuccessResponse(w, map[string]bool{"totp_enabled": true})
}

// TwoFactorDisable turns two-factor off, gated on a current code.
func (h *AuthHandler) TwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.TwoFactorCodeRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid code", err.Error())
		return
	}

	full, err := h.db.GetUserByID(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load user")
		return
	}
	if !full.TOTPEnabled {
		utils.WriteBadRequestResponse(w, "Two-factor is not enabled")
		return
	}
	if !utils.ValidateTOTP(full.TOTPSecret, req.Code, time.Now()) {
		utils.WriteUnauthorizedResponse(w, "Invalid verification code")
		return
	}

	if err := h.db.SetUserTOTP(user.ID, "", false); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to disable two-factor")
		return
	}
	utils.WriteSuccessResponse(w, map[string]bool{"totp_enabled": false})
}

// RefreshToken rotates a refresh token. The old session is revoked and a
// new pair issued, so a leaked token stops working the first time the
// real client refreshes.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		utils.WriteBadRequestResponse(w, "refresh_token is required")
		return
	}

	claims, err := h.jwt.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid or expired refresh token")
		return
	}

	session, err := h.db.GetSessionByTokenHash(utils.HashToken(req.RefreshToken))
	if err != nil || !session.Active(time.Now()) {
		utils.WriteUnauthorizedResponse(w, "Session has been revoked")
		return
	}

	user, err := h.db.GetUserByID(claims.UserID)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid or expired refresh token")
		return
	}
	if user.Disabled {
		utils.WriteForbiddenResponse(w, "This account has been disabled")
		return
	}

	if err := h.db.RevokeSession(session.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to rotate session")
		return
	}
	resp, err := h.issueTokens(r, user)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to issue tokens")
		return
	}
	utils.WriteSuccessResponse(w, resp)
}

// Logout revokes the session behind the presented refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		utils.WriteBadRequestResponse(w, "refresh_token is required")
		return
	}

	session, err := h.db.GetSessionByTokenHash(utils.HashToken(req.RefreshToken))
	if err == nil {
		_ = h.db.RevokeSession(session.ID)
	}
	// Logout is idempotent: an unknown token still gets a 200.
	utils.WriteSuccessResponse(w, map[string]string{"status": "logged_out"})
}

// ListSessions shows the caller's sessions so they can spot and revoke
// unfamiliar devices.
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	sessions, err := h.db.ListUserSessions(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list sessions")
		return
	}
	utils.WriteSuccessResponse(w, sessions)
}

// RevokeSession revokes one of the caller's own sessions.
func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	sessions, err := h.db.ListUserSessions(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load sessions")
		return
	}
	for _, s := range sessions {
		if s.ID == sessionID {
			if err := h.db.RevokeSession(s.ID); err != nil && !errors.Is(err, database.ErrNotFound) {
				utils.WriteInternalServerErrorResponse(w, "Failed to revoke session")
				return
			}
			utils.WriteSuccessResponse(w, map[string]string{"status": "revoked"})
			return
		}
	}
	utils.WriteNotFoundResponse(w, "Session not found")
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	full, err := h.db.GetUserByID(user.ID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}
	utils.WriteSuccessResponse(w, full)
}

// ---- OAuth ----

// OAuthRequest carries the authorization code the frontend received.
type OAuthRequest struct {
	Code  string `json:"code"`
	State string `json:"state,omitempty"`
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type googleUser struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type githubTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

type githubUser struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// GoogleOAuth exchanges a Google authorization code for a login.
func (h *AuthHandler) GoogleOAuth(w http.ResponseWriter, r *http.Request) {
	var req OAuthRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Code == "" {
		utils.WriteBadRequestResponse(w, "Authorization code is required")
		return
	}

	accessToken, err := h.exchangeGoogleCode(req.Code)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Failed to exchange authorization code")
		return
	}
	info, err := h.getGoogleUserInfo(accessToken)
	if err != nil || info.Email == "" {
		utils.WriteUnauthorizedResponse(w, "Failed to fetch user info")
		return
	}

	h.finishOAuthLogin(w, r, info.Email, info.Name, info.Picture, "google")
}

// GitHubOAuth exchanges a GitHub authorization code for a login.
func (h *AuthHandler) GitHubOAuth(w http.ResponseWriter, r *http.Request) {
	var req OAuthRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Code == "" {
		utils.WriteBadRequestResponse(w, "Authorization code is required")
		return
	}

	accessToken, err := h.exchangeGitHubCode(req.Code)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Failed to exchange authorization code")
		return
	}
	info, err := h.getGitHubUserInfo(accessToken)
	if err != nil || info.Email == "" {
		utils.WriteUnauthorizedResponse(w, "Failed to fetch user info")
		return
	}
	name := info.Name
	if name == "" {
		name = info.Login
	}

	h.finishOAuthLogin(w, r, info.Email, name, info.AvatarURL, "github")
}

// GoogleOAuthCallback handles the browser redirect leg of the Google
// flow. The provider calls back with ?code, and the result lands on the
// frontend callback URL when one is configured.
func (h *AuthHandler) GoogleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code, ok := h.callbackCode(w, r, "Google")
	if !ok {
		return
	}
	accessToken, err := h.exchangeGoogleCode(code)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Failed to exchange authorization code")
		return
	}
	info, err := h.getGoogleUserInfo(accessToken)
	if err != nil || info.Email == "" {
		utils.WriteUnauthorizedResponse(w, "Failed to fetch user info")
		return
	}
	h.finishOAuthCallback(w, r, info.Email, info.Name, info.Picture, "google")
}

// GitHubOAuthCallback handles the browser redirect leg of the GitHub flow.
func (h *AuthHandler) GitHubOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code, ok := h.callbackCode(w, r, "GitHub")
	if !ok {
		return
	}
	accessToken, err := h.exchangeGitHubCode(code)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Failed to exchange authorization code")
		return
	}
	info, err := h.getGitHubUserInfo(accessToken)
	if err != nil || info.Email == "" {
		utils.WriteUnauthorizedResponse(w, "Failed to fetch user info")
		return
	}
	name := info.Name
	if name == "" {
		name = info.Login
	}
	h.finishOAuthCallback(w, r, info.Email, name, info.AvatarURL, "github")
}

func (h *AuthHandler) callbackCode(w http.ResponseWriter, r *http.Request, provider string) (string, bool) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		utils.WriteBadRequestResponse(w, provider+" OAuth error: "+errParam)
		return "", false
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		utils.WriteBadRequestResponse(w, "Missing "+provider+" authorization code")
		return "", false
	}
	return code, true
}

// finishOAuthCallback resolves the login the same way finishOAuthLogin
// does, then redirects to the frontend callback URL with the outcome in
// the fragment so tokens stay out of server logs. Without a configured
// frontend it falls back to the JSON envelope.
func (h *AuthHandler) finishOAuthCallback(w http.ResponseWriter, r *http.Request, email, name, avatar, provider string) {
	if h.config.FrontendCallback == "" {
		h.finishOAuthLogin(w, r, email, name, avatar, provider)
		return
	}

	user, err := h.findOrCreateUser(strings.ToLower(email), name, avatar, provider)
	if err != nil {
		http.Redirect(w, r, h.config.FrontendCallback+"#error=login_failed", http.StatusFound)
		return
	}
	if user.Disabled {
		http.Redirect(w, r, h.config.FrontendCallback+"#error=account_disabled", http.StatusFound)
		return
	}

	frag := url.Values{}
	if user.TOTPEnabled {
		pending, err := h.jwt.GenerateTwoFactorToken(user.ID, user.Email)
		if err != nil {
			http.Redirect(w, r, h.config.FrontendCallback+"#error=login_failed", http.StatusFound)
			return
		}
		frag.Set("two_factor_required", "true")
		frag.Set("pending_token", pending)
	} else {
		resp, err := h.issueTokens(r, user)
		if err != nil {
			http.Redirect(w, r, h.config.FrontendCallback+"#error=login_failed", http.StatusFound)
			return
		}
		frag.Set("access_token", resp.AccessToken)
		frag.Set("refresh_token", resp.RefreshToken)
	}
	http.Redirect(w, r, h.config.FrontendCallback+"#"+frag.Encode(), http.StatusFound)
}

// finishOAuthLogin finds or creates the account and issues tokens.
// Two-factor applies to OAuth logins the same as password logins.
func (h *AuthHandler) finishOAuthLogin(w http.ResponseWriter, r *http.Request, email, name, avatar, provider string) {
	user, err := h.findOrCreateUser(strings.ToLower(email), name, avatar, provider)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to resolve user")
		return
	}
	if user.Disabled {
		utils.WriteForbiddenResponse(w, "This account has been disabled")
		return
	}

	if user.TOTPEnabled {
		pending, err := h.jwt.GenerateTwoFactorToken(user.ID, user.Email)
		if err != nil {
			utils.WriteInternalServerErrorResponse(w, "Failed to issue token")
			return
		}
		utils.WriteSuccessResponse(w, &models.UserLoginResponse{
			User:              *user,
			TwoFactorRequired: true,
			PendingToken:      pending,
		})
		return
	}

	resp, err := h.issueTokens(r, user)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to issue tokens")
		return
	}
	utils.WriteSuccessResponse(w, resp)
}

func (h *AuthHandler) findOrCreateUser(email, name, avatar, provider string) (*models.User, error) {
	user, err := h.db.GetUserByEmail(email)
	if err == nil {
		// Backfill profile fields the provider knows better.
		changed := false
		if user.Name == "" && name != "" {
			user.Name = name
			changed = true
		}
		if user.Avatar == "" && avatar != "" {
			user.Avatar = avatar
			changed = true
		}
		if changed {
			if err := h.db.UpdateUser(user); err != nil {
				return nil, err
			}
		}
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	user = &models.User{
		Email:    email,
		Name:     name,
		Avatar:   avatar,
		Provider: provider,
	}
	if err := h.db.CreateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (h *AuthHandler) exchangeGoogleCode(code string) (string, error) {
	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", h.config.GoogleClientID)
	data.Set("client_secret", h.config.GoogleClientSecret)
	data.Set("redirect_uri", h.config.OAuthRedirectURI)
	data.Set("grant_type", "authorization_code")

	resp, err := http.PostForm("https://oauth2.googleapis.com/token", data)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var token googleTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return token.AccessToken, nil
}

func (h *AuthHandler) getGoogleUserInfo(accessToken string) (*googleUser, error) {
	req, err := http.NewRequest(http.MethodGet, "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var info googleUser
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	return &info, nil
}

func (h *AuthHandler) exchangeGitHubCode(code string) (string, error) {
	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", h.config.GitHubClientID)
	data.Set("client_secret", h.config.GitHubClientSecret)

	req, err := http.NewRequest(http.MethodPost, "https://github.com/login/oauth/access_token",
		strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	var token githubTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return token.AccessToken, nil
}

func (h *AuthHandler) getGitHubUserInfo(accessToken string) (*githubUser, error) {
	req, err := http.NewRequest(http.MethodGet, "https://api.github.com/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user endpoint returned %d", resp.StatusCode)
	}

	var info githubUser
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}

	// The public profile may hide the email; fall back to the emails API.
	if info.Email == "" {
		if email, err := h.getGitHubPrimaryEmail(accessToken); err == nil {
			info.Email = email
		}
	}
	return &info, nil
}

func (h *AuthHandler) getGitHubPrimaryEmail(accessToken string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, "https://api.github.com/user/emails", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", fmt.Errorf("no verified primary email")
}

// HealthCheck reports service and database health.
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "ok"
	if err := h.db.HealthCheck(); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"status":      status,
		"database":    dbStatus,
		"environment": h.config.Environment,
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}
