package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
)

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Verified  bool      `json:"verified"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

func viewOf(u *goSession.User) userView {
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      string(u.Role),
		Verified:  u.Verified,
		Level:     goSession.LevelOf(u).String(),
		CreatedAt: u.CreatedAt,
	}
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

// signIn rotates a fresh session for user. A session the caller already
// holds is logged out first so its refresh token does not linger.
func (h *handlers) signIn(ctx context.Context, user *goSession.User) error {
	jar := middleware.JarFromContext(ctx)
	if middleware.IdentityFromContext(ctx).Authenticated() {
		h.engine.Logout(ctx, jar)
	}
	_, err := h.engine.Login(ctx, jar, user, true)
	return err
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}

	ctx := r.Context()
	user, err := h.engine.Register(ctx, body.Username, body.Email, body.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.signIn(ctx, user); err != nil {
		h.writeError(w, r, err)
		return
	}

	sent := true
	if err := h.engine.SendVerificationEmail(ctx, user); err != nil {
		// the account exists either way; the user can ask for a resend
		sent = false
		h.logger.WarnContext(ctx, "verification email after register failed", "user_id", user.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":              viewOf(user),
		"verification_sent": sent,
	})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}

	ctx := r.Context()
	user, err := h.engine.Authenticate(ctx, body.Email, body.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.signIn(ctx, user); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": viewOf(user)})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	h.engine.Logout(r.Context(), middleware.JarFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	param := h.engine.Config().Verification.Param

	user, err := h.engine.ConsumeVerification(ctx, r.URL.Query().Get(param))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.signIn(ctx, user); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": viewOf(user)})
}

func (h *handlers) resendVerification(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if err := h.engine.SendVerificationEmail(r.Context(), id.User); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"verification_sent": true})
}

// ---------------------------------------------------------------------------
// Account
// ---------------------------------------------------------------------------

func (h *handlers) account(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"user": viewOf(id.User)})
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !decode(w, r, &body) {
		return
	}

	id := middleware.IdentityFromContext(r.Context())
	if err := h.engine.ChangePassword(r.Context(), id.UserID(), body.OldPassword, body.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) changeEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}

	ctx := r.Context()
	id := middleware.IdentityFromContext(ctx)
	user, err := h.engine.ChangeEmail(ctx, id.UserID(), body.Password, body.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sent := true
	if err := h.engine.SendVerificationEmail(ctx, user); err != nil {
		sent = false
		h.logger.WarnContext(ctx, "verification email after email change failed", "user_id", user.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":              viewOf(user),
		"verification_sent": sent,
	})
}

func (h *handlers) changeUsername(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if !decode(w, r, &body) {
		return
	}

	id := middleware.IdentityFromContext(r.Context())
	user, err := h.engine.ChangeUsername(r.Context(), id.UserID(), body.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": viewOf(user)})
}

// ---------------------------------------------------------------------------
// Misc
// ---------------------------------------------------------------------------

func (h *handlers) adminPing(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"pong": true, "user_id": id.UserID()})
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

type errorMapping struct {
	target error
	status int
	code   string
}

var errorTable = []errorMapping{
	{goSession.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{goSession.ErrUnchanged, http.StatusBadRequest, "unchanged"},
	{goSession.ErrMissingCredential, http.StatusBadRequest, "missing_token"},
	{goSession.ErrTokenNotFound, http.StatusBadRequest, "invalid_token"},
	{goSession.ErrInvalidSecret, http.StatusBadRequest, "invalid_token"},
	{goSession.ErrTokenExpired, http.StatusGone, "expired_token"},
	{goSession.ErrStaleIdentity, http.StatusUnauthorized, "unauthorized"},
	{goSession.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{goSession.ErrUserNotFound, http.StatusUnauthorized, "unauthorized"},
	{goSession.ErrAccountExists, http.StatusConflict, "account_exists"},
	{goSession.ErrLoginRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{goSession.ErrVerificationRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{goSession.ErrMailDelivery, http.StatusBadGateway, "mail_delivery_failed"},
	{goSession.ErrStoreUnavailable, http.StatusServiceUnavailable, "unavailable"},
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			writeJSON(w, m.status, map[string]string{"error": m.code})
			return
		}
	}
	h.logger.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
}
