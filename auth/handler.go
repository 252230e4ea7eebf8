// Package auth implements accounts, password and one-time-code login, and
// the JWT middleware used by every authenticated route.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"openstream/db"
	"openstream/httputil"
	"openstream/logging"
	"openstream/validation"
)

const maxPasswordLen = 72 // bcrypt truncates at 72 bytes

// Handler holds dependencies for authentication endpoints.
type Handler struct {
	DB        *db.CompatDB
	JWTSecret string
	TokenTTL  time.Duration
	CodeTTL   time.Duration
	Mailer    Mailer
	Now       func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) codeTTL() time.Duration {
	if h.CodeTTL > 0 {
		return h.CodeTTL
	}
	return DefaultCodeTTL
}

func (h *Handler) mailer() Mailer {
	if h.Mailer == nil {
		return LogMailer{}
	}
	return h.Mailer
}

// decodeValid decodes the JSON body into dst and validates it, writing a 400
// on failure.
func decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(w, r, dst); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validation.Struct(dst); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (h *Handler) writeToken(w http.ResponseWriter, status int, userID string) {
	token, err := GenerateToken(userID, h.JWTSecret, h.TokenTTL)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	httputil.WriteJSON(w, status, map[string]string{"token": token, "user_id": userID})
}

// RegisterRequest is the JSON body for POST /api/auth/register.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=32"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// HandleRegister creates a new user account with its profile.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeValid(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	userID := uuid.New().String()
	err = db.WithTx(r.Context(), h.DB, func(conn *db.CompatConn) error {
		if _, err := conn.ExecContext(r.Context(),
			`INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`,
			userID, req.Email, string(hash)); err != nil {
			return err
		}
		_, err := conn.ExecContext(r.Context(),
			`INSERT INTO profiles (id, username, display_name) VALUES (?, ?, ?)`,
			userID, req.Username, req.Username)
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			httputil.WriteError(w, http.StatusConflict, "username or email already taken")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("register failed")
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	logging.Ctx(r.Context()).Info().Str("user_id", userID).Msg("user registered")
	h.writeToken(w, http.StatusCreated, userID)
}

// LoginRequest is the JSON body for POST /api/auth/login. Username may also
// hold the account email.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin authenticates an existing user.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeValid(w, r, &req) {
		return
	}

	var userID string
	var hash sql.NullString
	err := h.DB.QueryRowContext(r.Context(), `
		SELECT u.id, u.password_hash FROM users u
		LEFT JOIN profiles p ON p.id = u.id
		WHERE p.username = ? OR u.email = ?`,
		strings.TrimSpace(req.Username), normalizeEmail(req.Username),
	).Scan(&userID, &hash)
	if err != nil || !hash.Valid || len(req.Password) > maxPasswordLen {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(req.Password)); err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.writeToken(w, http.StatusOK, userID)
}

// CodeRequest is the JSON body for POST /api/auth/otp.
type CodeRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"omitempty,oneof=login recovery"`
}

// HandleRequestCode mails a one-time code. It answers 202 whether or not the
// address belongs to an account.
func (h *Handler) HandleRequestCode(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if req.Purpose == "" {
		req.Purpose = PurposeLogin
	}
	accepted := map[string]string{"status": "code sent if the account exists"}

	ctx := r.Context()
	log := logging.Ctx(ctx)
	userID, err := h.userByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Msg("code lookup failed")
		}
		httputil.WriteJSON(w, http.StatusAccepted, accepted)
		return
	}

	code, err := issueCode(ctx, h.DB, userID, req.Purpose, h.codeTTL(), h.now())
	if err != nil {
		log.Error().Err(err).Msg("issue code failed")
		httputil.WriteError(w, http.StatusInternalServerError, "failed to issue code")
		return
	}
	subject := "Your OpenStream sign-in code"
	if req.Purpose == PurposeRecovery {
		subject = "Your OpenStream password recovery code"
	}
	body := "Your code is " + code + ". It expires in " + h.codeTTL().String() + "."
	if err := h.mailer().Send(ctx, normalizeEmail(req.Email), subject, body); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("code delivery failed")
	}
	httputil.WriteJSON(w, http.StatusAccepted, accepted)
}

// VerifyCodeRequest is the JSON body for POST /api/auth/otp/verify. Recovery
// codes must carry the new password.
type VerifyCodeRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Code            string `json:"code" validate:"required,len=6,numeric"`
	Purpose         string `json:"purpose" validate:"omitempty,oneof=login recovery"`
	Password        string `json:"password" validate:"omitempty,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password"`
}

// HandleVerifyCode exchanges a one-time code for a token.
func (h *Handler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if req.Purpose == "" {
		req.Purpose = PurposeLogin
	}
	if req.Purpose == PurposeRecovery {
		if req.Password == "" {
			httputil.WriteError(w, http.StatusBadRequest, "password is required")
			return
		}
		if req.ConfirmPassword != req.Password {
			httputil.WriteError(w, http.StatusBadRequest, "confirm_password must match password")
			return
		}
	}

	ctx := r.Context()
	userID, err := h.userByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, ErrInvalidCode.Error())
		return
	}
	if err := consumeCode(ctx, h.DB, userID, req.Purpose, req.Code, h.now()); err != nil {
		if !errors.Is(err, ErrInvalidCode) {
			logging.Ctx(ctx).Error().Err(err).Msg("verify code failed")
		}
		httputil.WriteError(w, http.StatusUnauthorized, ErrInvalidCode.Error())
		return
	}
	if req.Purpose == PurposeRecovery {
		if err := h.setPassword(ctx, userID, req.Password); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("password reset failed")
			httputil.WriteError(w, http.StatusInternalServerError, "failed to update password")
			return
		}
		logging.Ctx(ctx).Info().Str("user_id", userID).Msg("password recovered")
	}
	h.writeToken(w, http.StatusOK, userID)
}

// PasswordRequest is the JSON body for PUT /api/auth/password.
type PasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// HandleChangePassword replaces the signed-in user's password.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := ExtractUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req PasswordRequest
	if !decodeValid(w, r, &req) {
		return
	}

	var hash sql.NullString
	err := h.DB.QueryRowContext(r.Context(), `SELECT password_hash FROM users WHERE id = ?`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !hash.Valid || len(req.CurrentPassword) > maxPasswordLen ||
		bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(req.CurrentPassword)) != nil {
		httputil.WriteError(w, http.StatusForbidden, "current password is incorrect")
		return
	}
	if err := h.setPassword(r.Context(), userID, req.Password); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update password")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// Session describes the signed-in user.
type Session struct {
	UserID      string  `json:"user_id"`
	Email       string  `json:"email"`
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	IsAdmin     bool    `json:"is_admin"`
	IsModerator bool    `json:"is_moderator"`
}

// HandleSession returns the current session's user.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := ExtractUserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var s Session
	var isAdmin, isModerator sql.NullBool
	err := h.DB.QueryRowContext(r.Context(), `
		SELECT u.id, u.email, p.username, p.display_name, p.is_admin, p.is_moderator
		FROM users u LEFT JOIN profiles p ON p.id = u.id
		WHERE u.id = ?`, userID,
	).Scan(&s.UserID, &s.Email, &s.Username, &s.DisplayName, &isAdmin, &isModerator)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, http.StatusUnauthorized, "session user no longer exists")
		return
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.IsAdmin, s.IsModerator = isAdmin.Bool, isModerator.Bool
	httputil.WriteJSON(w, http.StatusOK, s)
}

func (h *Handler) userByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := h.DB.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, email).Scan(&id)
	return id, err
}

func (h *Handler) setPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = h.DB.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, string(hash), userID)
	return err
}
