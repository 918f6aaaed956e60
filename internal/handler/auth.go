package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/rosevale/habitloop/internal/auth"
	"github.com/rosevale/habitloop/internal/email"
	"github.com/rosevale/habitloop/internal/middleware"
	"github.com/rosevale/habitloop/internal/model"
	"github.com/rosevale/habitloop/internal/store"
)

const maxCodeAttempts = 5

type AuthHandler struct {
	users    *store.UserStore
	groups   *store.GroupStore
	sessions *store.SessionStore
	codes    *store.MagicLinkStore
	mailer   *email.Client
	secure   bool
	logger   *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	gs *store.GroupStore,
	ss *store.SessionStore,
	mls *store.MagicLinkStore,
	mailer *email.Client,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:    us,
		groups:   gs,
		sessions: ss,
		codes:    mls,
		mailer:   mailer,
		secure:   secureCookies,
		logger:   logger,
	}
}

// Register starts registration for a new account. The response is the
// same whether or not the email is taken, to prevent enumeration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	accepted := map[string]string{"status": "code_sent"}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusOK, accepted)
		return
	}

	user, err := h.users.Create(req.Email, strings.TrimSpace(req.Name))
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	groupName := user.Name
	if groupName == "" {
		groupName = user.Email
	}
	group, err := h.groups.Create(groupName, true)
	if err != nil {
		h.logger.Error("create personal group", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if _, err := h.groups.AddMember(group.ID, user.ID, "admin"); err != nil {
		h.logger.Error("add member", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	code, err := h.codes.Create(req.Email, "register", &group.ID)
	if err != nil {
		h.logger.Error("create auth code", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.mailer.SendAuthCode(req.Email, code.Token, "register"); err != nil {
		h.logger.Error("send auth code", "error", err)
	}

	writeJSON(w, http.StatusOK, accepted)
}

// Login emails a sign-in code to an existing account. Unknown emails
// get the same response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	// Always report success to prevent user enumeration.
	defer writeJSON(w, http.StatusOK, map[string]string{"status": "code_sent"})

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		return
	}
	if user == nil {
		return
	}

	code, err := h.codes.Create(req.Email, "login", nil)
	if err != nil {
		h.logger.Error("create auth code", "error", err)
		return
	}
	if err := h.mailer.SendAuthCode(req.Email, code.Token, "login"); err != nil {
		h.logger.Error("send auth code", "error", err)
	}
}

// validateCode checks the code for the email, tracking attempts.
// Returns the magic link on success or an error message.
func (h *AuthHandler) validateCode(emailAddr, code string) (*model.MagicLink, string) {
	if emailAddr == "" || code == "" {
		return nil, "email and code are required"
	}

	latest, err := h.codes.GetLatestByEmail(emailAddr)
	if err != nil {
		h.logger.Error("validate code lookup", "error", err)
		return nil, "internal error"
	}
	if latest == nil {
		return nil, "code has expired or already been used"
	}

	if latest.Attempts >= maxCodeAttempts {
		h.codes.MarkUsed(latest.ID)
		return nil, "too many incorrect attempts, request a new code"
	}

	if latest.Token != code {
		attempts, err := h.codes.IncrementAttempts(latest.ID)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if attempts >= maxCodeAttempts {
			h.codes.MarkUsed(latest.ID)
			return nil, "too many incorrect attempts, request a new code"
		}
		return nil, "incorrect code"
	}

	if err := h.codes.MarkUsed(latest.ID); err != nil {
		h.logger.Error("mark used", "error", err)
		return nil, "internal error"
	}
	return latest, ""
}

// Verify exchanges a valid code for a session cookie.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	code, errMsg := h.validateCode(req.Email, strings.TrimSpace(req.Code))
	if errMsg != "" {
		writeError(w, http.StatusUnauthorized, errMsg)
		return
	}

	user, err := h.users.GetByEmail(code.Email)
	if err != nil || user == nil {
		h.logger.Error("verify user lookup", "error", err)
		writeError(w, http.StatusBadRequest, "user not found")
		return
	}

	groups, err := h.groups.ListGroupsForUser(user.ID)
	if err != nil || len(groups) == 0 {
		h.logger.Error("verify groups", "error", err)
		writeError(w, http.StatusBadRequest, "no group found")
		return
	}

	groupID := groups[0].ID
	if code.GroupID != nil {
		groupID = *code.GroupID
	}

	sess, err := h.sessions.Create(user.ID, groupID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "group_id": groupID})
}

// Logout deletes the session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessions.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me returns the authenticated user and active group.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	user, err := h.users.GetByID(ac.UserID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	group, err := h.groups.GetByID(ac.GroupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  user,
		"group": group,
		"role":  ac.Role,
	})
}
