/*
Package handler provides HTTP handler functions for account registration and sessions.
*/
package handler

import (
	"net/http"

	"roomlink/internal/pkg/auth/jwt"
	"roomlink/internal/pkg/errs"
	"roomlink/internal/pkg/logx"
	"roomlink/internal/pkg/req"
	"roomlink/internal/pkg/resp"
)

type CredentialsInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister creates a new account. It does not log the user in.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CredentialsInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		user, err := deps.Accounts.Register(r.Context(), input.Username, input.Password)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": user})
	}
}

// HandleLogin verifies user credentials and opens a session, replacing any previous one.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CredentialsInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		sess, err := deps.Sessions.Login(r.Context(), input.Username, input.Password)
		if err != nil {
			if errs.HasCode(err, errs.ErrInvalidCredentials) {
				logx.Warn("login: credential check failed", "username", input.Username)
			}
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token":      sess.Token,
			"username":   sess.Username,
			"expires_at": sess.ExpiresAt,
		})
	}
}

// HandleLogout revokes the caller's session and closes its realtime connections.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := jwt.TokenFromContext(r)
		if token == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if err := deps.Sessions.Logout(r.Context(), token); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// currentUser returns the authenticated username or writes an Unauthorized response.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := jwt.UsernameFromContext(r)
	if username == "" {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return "", false
	}
	return username, true
}
