package handler

import (
	"net/http"

	"roomlink/internal/pkg/resp"
)

// HandleListUsers returns every account with its live presence, for client reconciliation.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := currentUser(w, r); !ok {
			return
		}

		users, err := deps.Sessions.Users(r.Context())
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"users": users})
	}
}
