package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"roomlink/internal/app/model"
	"roomlink/internal/pkg/req"
	"roomlink/internal/pkg/resp"
)

type CreateInviteInput struct {
	RoomID string `json:"room_id" validate:"required"`
	ToUser string `json:"to_user" validate:"required"`
}

// HandleCreateInvite invites another user into one of the caller's rooms.
func HandleCreateInvite(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := currentUser(w, r)
		if !ok {
			return
		}

		var input CreateInviteInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		inv, err := deps.Invites.Create(r.Context(), input.RoomID, username, input.ToUser)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"invite": inv})
	}
}

// HandleListInvites lists the invites addressed to the caller, newest first.
func HandleListInvites(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := currentUser(w, r)
		if !ok {
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"invites": deps.Invites.ListFor(username)})
	}
}

type inviteAction func(ctx context.Context, id, actor string) (model.Invite, error)

func handleInviteAction(action inviteAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := currentUser(w, r)
		if !ok {
			return
		}

		inv, err := action(r.Context(), chi.URLParam(r, "inviteID"), username)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"invite": inv})
	}
}

// HandleAcceptInvite accepts an invite addressed to the caller.
func HandleAcceptInvite(deps *AppDeps) http.HandlerFunc {
	return handleInviteAction(deps.Invites.Accept)
}

// HandleDeclineInvite declines an invite addressed to the caller.
func HandleDeclineInvite(deps *AppDeps) http.HandlerFunc {
	return handleInviteAction(deps.Invites.Decline)
}
