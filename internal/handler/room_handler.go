package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"roomlink/internal/app/model"
	"roomlink/internal/pkg/errs"
	"roomlink/internal/pkg/req"
	"roomlink/internal/pkg/resp"
)

type CreateRoomInput struct {
	Name    string         `json:"name" validate:"required"`
	Type    model.RoomType `json:"type"`
	Members []string       `json:"members" validate:"max=50"`
}

// HandleCreateRoom creates a room owned by the caller.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := currentUser(w, r)
		if !ok {
			return
		}

		var input CreateRoomInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		room, err := deps.Rooms.Create(r.Context(), input.Name, input.Type, username, input.Members...)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"room": room})
	}
}

// HandleListRooms lists the rooms the caller belongs to.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := currentUser(w, r)
		if !ok {
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"rooms": deps.Rooms.List(username)})
	}
}

// HandleGetRoom returns one room. Only members may read it.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := currentUser(w, r)
		if !ok {
			return
		}

		room, err := deps.Rooms.Get(chi.URLParam(r, "roomID"))
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}
		if !room.HasMember(username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotRoomMember))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"room": room})
	}
}

// requireMember resolves the {roomID} URL parameter and checks the caller belongs to it.
func requireMember(deps *AppDeps, w http.ResponseWriter, r *http.Request, username string) (string, bool) {
	roomID := chi.URLParam(r, "roomID")

	member, err := deps.Rooms.IsMember(roomID, username)
	if err != nil {
		resp.RespondError(w, r, err)
		return "", false
	}
	if !member {
		resp.RespondError(w, r, errs.NewError(errs.ErrNotRoomMember))
		return "", false
	}

	return roomID, true
}
