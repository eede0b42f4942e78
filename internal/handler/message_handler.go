package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"roomlink/internal/app/message"
	"roomlink/internal/pkg/errs"
	"roomlink/internal/pkg/logx"
	"roomlink/internal/pkg/req"
	"roomlink/internal/pkg/resp"
)

type PostMessageInput struct {
	Content     string                    `json:"content"`
	Attachments []message.AttachmentInput `json:"attachments" validate:"dive"`
}

// HandlePostMessage appends a message to the room and broadcasts it to the members.
func HandlePostMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := currentUser(w, r)
		if !ok {
			return
		}

		var input PostMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		roomID := chi.URLParam(r, "roomID")
		msg, err := deps.Messages.Post(r.Context(), roomID, username, input.Content, input.Attachments)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"message": msg})
	}
}

// HandleListMessages returns the room's log, oldest first.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := currentUser(w, r)
		if !ok {
			return
		}

		roomID, ok := requireMember(deps, w, r, username)
		if !ok {
			return
		}

		messages, err := deps.Messages.List(r.Context(), roomID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"messages": messages})
	}
}

// HandleAttachmentDownload redirects to a presigned URL of an offloaded attachment.
func HandleAttachmentDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := currentUser(w, r)
		if !ok {
			return
		}

		roomID, ok := requireMember(deps, w, r, username)
		if !ok {
			return
		}

		key := r.URL.Query().Get("k")
		if key == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		url, err := deps.Messages.DownloadURL(r.Context(), roomID, key)
		if err != nil {
			logx.Warn("attachment download refused", "room_id", roomID, "key", key, "error", err)
			resp.RespondError(w, r, err)
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
