/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, resolving
the session token, checking the optional room parameter, upgrading the HTTP connection to WebSocket,
and initiating the client lifecycle.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"roomlink/internal/app/realtime"
	"roomlink/internal/pkg/auth/jwt"
	"roomlink/internal/pkg/errs"
	"roomlink/internal/pkg/limiter"
	"roomlink/internal/pkg/logx"
	"roomlink/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		sess, err := deps.Sessions.Session(jwt.TokenFromRequest(r))
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		roomID := r.URL.Query().Get("room_id")
		if roomID != "" {
			member, err := deps.Rooms.IsMember(roomID, sess.Username)
			if err != nil {
				resp.RespondError(w, r, err)
				return
			}
			if !member {
				logx.Info("WebSocket connection rejected: not a room member.", "room_id", roomID, "username", sess.Username)
				resp.RespondError(w, r, errs.NewError(errs.ErrNotRoomMember))
				return
			}
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		conn := deps.Hub.NewConn(sess.Username, sess.ID, roomID)
		client := realtime.NewClient(ws, conn, deps.Hub, deps.Relay)

		logx.Info("WebSocket connection established", "username", sess.Username, "room_id", roomID, "conn_id", conn.ID())

		client.Run(r.Context())
	}
}
