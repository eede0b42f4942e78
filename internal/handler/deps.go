package handler

import (
	"roomlink/internal/app/account"
	"roomlink/internal/app/hub"
	"roomlink/internal/app/invite"
	"roomlink/internal/app/message"
	"roomlink/internal/app/relay"
	"roomlink/internal/app/room"
	"roomlink/internal/app/session"
	"roomlink/internal/configs"
)

type AppDeps struct {
	Config   *configs.AppConfig
	Accounts *account.Service
	Sessions *session.Registry
	Hub      *hub.Hub
	Rooms    *room.Store
	Invites  *invite.Manager
	Messages *message.Pipeline
	Relay    *relay.Relay
}
