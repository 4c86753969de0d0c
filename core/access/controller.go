// Package access translates membership state transitions into channel
// side effects: granting send access on a confirmed payment, revoking it
// when a subscription expires. Platform drift (manual admin actions, users
// leaving on their own, earlier failed attempts) is absorbed by treating
// already-in-desired-state outcomes as success.
package access

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/clubbot/core/logger"
)

// ChannelAPI is the slice of the bot surface the controller needs.
// *tele.Bot satisfies it.
type ChannelAPI interface {
	Ban(chat *tele.Chat, member *tele.ChatMember, revokeMessages ...bool) error
	Unban(chat *tele.Chat, user *tele.User, forBanned ...bool) error
}

// Controller drives grant/revoke against one managed channel.
type Controller struct {
	api  ChannelAPI
	chat *tele.Chat
}

// NewController builds a controller for the channel identified by the raw
// configured id. The id is normalized once here; every external call uses
// the normalized form.
func NewController(api ChannelAPI, rawChannelID string) (*Controller, error) {
	id, err := NormalizeChannelID(rawChannelID)
	if err != nil {
		return nil, err
	}
	return &Controller{api: api, chat: &tele.Chat{ID: id}}, nil
}

// ChannelID exposes the normalized channel id.
func (c *Controller) ChannelID() int64 { return c.chat.ID }

// Grant admits userID to the channel by lifting any ban. Granting an
// already-admitted user is success: unban-if-banned is a no-op for members
// in good standing, which makes the call safe to repeat.
func (c *Controller) Grant(ctx context.Context, userID int64) error {
	err := c.api.Unban(c.chat, &tele.User{ID: userID}, true)
	return c.finish(ctx, "grant", userID, err)
}

// Revoke removes userID from the channel by banning. Revoking a user who
// already left (or was never admitted) is success.
func (c *Controller) Revoke(ctx context.Context, userID int64) error {
	err := c.api.Ban(c.chat, &tele.ChatMember{User: &tele.User{ID: userID}})
	return c.finish(ctx, "revoke", userID, err)
}

func (c *Controller) finish(ctx context.Context, op string, userID int64, err error) error {
	kind := classify(err)
	if kind == kindAlreadySatisfied {
		logger.Debug(ctx, logger.Access, "access."+op,
			slog.Int64("target_user_id", userID),
			slog.String("status", "ok"),
		)
		return nil
	}

	level := slog.LevelWarn
	if kind == KindPermissionDenied {
		level = slog.LevelError
	}
	logger.LogEvent(ctx, logger.Access, level, "access."+op,
		slog.Int64("target_user_id", userID),
		slog.String("status", "error"),
		slog.String("error_kind", kind.String()),
		slog.String("err", err.Error()),
	)

	return &Error{Kind: kind, Op: op, UserID: userID, Err: err}
}
