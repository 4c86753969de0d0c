// Package notify delivers user and admin messages produced by subscription
// lifecycle events. Deliveries go through the async sender dispatcher and are
// best-effort: a failed notice never blocks the ledger or access path.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/clubbot/core/logger"
	"github.com/m3rciful/clubbot/core/telegram/sender"
)

// Sender is the subset of tele.Bot used for outbound messages.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier sends lifecycle notices to members and the admin chat.
type Notifier interface {
	SubscriptionActive(ctx context.Context, userID int64, planTag string, until time.Time)
	SubscriptionExpired(ctx context.Context, userID int64)
	PaymentRejected(ctx context.Context, userID int64)
	AdminNewSubscription(ctx context.Context, userID int64, username, planTag string, amount int64, until time.Time)
	AdminReview(ctx context.Context, pendingID, userID int64, username, planTag string, amount int64)
	AdminAlert(ctx context.Context, text string)
}

// Telegram implements Notifier over a Telegram bot.
type Telegram struct {
	bot         Sender
	dispatcher  *sender.Dispatcher
	adminChatID int64
	inviteLink  string
}

// NewTelegram builds a Telegram notifier. dispatcher may be nil, in which
// case messages are sent synchronously.
func NewTelegram(bot Sender, dispatcher *sender.Dispatcher, adminChatID int64, inviteLink string) *Telegram {
	return &Telegram{
		bot:         bot,
		dispatcher:  dispatcher,
		adminChatID: adminChatID,
		inviteLink:  inviteLink,
	}
}

func (n *Telegram) send(ctx context.Context, action string, to int64, what interface{}, opts ...interface{}) {
	recipient := recipientID(to)
	run := func() error {
		_, err := n.bot.Send(recipient, what, opts...)
		return err
	}
	if n.dispatcher != nil {
		if err := n.dispatcher.Enqueue(ctx, action, run); err == nil {
			return
		}
	}
	if err := run(); err != nil {
		logger.Warn(ctx, logger.Notify, "notify.send_failed",
			slog.String("action", action),
			slog.Int64("to", to),
			slog.String("err", err.Error()),
		)
	}
}

// SubscriptionActive tells the member their access is live and until when.
func (n *Telegram) SubscriptionActive(ctx context.Context, userID int64, planTag string, until time.Time) {
	text := fmt.Sprintf(
		"✅ Оплата получена! Подписка активна до %s.",
		until.Format("02.01.2006"),
	)
	if n.inviteLink != "" {
		text += "\n\nСсылка для входа в канал: " + n.inviteLink
	}
	n.send(ctx, "notify.subscription_active", userID, text)
}

// SubscriptionExpired tells the member they were removed from the channel.
func (n *Telegram) SubscriptionExpired(ctx context.Context, userID int64) {
	text := "⏳ Срок вашей подписки истёк, доступ к каналу закрыт.\n" +
		"Чтобы вернуться, оформите подписку заново: /pay_subscription"
	n.send(ctx, "notify.subscription_expired", userID, text)
}

// PaymentRejected tells the member their manual payment was declined.
func (n *Telegram) PaymentRejected(ctx context.Context, userID int64) {
	text := "❌ Ваш платёж не подтверждён. Если вы считаете это ошибкой, " +
		"свяжитесь с администратором или попробуйте ещё раз: /pay_subscription"
	n.send(ctx, "notify.payment_rejected", userID, text)
}

// AdminNewSubscription posts a confirmed-payment notice to the admin chat.
func (n *Telegram) AdminNewSubscription(ctx context.Context, userID int64, username, planTag string, amount int64, until time.Time) {
	if n.adminChatID == 0 {
		return
	}
	text := fmt.Sprintf(
		"💰 Новая подписка\nПользователь: %s (id %d)\nТариф: %s\nСумма: %d ₽\nДействует до: %s",
		displayName(username), userID, planTag, amount, until.Format("02.01.2006"),
	)
	n.send(ctx, "notify.admin_new_subscription", n.adminChatID, text)
}

// AdminReview posts a manual payment proof to the admin chat with
// approve/reject buttons keyed by the pending payment id.
func (n *Telegram) AdminReview(ctx context.Context, pendingID, userID int64, username, planTag string, amount int64) {
	if n.adminChatID == 0 {
		return
	}
	text := fmt.Sprintf(
		"🧾 Платёж на проверку\nПользователь: %s (id %d)\nТариф: %s\nСумма: %d ₽",
		displayName(username), userID, planTag, amount,
	)
	markup := &tele.ReplyMarkup{}
	data := strconv.FormatInt(pendingID, 10)
	markup.InlineKeyboard = [][]tele.InlineButton{{
		{Unique: "approve_payment", Text: "✅ Подтвердить", Data: data},
		{Unique: "reject_payment", Text: "❌ Отклонить", Data: data},
	}}
	n.send(ctx, "notify.admin_review", n.adminChatID, text, markup)
}

// AdminAlert posts an operational warning to the admin chat.
func (n *Telegram) AdminAlert(ctx context.Context, text string) {
	if n.adminChatID == 0 {
		return
	}
	n.send(ctx, "notify.admin_alert", n.adminChatID, "⚠️ "+text)
}

func displayName(username string) string {
	if username == "" {
		return "без username"
	}
	return "@" + username
}

type recipientID int64

func (r recipientID) Recipient() string {
	return strconv.FormatInt(int64(r), 10)
}
