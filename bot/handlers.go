package bot

import (
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/clubbot/core/logger"
	"github.com/m3rciful/clubbot/core/telegram/helpers"
	"github.com/m3rciful/clubbot/core/telegram/keyboard"
)

func (a *App) handleStart(c tele.Context) error {
	text := "Привет! Это бот платного канала.\n\n" +
		"Здесь можно оформить подписку и получить доступ к закрытому каналу.\n\n" +
		"Команды:\n" +
		"/pay_subscription — оформить или продлить подписку\n" +
		"/my_subscription — статус подписки"

	if url := a.cfg.Channel.WelcomeImageURL; url != "" {
		if err := helpers.SendPhotoMD(c, url, text); err != nil {
			return err
		}
	} else if err := helpers.SendText(c, text); err != nil {
		return err
	}

	ctx := helpers.BuildContext(c)
	if end, ok, err := a.store.GetMembership(ctx, c.Sender().ID); err == nil && ok && end.After(time.Now()) {
		return helpers.SendText(c, fmt.Sprintf(
			"✅ Подписка активна до %s.", end.Format("02.01.2006")))
	}
	return a.handlePaySubscription(c)
}

func (a *App) handleMySubscription(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	userID := c.Sender().ID

	end, ok, err := a.store.GetMembership(ctx, userID)
	if err != nil {
		logger.Error(ctx, logger.TG, "subscription.lookup_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return helpers.SendText(c, "Не удалось проверить подписку, попробуйте позже.")
	}
	now := time.Now()
	if !ok || !end.After(now) {
		return helpers.SendText(c,
			"У вас нет активной подписки.\nОформить: /pay_subscription")
	}
	daysLeft := int(end.Sub(now).Hours()/24) + 1
	return helpers.SendText(c, fmt.Sprintf(
		"✅ Подписка активна до %s (осталось дней: %d).",
		end.Format("02.01.2006"), daysLeft))
}

func (a *App) handlePaySubscription(c tele.Context) error {
	buttons := make([]keyboard.InlineBtn, 0, len(a.plans.Tags()))
	for _, tag := range a.plans.Tags() {
		p := a.plans.Resolve(tag)
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   planButtonText(p),
			Unique: cbPlan,
			Data:   tag,
		})
	}
	return helpers.SendMD(c, "Выберите срок подписки:", keyboard.InlineButtons(buttons))
}

func (a *App) handleCancel(c tele.Context) error {
	a.fsm.Clear(c.Sender().ID)
	return helpers.SendText(c, "Действие отменено.")
}

func (a *App) handleUnknownText(c tele.Context) error {
	return helpers.SendText(c,
		"Я понимаю только команды.\n/pay_subscription — подписка, /my_subscription — статус.")
}
