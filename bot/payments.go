package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/clubbot/core/intake"
	"github.com/m3rciful/clubbot/core/ledger"
	"github.com/m3rciful/clubbot/core/logger"
	"github.com/m3rciful/clubbot/core/telegram/callbacks"
	"github.com/m3rciful/clubbot/core/telegram/format"
	"github.com/m3rciful/clubbot/core/telegram/helpers"
	"github.com/m3rciful/clubbot/core/telegram/keyboard"
)

// handlePlanChosen shows the payment method choice for the selected tier.
func (a *App) handlePlanChosen(c tele.Context) error {
	tag := callbacks.CallbackPayload(c)
	if !a.plans.Known(tag) {
		return helpers.SendText(c, "Этот тариф больше недоступен, выберите другой: /pay_subscription")
	}
	p := a.plans.Resolve(tag)

	var rows [][]keyboard.InlineBtn
	if a.cfg.Telegram.ProviderToken != "" {
		rows = append(rows, []keyboard.InlineBtn{
			{Text: "💳 Оплатить онлайн", Unique: cbPayInvoice, Data: tag},
		})
	}
	rows = append(rows, []keyboard.InlineBtn{
		{Text: "🏦 Перевод на карту", Unique: cbPayManual, Data: tag},
	})

	text := fmt.Sprintf("Тариф: %s\nК оплате: %d ₽\n\nВыберите способ оплаты:",
		planTitle(p), p.Amount)
	return helpers.EditOrSendMD(c, text, keyboard.InlineButtonsRows(rows...))
}

// handlePayInvoice sends a Telegram invoice for the selected tier. The
// payload ties the eventual payment back to the plan and the payer.
func (a *App) handlePayInvoice(c tele.Context) error {
	tag := callbacks.CallbackPayload(c)
	if !a.plans.Known(tag) {
		return helpers.SendText(c, "Этот тариф больше недоступен, выберите другой: /pay_subscription")
	}
	p := a.plans.Resolve(tag)

	inv := tele.Invoice{
		Title:       "Подписка на канал",
		Description: fmt.Sprintf("Доступ к закрытому каналу, %s", planTitle(p)),
		Payload:     intake.BuildReference(p.Tag, c.Sender().ID),
		Currency:    a.cfg.Telegram.Currency,
		Token:       a.cfg.Telegram.ProviderToken,
		Prices: []tele.Price{
			{Label: planTitle(p), Amount: int(p.Amount * 100)},
		},
	}
	return c.Send(&inv)
}

// handlePreCheckout answers the pre-checkout query. The reference is checked
// here so a botched payload never reaches the charge step.
func (a *App) handlePreCheckout(c tele.Context) error {
	q := c.PreCheckoutQuery()
	if q == nil {
		return nil
	}
	if _, err := intake.ParseReference(q.Payload); err != nil {
		logger.TG.Warn("pre-checkout rejected",
			slog.String("event", "payment.precheckout_rejected"),
			slog.String("payload", q.Payload),
		)
		return c.Accept("Платёж не распознан, начните оплату заново: /pay_subscription")
	}
	return c.Accept()
}

// handleSuccessfulPayment processes the gateway confirmation.
func (a *App) handleSuccessfulPayment(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Payment == nil {
		return nil
	}
	ctx := helpers.BuildContext(c)
	sender := c.Sender()

	_, err := a.intake.ConfirmGateway(ctx, msg.Payment.Payload, intake.Profile{
		UserID:    sender.ID,
		Username:  sender.Username,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
	})
	if err != nil {
		if errors.Is(err, intake.ErrBadReference) {
			a.notifier.AdminAlert(ctx, fmt.Sprintf(
				"Получен платёж с нераспознанной ссылкой %q от пользователя %d. Обработайте вручную.",
				msg.Payment.Payload, sender.ID))
			return helpers.SendText(c,
				"Оплата получена, но мы не смогли сопоставить её с тарифом. Администратор уже уведомлён.")
		}
		return helpers.SendText(c,
			"Оплата получена, доступ откроется в ближайшее время. Если этого не произойдёт, напишите администратору.")
	}
	return nil
}

// handlePayManual opens a pending record and walks the user through the
// bank transfer.
func (a *App) handlePayManual(c tele.Context) error {
	tag := callbacks.CallbackPayload(c)
	if !a.plans.Known(tag) {
		return helpers.SendText(c, "Этот тариф больше недоступен, выберите другой: /pay_subscription")
	}
	ctx := helpers.BuildContext(c)
	userID := c.Sender().ID

	id, p, err := a.intake.StartPending(ctx, userID, tag)
	if err != nil {
		logger.Error(ctx, logger.TG, "payment.pending_open_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return helpers.SendText(c, "Не получилось начать оплату, попробуйте позже.")
	}

	a.fsm.SetTemp(userID, tempPendingKey, id)
	a.fsm.SetState(userID, StateAwaitingProof)

	var b strings.Builder
	fmt.Fprintf(&b, "Перевод на карту\n\nСумма: %d ₽\n", p.Amount)
	if a.cfg.Banking.CardNumber != "" {
		fmt.Fprintf(&b, "Карта: `%s`\n", a.cfg.Banking.CardNumber)
	}
	if a.cfg.Banking.Holder != "" {
		fmt.Fprintf(&b, "Получатель: %s\n", format.EscapeV1(a.cfg.Banking.Holder))
	}
	if a.cfg.Banking.Instructions != "" {
		b.WriteString("\n" + format.EscapeV1(a.cfg.Banking.Instructions) + "\n")
	}
	b.WriteString("\nПосле перевода пришлите сюда скриншот чека. Отменить: /cancel")
	return helpers.SendMD(c, b.String())
}

// handleAwaitingProof is the conversation step after the bank details were
// shown: a photo is the proof, anything else gets a nudge.
func (a *App) handleAwaitingProof(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return helpers.SendText(c,
			"Жду скриншот чека (фото). Отменить оплату: /cancel")
	}
	return a.acceptProof(c)
}

// handleStrayProof handles a photo sent outside the payment conversation.
// It still counts as a proof when the user has an open pending record;
// otherwise the user is told how to start.
func (a *App) handleStrayProof(c tele.Context) error {
	return a.acceptProof(c)
}

func (a *App) acceptProof(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	sender := c.Sender()

	_, err := a.intake.SubmitProof(ctx, intake.Profile{
		UserID:    sender.ID,
		Username:  sender.Username,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrNoPending) {
			a.fsm.Clear(sender.ID)
			return helpers.SendText(c,
				"Не нашёл оплату, к которой относится этот скриншот.\n"+
					"Сначала выберите тариф: /pay_subscription")
		}
		logger.Error(ctx, logger.TG, "payment.proof_failed",
			slog.Int64("user_id", sender.ID),
			slog.String("err", err.Error()),
		)
		return helpers.SendText(c, "Не получилось принять скриншот, попробуйте ещё раз.")
	}

	a.fsm.Clear(sender.ID)

	if msg := c.Message(); msg != nil && msg.Photo != nil && a.cfg.Telegram.AdminChatID != 0 {
		// Forward the actual screenshot so the admin sees what was paid.
		if err := c.ForwardTo(adminRecipient(a.cfg.Telegram.AdminChatID)); err != nil {
			logger.Warn(ctx, logger.TG, "payment.proof_forward_failed",
				slog.String("err", err.Error()),
			)
		}
	}

	return helpers.SendText(c,
		"Скриншот получен и отправлен на проверку. Как только платёж подтвердят, доступ откроется автоматически.")
}
