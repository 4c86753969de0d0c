package bot

import (
	"errors"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/clubbot/core/intake"
	"github.com/m3rciful/clubbot/core/logger"
	"github.com/m3rciful/clubbot/core/telegram/callbacks"
	"github.com/m3rciful/clubbot/core/telegram/helpers"
)

// adminDecision builds the approve or reject callback handler. Only the
// configured admin may decide; a decision is applied once, repeats are
// reported back instead of re-running the grant.
func (a *App) adminDecision(approve bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := helpers.BuildContext(c)

		if admin := a.cfg.Telegram.AdminChatID; admin != 0 && c.Sender().ID != admin {
			logger.Warn(ctx, logger.TG, "admin.decision_denied",
				slog.Int64("user_id", c.Sender().ID),
			)
			return nil
		}

		pendingID, err := callbacks.PayloadInt64(c)
		if err != nil {
			return helpers.SendText(c, "Не удалось разобрать номер платежа.")
		}

		res, err := a.intake.Decide(ctx, pendingID, approve)
		switch {
		case errors.Is(err, intake.ErrAlreadyDecided):
			return helpers.EditOrSendMD(c,
				fmt.Sprintf("Платёж №%d уже был обработан ранее.", pendingID))
		case err != nil:
			logger.Error(ctx, logger.TG, "admin.decision_failed",
				slog.Int64("pending_id", pendingID),
				slog.Bool("approve", approve),
				slog.String("err", err.Error()),
			)
			return helpers.EditOrSendMD(c,
				fmt.Sprintf("Платёж №%d: ошибка при обработке, подробности в логах.", pendingID))
		}

		if approve {
			return helpers.EditOrSendMD(c, fmt.Sprintf(
				"✅ Платёж №%d подтверждён, доступ открыт до %s.",
				pendingID, res.End.Format("02.01.2006")))
		}
		return helpers.EditOrSendMD(c, fmt.Sprintf("❌ Платёж №%d отклонён.", pendingID))
	}
}
