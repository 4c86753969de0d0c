// Package bot assembles the subscription bot: command and callback handlers,
// the payment conversation and the wiring between the telegram core and the
// domain services.
package bot

import (
	"fmt"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/clubbot/core/config"
	"github.com/m3rciful/clubbot/core/intake"
	"github.com/m3rciful/clubbot/core/ledger"
	"github.com/m3rciful/clubbot/core/notify"
	"github.com/m3rciful/clubbot/core/plan"
	tg "github.com/m3rciful/clubbot/core/telegram"
	"github.com/m3rciful/clubbot/core/telegram/commands"
	"github.com/m3rciful/clubbot/core/telegram/router"
	"github.com/m3rciful/clubbot/core/telegram/state"
)

// Callback uniques used on inline keyboards.
const (
	cbPlan       = "plan"
	cbPayInvoice = "pay_invoice"
	cbPayManual  = "pay_manual"
	cbApprove    = "approve_payment"
	cbReject     = "reject_payment"
)

// StateAwaitingProof marks a user who picked the bank-transfer option and
// still owes a payment screenshot.
const StateAwaitingProof state.State = "awaiting_proof"

const tempPendingKey = "pending_id"

// App owns the handler set and its dependencies.
type App struct {
	cfg      *coreconfig.Config
	store    *ledger.Store
	plans    *plan.Table
	intake   *intake.Service
	notifier notify.Notifier
	fsm      state.Manager
}

// New builds the application around its services.
func New(cfg *coreconfig.Config, store *ledger.Store, plans *plan.Table, svc *intake.Service, notifier notify.Notifier) *App {
	app := &App{
		cfg:      cfg,
		store:    store,
		plans:    plans,
		intake:   svc,
		notifier: notifier,
		fsm:      state.NewMemoryManager(),
	}
	state.RegisterHandler(StateAwaitingProof, app.handleAwaitingProof)
	return app
}

// Registry returns the command and callback registry for this bot.
func (a *App) Registry() *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Начать работу с ботом",
	})
	reg.RegisterCommand("/pay_subscription", commands.Command{
		Handler:     a.handlePaySubscription,
		Description: "Оформить или продлить подписку",
	})
	reg.RegisterCommand("/my_subscription", commands.Command{
		Handler:     a.handleMySubscription,
		Description: "Статус моей подписки",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "Отменить текущее действие",
		Hidden:      true,
	})

	_ = reg.RegisterCallback(cbPlan, a.handlePlanChosen)
	_ = reg.RegisterCallback(cbPayInvoice, a.handlePayInvoice)
	_ = reg.RegisterCallback(cbPayManual, a.handlePayManual)
	_ = reg.RegisterCallback(cbApprove, a.adminDecision(true))
	_ = reg.RegisterCallback(cbReject, a.adminDecision(false))

	reg.SetTextFallback(a.handleUnknownText)
	return reg
}

// Routes returns the full route set: commands, the callback multiplexer,
// message/photo routing and the payment endpoints.
func (a *App) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminChatID: a.cfg.Telegram.AdminChatID,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(a.fsm, reg, router.MessageOptions{
		UnknownText:  a.handleUnknownText,
		UnknownPhoto: a.handleStrayProof,
	})...)
	routes = append(routes,
		tg.Route{Endpoint: tele.OnCheckout, Handler: a.handlePreCheckout},
		tg.Route{Endpoint: tele.OnPayment, Handler: a.handleSuccessfulPayment},
	)
	return routes
}

// planTitle renders a human label for a tier.
func planTitle(p plan.Plan) string {
	switch p.Days {
	case 30:
		return "1 месяц"
	case 90:
		return "3 месяца"
	case 365:
		return "1 год"
	default:
		return fmt.Sprintf("%d дней", p.Days)
	}
}

func planButtonText(p plan.Plan) string {
	return fmt.Sprintf("%s — %d ₽", planTitle(p), p.Amount)
}

func adminRecipient(id int64) tele.Recipient {
	return &tele.Chat{ID: id}
}
