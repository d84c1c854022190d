package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-commerce-bot/internal/application"
	"telegram-commerce-bot/internal/config"
	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/infra/logging"
	"telegram-commerce-bot/internal/infra/metrics"
	"telegram-commerce-bot/internal/usecase"
)

// RealBot polls Telegram for updates and dispatches them to the dialog
// engine and the admin decision flow across a worker pool.
type RealBot struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.Config
	users       usecase.UserUseCase
	admin       usecase.AdminUseCase
	dialog      *application.Dialog
	adminIDsMap map[int64]struct{}
	log         *zerolog.Logger

	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealBot(
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
	users usecase.UserUseCase,
	admin usecase.AdminUseCase,
	dialog *application.Dialog,
	logger *zerolog.Logger,
) (*RealBot, error) {
	if bot == nil {
		return nil, errors.New("bot client is nil")
	}
	if users == nil || admin == nil || dialog == nil {
		return nil, errors.New("bot dependencies are nil")
	}
	adminMap := make(map[int64]struct{}, len(cfg.Bot.AdminIDs))
	for _, id := range cfg.Bot.AdminIDs {
		adminMap[id] = struct{}{}
	}
	l := logger.With().Str("component", "TelegramBot").Logger()
	return &RealBot{
		bot:           bot,
		cfg:           cfg,
		users:         users,
		admin:         admin,
		dialog:        dialog,
		adminIDsMap:   adminMap,
		log:           &l,
		updateWorkers: cfg.Bot.Workers,
	}, nil
}

// StartPolling begins polling Telegram for updates concurrently.
// It runs until ctx is canceled.
func (r *RealBot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case update, ok := <-updateChan:
					if !ok {
						return
					}
					if err := r.handleUpdate(ctx, update); err != nil {
						r.log.Error().Err(err).Int("worker", workerID).Msg("error handling update")
					}
				case <-ctx.Done():
					return
				}
			}
		}(i + 1)
	}

	// Dispatcher goroutine: feed updates into updateChan
	go func() {
		defer close(updateChan)
		for {
			select {
			case update := <-updates:
				select {
				case updateChan <- update:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	r.bot.StopReceivingUpdates()
	wg.Wait()
	return nil
}

// StopPolling stops the polling loop gracefully.
func (r *RealBot) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealBot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	ctx = logging.WithTraceID(ctx, uuid.NewString())
	switch {
	case update.CallbackQuery != nil:
		return r.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		return r.handleMessage(ctx, update.Message)
	}
	return nil
}

func (r *RealBot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.From.IsBot {
		return nil
	}
	ctx = logging.WithTgID(ctx, msg.From.ID)
	user, err := r.users.RegisterOrFetch(ctx, msg.From.ID, msg.From.UserName, msg.From.FirstName)
	if err != nil {
		return fmt.Errorf("register user %d: %w", msg.From.ID, err)
	}

	switch {
	case msg.IsCommand():
		metrics.IncTelegramUpdate("command")
		return r.handleCommand(ctx, user, msg.Command())
	case len(msg.Photo) > 0:
		metrics.IncTelegramUpdate("photo")
		// The last PhotoSize is the largest rendition.
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		return r.send(user.TgUserID, r.dialog.HandlePhoto(ctx, user, fileID))
	case msg.Text != "":
		metrics.IncTelegramUpdate("text")
		return r.send(user.TgUserID, r.dialog.HandleText(ctx, user, msg.Text))
	}
	return nil
}

func (r *RealBot) handleCommand(ctx context.Context, user *model.User, cmd string) error {
	switch cmd {
	case "start":
		return r.send(user.TgUserID, r.dialog.Start(ctx, user))
	case "menu":
		return r.send(user.TgUserID, r.dialog.Menu(ctx, user))
	case "help":
		text := "Commands:\n/start — begin\n/menu — services menu"
		if r.cfg.Bot.SupportHandle != "" {
			text += fmt.Sprintf("\nSupport: %s", r.cfg.Bot.SupportHandle)
		}
		return r.send(user.TgUserID, application.Reply{Text: text})
	default:
		return r.send(user.TgUserID, application.Reply{Text: "Unknown command. Try /menu."})
	}
}

func (r *RealBot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil {
		return nil
	}
	metrics.IncTelegramUpdate("callback")
	ctx = logging.WithTgID(ctx, cb.From.ID)
	user, err := r.users.RegisterOrFetch(ctx, cb.From.ID, cb.From.UserName, cb.From.FirstName)
	if err != nil {
		return fmt.Errorf("register user %d: %w", cb.From.ID, err)
	}

	data := cb.Data
	if strings.HasPrefix(data, "adm_ok:") || strings.HasPrefix(data, "adm_no:") {
		return r.handleAdminDecision(ctx, cb, user, data)
	}

	reply := r.dialog.HandleCallback(ctx, user, data)
	r.answerCallback(cb.ID, reply.Alert)
	return r.send(user.TgUserID, reply)
}

// handleAdminDecision applies an approve/reject button press and rewrites
// the order card so every admin sees the final state.
func (r *RealBot) handleAdminDecision(ctx context.Context, cb *tgbotapi.CallbackQuery, user *model.User, data string) error {
	if !r.isAdmin(user.TgUserID) {
		r.answerCallback(cb.ID, "Not authorized")
		return nil
	}
	prefix, idStr, _ := strings.Cut(data, ":")
	paymentID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		r.answerCallback(cb.ID, "Malformed callback")
		return nil
	}
	ctx = logging.WithPaymentID(ctx, paymentID)

	var res *usecase.DecisionResult
	var verdict string
	if prefix == "adm_ok" {
		res, err = r.admin.Approve(ctx, user.TgUserID, paymentID)
		verdict = "✅ Approved"
	} else {
		res, err = r.admin.Reject(ctx, user.TgUserID, paymentID)
		verdict = "❌ Rejected"
	}
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("admin decision failed")
		r.answerCallback(cb.ID, "Decision failed, try again")
		return err
	}
	if res.Outcome == usecase.OutcomeAlreadyHandled {
		r.answerCallback(cb.ID, "Already handled by another admin")
		return nil
	}
	r.answerCallback(cb.ID, verdict)

	// Rewrite the card in place: verdict line appended, buttons removed.
	if cb.Message != nil {
		caption := cb.Message.Caption
		if caption == "" {
			caption = cb.Message.Text
		}
		caption += fmt.Sprintf("\n\n%s by %s", verdict, user.DisplayLine())
		edit := tgbotapi.NewEditMessageCaption(cb.Message.Chat.ID, cb.Message.MessageID, caption)
		if _, err := r.bot.Request(edit); err != nil {
			r.log.Warn().Err(err).Int64("payment_id", paymentID).Msg("failed to rewrite order card")
		}
	}
	return nil
}

func (r *RealBot) send(chatID int64, reply application.Reply) error {
	if reply.Text == "" {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if kb := buildKeyboard(reply.Rows); kb != nil {
		msg.ReplyMarkup = *kb
	}
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealBot) answerCallback(callbackID, alert string) {
	cb := tgbotapi.NewCallback(callbackID, alert)
	if _, err := r.bot.Request(cb); err != nil {
		r.log.Warn().Err(err).Msg("failed to answer callback")
	}
}

func (r *RealBot) isAdmin(tgID int64) bool {
	_, ok := r.adminIDsMap[tgID]
	return ok
}
