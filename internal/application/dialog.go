package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"telegram-commerce-bot/internal/config"
	"telegram-commerce-bot/internal/domain"
	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/domain/ports/adapter"
	"telegram-commerce-bot/internal/domain/ports/repository"
	"telegram-commerce-bot/internal/usecase"

	"github.com/rs/zerolog"
)

// Dialog step identifiers stored in scratch state.
const (
	stepLangGoal    = "lang:goal"
	stepLangLevel   = "lang:level"
	stepLangFreq    = "lang:freq"
	stepLangProduct = "lang:product"
	stepAstroFormat = "astro:format"
	stepAwaitMethod = "pay:method"
	stepAwaitProof  = "pay:wait_proof"
	stepYogaIntro   = "yoga:intro"
	stepSurveyPrefs = "yf:prefs"
)

// Reply is what the bot layer renders back: a message, optional inline
// keyboard, and an optional callback-answer popup.
type Reply struct {
	Text  string
	Rows  [][]adapter.InlineButton
	Alert string
}

// Dialog drives every user-facing flow: direction menus, selection steps,
// payment instructions, proof collection and the pre-expiry survey.
// Scratch state lives in Redis and may evaporate at any moment; every
// handler falls back to the main menu instead of erroring at the user.
type Dialog struct {
	states   repository.StateRepository
	orders   usecase.OrderUseCase
	feedback usecase.FeedbackUseCase
	tg       adapter.Transport
	cfg      *config.Config
	log      *zerolog.Logger
}

func NewDialog(
	states repository.StateRepository,
	orders usecase.OrderUseCase,
	feedback usecase.FeedbackUseCase,
	tg adapter.Transport,
	cfg *config.Config,
	logger *zerolog.Logger,
) *Dialog {
	l := logger.With().Str("component", "Dialog").Logger()
	return &Dialog{states: states, orders: orders, feedback: feedback, tg: tg, cfg: cfg, log: &l}
}

// Start greets a first-time or returning user and shows the main menu.
func (d *Dialog) Start(ctx context.Context, user *model.User) Reply {
	_ = d.states.ClearState(ctx, user.TgUserID)
	name := user.FirstName
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("Hi, %s! 👋\nChoose a direction to get started:", name)
	return Reply{Text: text, Rows: d.menuRows()}
}

// Menu re-shows the direction menu and drops any in-flight scratch state.
func (d *Dialog) Menu(ctx context.Context, user *model.User) Reply {
	_ = d.states.ClearState(ctx, user.TgUserID)
	return Reply{Text: "Choose a direction:", Rows: d.menuRows()}
}

func (d *Dialog) menuRows() [][]adapter.InlineButton {
	rows := make([][]adapter.InlineButton, 0, len(directionsMenu))
	for _, dir := range directionsMenu {
		rows = append(rows, []adapter.InlineButton{
			{Text: dir.Title(), Data: "dir:" + string(dir)},
		})
	}
	return rows
}

// HandleCallback routes one inline-button press. Unknown or stale data
// falls back to the menu.
func (d *Dialog) HandleCallback(ctx context.Context, user *model.User, data string) Reply {
	prefix, rest := splitCallback(data)
	switch prefix {
	case "menu":
		return d.Menu(ctx, user)
	case "dir":
		return d.handleDirection(ctx, user, model.Direction(rest))
	case "lg_goal":
		return d.handleLangStep(ctx, user, "lg_goal", stepLangGoal, stepLangLevel, "goal", rest, languageGoals)
	case "lg_level":
		return d.handleLangStep(ctx, user, "lg_level", stepLangLevel, stepLangFreq, "level", rest, languageLevels)
	case "lg_freq":
		return d.handleLangStep(ctx, user, "lg_freq", stepLangFreq, stepLangProduct, "freq", rest, languageFrequencies)
	case "lg_prod":
		return d.handleLangProduct(ctx, user, model.Product(rest))
	case "y_plan":
		return d.handleYogaPlan(ctx, user, model.Product(rest))
	case "as_sphere":
		return d.handleAstroSphere(ctx, user, rest)
	case "as_fmt":
		return d.handleAstroFormat(ctx, user, rest)
	case "m_plan":
		return d.handleMentoringPlan(ctx, user, model.Product(rest))
	case "pay_m":
		return d.handleMethod(ctx, user, model.PaymentMethod(rest))
	case "pay_change":
		return d.handleChangeMethod(user, rest)
	case "pay_nm":
		return d.handleNewMethod(ctx, user, rest)
	case "order_cancel":
		return d.handleCancelOrder(ctx, user, rest)
	case "yf":
		return d.handleSurvey(ctx, user, rest)
	}
	d.log.Warn().Str("data", data).Int64("tg_id", user.TgUserID).Msg("unknown callback")
	return d.restart(ctx, user)
}

// restart is the fail-soft path: scratch state is gone or inconsistent,
// so we start over instead of showing an error.
func (d *Dialog) restart(ctx context.Context, user *model.User) Reply {
	_ = d.states.ClearState(ctx, user.TgUserID)
	return Reply{
		Text: "Let's start over. Choose a direction:",
		Rows: d.menuRows(),
	}
}

// retryStep re-offers the current step's options without touching scratch
// state: an unknown code never advances the flow.
func (d *Dialog) retryStep(prefix string, opts []Option) Reply {
	return Reply{
		Text:  "Please pick one of the options below:",
		Rows:  optionRows(prefix, opts),
		Alert: "Pick an option from the list",
	}
}

// --- direction entries ---

func (d *Dialog) handleDirection(ctx context.Context, user *model.User, dir model.Direction) Reply {
	// Entering a direction always starts clean: nothing from an abandoned
	// flow may leak into this one.
	_ = d.states.ClearState(ctx, user.TgUserID)
	switch {
	case dir.IsLanguage():
		state := &repository.ConversationState{
			Step: stepLangGoal,
			Data: map[string]string{"direction": string(dir)},
		}
		if err := d.states.SetState(ctx, user.TgUserID, state); err != nil {
			return d.restart(ctx, user)
		}
		return Reply{
			Text: fmt.Sprintf("%s it is! What is your goal?", dir.Title()),
			Rows: optionRows("lg_goal", languageGoals),
		}
	case dir == model.DirectionYoga:
		rows := make([][]adapter.InlineButton, 0, len(model.YogaProducts))
		for _, p := range model.YogaProducts {
			rows = append(rows, []adapter.InlineButton{{Text: d.priceLabel(p), Data: "y_plan:" + string(p)}})
		}
		return Reply{Text: "Choose your yoga plan:", Rows: rows}
	case dir == model.DirectionAstrology:
		state := &repository.ConversationState{Step: stepAstroFormat, Data: map[string]string{}}
		if err := d.states.SetState(ctx, user.TgUserID, state); err != nil {
			return d.restart(ctx, user)
		}
		return Reply{
			Text: "Which sphere of life shall we look into?",
			Rows: optionRows("as_sphere", astrologySpheres),
		}
	case dir == model.DirectionMentoring:
		rows := make([][]adapter.InlineButton, 0, len(mentoringPlans))
		for _, p := range mentoringPlans {
			rows = append(rows, []adapter.InlineButton{{Text: d.priceLabel(p), Data: "m_plan:" + string(p)}})
		}
		return Reply{Text: "Choose a mentoring format:", Rows: rows}
	}
	return d.restart(ctx, user)
}

// --- language flow ---

// handleLangStep validates that we are on the expected step and the code
// is one of the step's options, records the choice and advances. Product
// tiers come after the last question.
func (d *Dialog) handleLangStep(ctx context.Context, user *model.User, prefix, expect, next, key, code string, opts []Option) Reply {
	state, err := d.states.GetState(ctx, user.TgUserID)
	if err != nil || state == nil || state.Step != expect {
		return d.restart(ctx, user)
	}
	if !validOption(opts, code) {
		return d.retryStep(prefix, opts)
	}
	state.Data[key] = code
	state.Step = next
	if err := d.states.SetState(ctx, user.TgUserID, state); err != nil {
		return d.restart(ctx, user)
	}
	dir := model.Direction(state.Data["direction"])
	switch next {
	case stepLangLevel:
		return Reply{Text: "What is your current level?", Rows: optionRows("lg_level", languageLevels)}
	case stepLangFreq:
		return Reply{Text: "How often would you like to study?", Rows: optionRows("lg_freq", languageFrequencies)}
	default:
		rows := make([][]adapter.InlineButton, 0, 3)
		for _, p := range languageTiers(dir) {
			rows = append(rows, []adapter.InlineButton{{Text: d.priceLabel(p), Data: "lg_prod:" + string(p)}})
		}
		return Reply{Text: "Great! Pick a format:", Rows: rows}
	}
}

func (d *Dialog) handleLangProduct(ctx context.Context, user *model.User, product model.Product) Reply {
	state, err := d.states.GetState(ctx, user.TgUserID)
	if err != nil || state == nil || state.Step != stepLangProduct {
		return d.restart(ctx, user)
	}
	dir := model.Direction(state.Data["direction"])
	if !product.Valid() || product.Direction() != dir {
		return d.restart(ctx, user)
	}
	sel := model.Selection{Language: &model.LanguageSelection{
		Goal:      optionLabel(languageGoals, state.Data["goal"]),
		Level:     optionLabel(languageLevels, state.Data["level"]),
		Frequency: optionLabel(languageFrequencies, state.Data["freq"]),
	}}
	return d.chooseMethod(ctx, user, product, sel)
}

// --- yoga / astrology / mentoring ---

func (d *Dialog) handleYogaPlan(ctx context.Context, user *model.User, plan model.Product) Reply {
	if !plan.IsYogaPlan() {
		return d.restart(ctx, user)
	}
	sel := model.Selection{Yoga: &model.YogaSelection{Plan: plan}}
	return d.chooseMethod(ctx, user, plan, sel)
}

func (d *Dialog) handleAstroSphere(ctx context.Context, user *model.User, code string) Reply {
	state, err := d.states.GetState(ctx, user.TgUserID)
	if err != nil || state == nil || state.Step != stepAstroFormat {
		return d.restart(ctx, user)
	}
	if !validOption(astrologySpheres, code) {
		return d.retryStep("as_sphere", astrologySpheres)
	}
	state.Data["sphere"] = code
	if err := d.states.SetState(ctx, user.TgUserID, state); err != nil {
		return d.restart(ctx, user)
	}
	return Reply{Text: "How deep shall we go?", Rows: optionRows("as_fmt", astrologyFormats)}
}

func (d *Dialog) handleAstroFormat(ctx context.Context, user *model.User, code string) Reply {
	state, err := d.states.GetState(ctx, user.TgUserID)
	if err != nil || state == nil || state.Step != stepAstroFormat {
		return d.restart(ctx, user)
	}
	if !validOption(astrologyFormats, code) {
		return d.retryStep("as_fmt", astrologyFormats)
	}
	sel := model.Selection{Astrology: &model.AstrologySelection{
		Sphere: optionLabel(astrologySpheres, state.Data["sphere"]),
		Format: optionLabel(astrologyFormats, code),
	}}
	return d.chooseMethod(ctx, user, astrologyProduct(code), sel)
}

func (d *Dialog) handleMentoringPlan(ctx context.Context, user *model.User, plan model.Product) Reply {
	if plan.Direction() != model.DirectionMentoring {
		return d.restart(ctx, user)
	}
	sel := model.Selection{Mentoring: &model.MentoringSelection{Plan: plan.Title()}}
	return d.chooseMethod(ctx, user, plan, sel)
}

// --- payment ---

// chooseMethod stores the resolved product+selection and asks for a
// payment method.
func (d *Dialog) chooseMethod(ctx context.Context, user *model.User, product model.Product, sel model.Selection) Reply {
	payload, err := sel.MarshalPayload()
	if err != nil {
		return d.restart(ctx, user)
	}
	state := &repository.ConversationState{
		Step: stepAwaitMethod,
		Data: map[string]string{
			"product":   string(product),
			"selection": string(payload),
		},
	}
	if err := d.states.SetState(ctx, user.TgUserID, state); err != nil {
		return d.restart(ctx, user)
	}
	amount := d.cfg.Price(string(product))
	text := fmt.Sprintf("%s — %d RUB.\nHow would you like to pay?", product.Title(), amount)
	return Reply{Text: text, Rows: methodRows("pay_m", "")}
}

func (d *Dialog) handleMethod(ctx context.Context, user *model.User, method model.PaymentMethod) Reply {
	state, err := d.states.GetState(ctx, user.TgUserID)
	if err != nil || state == nil || state.Step != stepAwaitMethod || !method.Valid() {
		return d.restart(ctx, user)
	}
	product := model.Product(state.Data["product"])
	sel, err := model.UnmarshalPayload([]byte(state.Data["selection"]))
	if err != nil {
		return d.restart(ctx, user)
	}
	order, payment, err := d.orders.CreateOrderAndPayment(ctx, user, product, sel, method)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			_ = d.states.ClearState(ctx, user.TgUserID)
			return Reply{
				Text:  "You already have a payment awaiting review. Please wait for the decision or cancel the current order first.",
				Alert: "A payment is already in review",
			}
		}
		d.log.Error().Err(err).Int64("tg_id", user.TgUserID).Msg("order creation failed")
		return d.restart(ctx, user)
	}
	return d.awaitProof(ctx, user, order, payment)
}

// awaitProof shows the transfer instructions and parks the dialog until a
// proof photo arrives.
func (d *Dialog) awaitProof(ctx context.Context, user *model.User, order *model.Order, payment *model.Payment) Reply {
	state := &repository.ConversationState{
		Step: stepAwaitProof,
		Data: map[string]string{
			"payment_id": strconv.FormatInt(payment.ID, 10),
			"order_id":   strconv.FormatInt(order.ID, 10),
		},
	}
	if err := d.states.SetState(ctx, user.TgUserID, state); err != nil {
		return d.restart(ctx, user)
	}
	rows := [][]adapter.InlineButton{
		{{Text: "Change payment method", Data: fmt.Sprintf("pay_change:%d", order.ID)}},
		{{Text: "Cancel order", Data: fmt.Sprintf("order_cancel:%d", order.ID)}},
	}
	return Reply{Text: d.methodInstructions(payment), Rows: rows}
}

func (d *Dialog) methodInstructions(p *model.Payment) string {
	pc := d.cfg.Payment
	var b strings.Builder
	switch p.Method {
	case model.MethodCard:
		fmt.Fprintf(&b, "Transfer %d %s to the card:\n%s\nRecipient: %s\n", p.Amount, p.Currency, pc.CardDetails, pc.CardOwner)
	case model.MethodInstant:
		fmt.Fprintf(&b, "Transfer %d %s via Pix.\nKey: %s\nReceiver: %s\n", p.Amount, p.Currency, pc.InstantKey, pc.InstantReceiver)
	case model.MethodCrypto:
		fmt.Fprintf(&b, "Send %d %s (%s network) to:\n%s\n", p.Amount, p.Currency, pc.CryptoNetwork, pc.CryptoWallet)
	}
	b.WriteString("\nAfter the transfer, send a screenshot of the receipt right here. 📷")
	return b.String()
}

func (d *Dialog) handleChangeMethod(user *model.User, rest string) Reply {
	orderID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return Reply{Text: "Choose a direction:", Rows: d.menuRows()}
	}
	return Reply{
		Text: "Choose a new payment method:",
		Rows: methodRows("pay_nm", strconv.FormatInt(orderID, 10)),
	}
}

func (d *Dialog) handleNewMethod(ctx context.Context, user *model.User, rest string) Reply {
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return d.restart(ctx, user)
	}
	orderID, err := strconv.ParseInt(parts[0], 10, 64)
	method := model.PaymentMethod(parts[1])
	if err != nil || !method.Valid() {
		return d.restart(ctx, user)
	}
	order, payment, err := d.orders.ChangeMethod(ctx, user, orderID, method)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderClosed):
			return Reply{Text: "This order is already closed.", Rows: d.menuRows(), Alert: "Order closed"}
		case errors.Is(err, domain.ErrNotOwner), errors.Is(err, domain.ErrNotFound):
			return d.restart(ctx, user)
		}
		d.log.Error().Err(err).Int64("order_id", orderID).Msg("method change failed")
		return d.restart(ctx, user)
	}
	return d.awaitProof(ctx, user, order, payment)
}

func (d *Dialog) handleCancelOrder(ctx context.Context, user *model.User, rest string) Reply {
	orderID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return d.restart(ctx, user)
	}
	if err := d.orders.CancelOrder(ctx, user, orderID); err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderClosed):
			return Reply{Text: "This order is already closed.", Rows: d.menuRows(), Alert: "Order closed"}
		case errors.Is(err, domain.ErrNotOwner), errors.Is(err, domain.ErrNotFound):
			return d.restart(ctx, user)
		}
		d.log.Error().Err(err).Int64("order_id", orderID).Msg("order cancellation failed")
		return d.restart(ctx, user)
	}
	_ = d.states.ClearState(ctx, user.TgUserID)
	return Reply{
		Text: "Order cancelled. Come back any time!",
		Rows: [][]adapter.InlineButton{{{Text: "Main menu", Data: "menu"}}},
	}
}

// --- incoming photos and free text ---

// HandlePhoto treats a photo as a payment receipt when we are waiting for
// one, and ignores it otherwise.
func (d *Dialog) HandlePhoto(ctx context.Context, user *model.User, fileID string) Reply {
	state, err := d.states.GetState(ctx, user.TgUserID)
	if err != nil || state == nil || state.Step != stepAwaitProof {
		return Reply{Text: "If you want to order something, start from the menu: /menu"}
	}
	paymentID, err := strconv.ParseInt(state.Data["payment_id"], 10, 64)
	if err != nil {
		return d.restart(ctx, user)
	}
	if _, err := d.orders.SubmitProof(ctx, user, paymentID, fileID); err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderClosed):
			_ = d.states.ClearState(ctx, user.TgUserID)
			return Reply{Text: "This payment is already decided.", Rows: d.menuRows()}
		case errors.Is(err, domain.ErrNotOwner), errors.Is(err, domain.ErrNotFound):
			return d.restart(ctx, user)
		}
		d.log.Error().Err(err).Int64("payment_id", paymentID).Msg("proof submission failed")
		return Reply{Text: "Something went wrong while sending your receipt. Please try again."}
	}
	_ = d.states.ClearState(ctx, user.TgUserID)
	text := "Thank you! Your receipt is with us and will be reviewed shortly. 🙌"
	if d.cfg.Bot.SupportHandle != "" {
		text += fmt.Sprintf("\nQuestions? Reach us at %s.", d.cfg.Bot.SupportHandle)
	}
	return Reply{Text: text}
}

// HandleText handles free-form messages. The only step that expects text
// is the yoga onboarding intro; everything else gets a gentle hint.
func (d *Dialog) HandleText(ctx context.Context, user *model.User, text string) Reply {
	state, err := d.states.GetState(ctx, user.TgUserID)
	if err == nil && state != nil && state.Step == stepYogaIntro {
		intro := fmt.Sprintf("🧘 New member intro from %s | id: %d\n\n%s", user.DisplayLine(), user.TgUserID, text)
		for _, adminID := range d.cfg.Bot.AdminIDs {
			if err := d.tg.SendMessage(ctx, adminID, intro); err != nil {
				d.log.Error().Err(err).Int64("admin_id", adminID).Msg("failed to forward member intro")
			}
		}
		_ = d.states.ClearState(ctx, user.TgUserID)
		return Reply{Text: "Thank you for sharing! See you at the practice. 🌿"}
	}
	return Reply{Text: "I didn't catch that. Start from the menu: /menu"}
}

// --- pre-expiry survey ---

func (d *Dialog) handleSurvey(ctx context.Context, user *model.User, rest string) Reply {
	parts := strings.Split(rest, ":")
	switch parts[0] {
	case "start":
		if len(parts) != 2 {
			return d.restart(ctx, user)
		}
		subID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return d.restart(ctx, user)
		}
		q, err := d.feedback.StartSurvey(ctx, user, subID)
		if err != nil {
			d.log.Error().Err(err).Int64("subscription_id", subID).Msg("survey start failed")
			return d.restart(ctx, user)
		}
		return d.renderQuestion(subID, q)
	case "a":
		if len(parts) != 4 {
			return d.restart(ctx, user)
		}
		subID, err1 := strconv.ParseInt(parts[1], 10, 64)
		qn, err2 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil {
			return d.restart(ctx, user)
		}
		next, err := d.feedback.RecordAnswer(ctx, user, subID, qn, parts[3])
		if err != nil {
			d.log.Error().Err(err).Int64("subscription_id", subID).Int("question", qn).Msg("survey answer failed")
			return d.restart(ctx, user)
		}
		if next == nil {
			return d.surveyClosing()
		}
		if next.Multi {
			state := &repository.ConversationState{
				Step: stepSurveyPrefs,
				Data: map[string]string{"sub_id": strconv.FormatInt(subID, 10), "prefs": ""},
			}
			if err := d.states.SetState(ctx, user.TgUserID, state); err != nil {
				return d.restart(ctx, user)
			}
			return d.renderPrefs(next, nil)
		}
		return d.renderQuestion(subID, next)
	case "t":
		if len(parts) != 2 {
			return d.restart(ctx, user)
		}
		return d.togglePref(ctx, user, parts[1])
	case "done":
		return d.finishSurvey(ctx, user)
	case "renew":
		return d.renewFromSurvey(ctx, user)
	}
	return d.restart(ctx, user)
}

func (d *Dialog) renderQuestion(subID int64, q *model.SurveyQuestion) Reply {
	rows := make([][]adapter.InlineButton, 0, len(q.Options))
	for _, o := range q.Options {
		rows = append(rows, []adapter.InlineButton{{
			Text: o.Label,
			Data: fmt.Sprintf("yf:a:%d:%d:%s", subID, q.Number, o.Code),
		}})
	}
	return Reply{Text: fmt.Sprintf("%d/%d. %s", q.Number, len(model.SurveyQuestions), q.Prompt), Rows: rows}
}

// renderPrefs shows the multi-select with checkmarks on chosen options.
func (d *Dialog) renderPrefs(q *model.SurveyQuestion, chosen []string) Reply {
	isChosen := func(code string) bool {
		for _, c := range chosen {
			if c == code {
				return true
			}
		}
		return false
	}
	rows := make([][]adapter.InlineButton, 0, len(q.Options)+1)
	for _, o := range q.Options {
		label := o.Label
		if isChosen(o.Code) {
			label = "✅ " + label
		}
		rows = append(rows, []adapter.InlineButton{{Text: label, Data: "yf:t:" + o.Code}})
	}
	rows = append(rows, []adapter.InlineButton{{Text: "Done", Data: "yf:done"}})
	return Reply{Text: fmt.Sprintf("%d/%d. %s\nPick any that apply, then press Done.", q.Number, len(model.SurveyQuestions), q.Prompt), Rows: rows}
}

func (d *Dialog) togglePref(ctx context.Context, user *model.User, code string) Reply {
	state, err := d.states.GetState(ctx, user.TgUserID)
	if err != nil || state == nil || state.Step != stepSurveyPrefs {
		return d.restart(ctx, user)
	}
	chosen := splitPrefs(state.Data["prefs"])
	found := false
	for i, c := range chosen {
		if c == code {
			chosen = append(chosen[:i], chosen[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		chosen = append(chosen, code)
	}
	state.Data["prefs"] = strings.Join(chosen, ",")
	if err := d.states.SetState(ctx, user.TgUserID, state); err != nil {
		return d.restart(ctx, user)
	}
	q := model.SurveyQuestionByNumber(len(model.SurveyQuestions))
	return d.renderPrefs(q, chosen)
}

func (d *Dialog) finishSurvey(ctx context.Context, user *model.User) Reply {
	state, err := d.states.GetState(ctx, user.TgUserID)
	if err != nil || state == nil || state.Step != stepSurveyPrefs {
		return d.restart(ctx, user)
	}
	subID, err := strconv.ParseInt(state.Data["sub_id"], 10, 64)
	if err != nil {
		return d.restart(ctx, user)
	}
	if err := d.feedback.CompleteSurvey(ctx, user, subID, splitPrefs(state.Data["prefs"])); err != nil {
		d.log.Error().Err(err).Int64("subscription_id", subID).Msg("survey completion failed")
		return d.restart(ctx, user)
	}
	_ = d.states.ClearState(ctx, user.TgUserID)
	return d.surveyClosing()
}

func (d *Dialog) surveyClosing() Reply {
	return Reply{
		Text: "Thank you for your answers! 🙏\nWould you like to renew for the next month?",
		Rows: [][]adapter.InlineButton{
			{{Text: "Renew my plan", Data: "yf:renew"}},
			{{Text: "Main menu", Data: "menu"}},
		},
	}
}

// renewFromSurvey jumps straight to payment with the member's current
// plan pre-selected.
func (d *Dialog) renewFromSurvey(ctx context.Context, user *model.User) Reply {
	plan, err := d.feedback.CurrentPlan(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNoCurrentSub) {
			return Reply{Text: "Choose your yoga plan:", Rows: d.yogaRows()}
		}
		d.log.Error().Err(err).Int64("user_id", user.ID).Msg("renewal shortcut failed")
		return d.restart(ctx, user)
	}
	sel := model.Selection{Yoga: &model.YogaSelection{Plan: plan}}
	return d.chooseMethod(ctx, user, plan, sel)
}

func (d *Dialog) yogaRows() [][]adapter.InlineButton {
	rows := make([][]adapter.InlineButton, 0, len(model.YogaProducts))
	for _, p := range model.YogaProducts {
		rows = append(rows, []adapter.InlineButton{{Text: d.priceLabel(p), Data: "y_plan:" + string(p)}})
	}
	return rows
}

// --- helpers ---

func (d *Dialog) priceLabel(p model.Product) string {
	amount := d.cfg.Price(string(p))
	if amount <= 0 {
		return p.Title()
	}
	return fmt.Sprintf("%s — %d RUB", p.Title(), amount)
}

func optionRows(prefix string, opts []Option) [][]adapter.InlineButton {
	rows := make([][]adapter.InlineButton, 0, len(opts))
	for _, o := range opts {
		rows = append(rows, []adapter.InlineButton{{Text: o.Label, Data: prefix + ":" + o.Code}})
	}
	return rows
}

func methodRows(prefix, orderID string) [][]adapter.InlineButton {
	methods := []model.PaymentMethod{model.MethodCard, model.MethodInstant, model.MethodCrypto}
	rows := make([][]adapter.InlineButton, 0, len(methods))
	for _, m := range methods {
		data := prefix + ":" + string(m)
		if orderID != "" {
			data = prefix + ":" + orderID + ":" + string(m)
		}
		rows = append(rows, []adapter.InlineButton{{Text: m.Title(), Data: data}})
	}
	return rows
}

func splitCallback(data string) (string, string) {
	if i := strings.Index(data, ":"); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, ""
}

func splitPrefs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
