package application

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"telegram-commerce-bot/internal/config"
	"telegram-commerce-bot/internal/domain"
	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/domain/ports/adapter"
	"telegram-commerce-bot/internal/domain/ports/repository"
	"telegram-commerce-bot/internal/usecase"

	"github.com/rs/zerolog"
)

// --- local stubs ---

type memStates struct {
	mu sync.Mutex
	m  map[int64]*repository.ConversationState
}

var _ repository.StateRepository = (*memStates)(nil)

func newMemStates() *memStates {
	return &memStates{m: map[int64]*repository.ConversationState{}}
}

func (s *memStates) SetState(ctx context.Context, tgID int64, state *repository.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.m[tgID] = &cp
	return nil
}

func (s *memStates) GetState(ctx context.Context, tgID int64) (*repository.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[tgID]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (s *memStates) ClearState(ctx context.Context, tgID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, tgID)
	return nil
}

type createdOrder struct {
	Product model.Product
	Sel     model.Selection
	Method  model.PaymentMethod
}

type stubOrders struct {
	created   []createdOrder
	proofs    []string
	cancelled []int64
	createErr error
	submitErr error
	nextID    int64
}

var _ usecase.OrderUseCase = (*stubOrders)(nil)

func (s *stubOrders) CreateOrderAndPayment(ctx context.Context, user *model.User, product model.Product, sel model.Selection, method model.PaymentMethod) (*model.Order, *model.Payment, error) {
	if s.createErr != nil {
		return nil, nil, s.createErr
	}
	s.created = append(s.created, createdOrder{Product: product, Sel: sel, Method: method})
	s.nextID++
	order := &model.Order{ID: s.nextID, UserID: user.ID, Product: product, Direction: product.Direction(), Selection: sel, Status: model.OrderStatusAwaitingPayment}
	payment := &model.Payment{ID: s.nextID, OrderID: s.nextID, UserID: user.ID, Method: method, Currency: method.Currency(), Amount: 1500, Status: model.PaymentStatusPending}
	return order, payment, nil
}

func (s *stubOrders) SubmitProof(ctx context.Context, user *model.User, paymentID int64, proofFileID string) (*model.Payment, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.proofs = append(s.proofs, proofFileID)
	return &model.Payment{ID: paymentID, UserID: user.ID, Status: model.PaymentStatusProofSubmitted}, nil
}

func (s *stubOrders) ChangeMethod(ctx context.Context, user *model.User, orderID int64, method model.PaymentMethod) (*model.Order, *model.Payment, error) {
	order := &model.Order{ID: orderID, UserID: user.ID, Product: model.ProductYoga8, Status: model.OrderStatusAwaitingPayment}
	payment := &model.Payment{ID: orderID + 100, OrderID: orderID, UserID: user.ID, Method: method, Currency: method.Currency(), Amount: 1500, Status: model.PaymentStatusPending}
	return order, payment, nil
}

func (s *stubOrders) CancelOrder(ctx context.Context, user *model.User, orderID int64) error {
	s.cancelled = append(s.cancelled, orderID)
	return nil
}

func (s *stubOrders) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return nil, domain.ErrNotFound
}

func (s *stubOrders) GetPayment(ctx context.Context, id int64) (*model.Payment, error) {
	return nil, domain.ErrNotFound
}

type stubFeedback struct {
	answers   map[int]string
	prefs     []string
	plan      model.Product
	planErr   error
	completed bool
}

var _ usecase.FeedbackUseCase = (*stubFeedback)(nil)

func (s *stubFeedback) SendDueSurveys(ctx context.Context) (int, int, error) { return 0, 0, nil }

func (s *stubFeedback) StartSurvey(ctx context.Context, user *model.User, subscriptionID int64) (*model.SurveyQuestion, error) {
	return model.SurveyQuestionByNumber(1), nil
}

func (s *stubFeedback) RecordAnswer(ctx context.Context, user *model.User, subscriptionID int64, questionNumber int, option string) (*model.SurveyQuestion, error) {
	if s.answers == nil {
		s.answers = map[int]string{}
	}
	s.answers[questionNumber] = option
	return model.SurveyQuestionByNumber(questionNumber + 1), nil
}

func (s *stubFeedback) CompleteSurvey(ctx context.Context, user *model.User, subscriptionID int64, preferences []string) error {
	s.prefs = preferences
	s.completed = true
	return nil
}

func (s *stubFeedback) CurrentPlan(ctx context.Context, userID int64) (model.Product, error) {
	if s.planErr != nil {
		return "", s.planErr
	}
	return s.plan, nil
}

type recordedMsg struct {
	ChatID int64
	Text   string
}

type stubTransport struct {
	messages []recordedMsg
}

var _ adapter.Transport = (*stubTransport)(nil)

func (s *stubTransport) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.messages = append(s.messages, recordedMsg{chatID, text})
	return nil
}

func (s *stubTransport) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	s.messages = append(s.messages, recordedMsg{chatID, text})
	return nil
}

func (s *stubTransport) SendPhotoWithButtons(ctx context.Context, chatID int64, fileID, caption string, rows [][]adapter.InlineButton) error {
	return nil
}

func (s *stubTransport) CreateSingleUseInvite(ctx context.Context, channelID int64, name string, expiresIn time.Duration) (string, error) {
	return "https://t.me/+stub", nil
}

func (s *stubTransport) RevokeMembership(ctx context.Context, channelID, tgUserID int64) error {
	return nil
}

func (s *stubTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return nil
}

// --- fixture ---

type dialogFixture struct {
	d        *Dialog
	states   *memStates
	orders   *stubOrders
	feedback *stubFeedback
	tg       *stubTransport
	user     *model.User
}

func newDialogFixture(t *testing.T) *dialogFixture {
	t.Helper()
	states := newMemStates()
	orders := &stubOrders{}
	feedback := &stubFeedback{}
	tg := &stubTransport{}
	cfg := &config.Config{
		Bot: config.BotConfig{AdminIDs: []int64{9001, 9002}, SupportHandle: "@support"},
		Prices: map[string]int64{
			"en_trial": 500, "en_single": 1500, "en_pack10": 12000,
			"yoga_4": 2000, "yoga_8": 3500, "yoga_10_individual": 8000,
			"astro_one": 2500, "astro_full": 6000,
			"mentor_week": 4000, "mentor_month": 12000,
		},
		Payment: config.PaymentConfig{
			CardDetails: "1234 5678", CardOwner: "Jane D.",
			InstantKey: "pix-key", InstantReceiver: "Jane D.",
			CryptoNetwork: "TRC20", CryptoWallet: "Txyz",
		},
	}
	logger := zerolog.Nop()
	d := NewDialog(states, orders, feedback, tg, cfg, &logger)
	user := &model.User{ID: 1, TgUserID: 111, Username: "jdoe", FirstName: "Jane"}
	return &dialogFixture{d: d, states: states, orders: orders, feedback: feedback, tg: tg, user: user}
}

func callbackData(r Reply) []string {
	var out []string
	for _, row := range r.Rows {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

// --- tests ---

func TestMenuListsDirections(t *testing.T) {
	f := newDialogFixture(t)
	r := f.d.Menu(context.Background(), f.user)
	data := callbackData(r)
	want := []string{"dir:english", "dir:chinese", "dir:yoga", "dir:astrology", "dir:mentoring"}
	if len(data) != len(want) {
		t.Fatalf("menu entries = %v", data)
	}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("menu[%d] = %s, want %s", i, data[i], want[i])
		}
	}
}

func TestLanguageFlowToPayment(t *testing.T) {
	f := newDialogFixture(t)
	ctx := context.Background()

	r := f.d.HandleCallback(ctx, f.user, "dir:english")
	if !strings.Contains(r.Text, "goal") {
		t.Fatalf("expected the goal question, got %q", r.Text)
	}
	r = f.d.HandleCallback(ctx, f.user, "lg_goal:work")
	if !strings.Contains(r.Text, "level") {
		t.Fatalf("expected the level question, got %q", r.Text)
	}
	r = f.d.HandleCallback(ctx, f.user, "lg_level:beginner")
	if !strings.Contains(r.Text, "often") {
		t.Fatalf("expected the frequency question, got %q", r.Text)
	}
	r = f.d.HandleCallback(ctx, f.user, "lg_freq:2_per_week")
	data := callbackData(r)
	if len(data) != 3 || data[2] != "lg_prod:en_pack10" {
		t.Fatalf("expected english tiers, got %v", data)
	}
	r = f.d.HandleCallback(ctx, f.user, "lg_prod:en_pack10")
	data = callbackData(r)
	if len(data) != 3 || data[0] != "pay_m:card" {
		t.Fatalf("expected payment methods, got %v", data)
	}

	r = f.d.HandleCallback(ctx, f.user, "pay_m:card")
	if len(f.orders.created) != 1 {
		t.Fatalf("orders created = %d", len(f.orders.created))
	}
	got := f.orders.created[0]
	if got.Product != model.ProductEnglishPack10 || got.Method != model.MethodCard {
		t.Errorf("created = %+v", got)
	}
	// Codes were resolved to labels before reaching the order.
	if got.Sel.Language == nil || got.Sel.Language.Goal != "For work" || got.Sel.Language.Level != "Beginner" {
		t.Errorf("selection = %+v", got.Sel.Language)
	}
	if !strings.Contains(r.Text, "1234 5678") {
		t.Errorf("card instructions missing, got %q", r.Text)
	}
	state, _ := f.states.GetState(ctx, f.user.TgUserID)
	if state == nil || state.Step != stepAwaitProof {
		t.Errorf("state = %+v, want proof wait", state)
	}
}

func TestWrongDirectionProductRestarts(t *testing.T) {
	f := newDialogFixture(t)
	ctx := context.Background()
	f.d.HandleCallback(ctx, f.user, "dir:english")
	f.d.HandleCallback(ctx, f.user, "lg_goal:work")
	f.d.HandleCallback(ctx, f.user, "lg_level:beginner")
	f.d.HandleCallback(ctx, f.user, "lg_freq:2_per_week")

	// Stale button from a chinese menu must not produce an english order.
	r := f.d.HandleCallback(ctx, f.user, "lg_prod:cn_pack10")
	if !strings.Contains(r.Text, "start over") {
		t.Fatalf("expected a restart, got %q", r.Text)
	}
	if len(f.orders.created) != 0 {
		t.Errorf("no order should be created")
	}
}

func TestUnknownOptionCodeKeepsStep(t *testing.T) {
	f := newDialogFixture(t)
	ctx := context.Background()
	f.d.HandleCallback(ctx, f.user, "dir:english")

	// A code outside the step's option set gets a soft error and the flow
	// stays put.
	r := f.d.HandleCallback(ctx, f.user, "lg_goal:__bogus__")
	if r.Alert == "" {
		t.Errorf("expected a soft-error popup, got %+v", r)
	}
	data := callbackData(r)
	if len(data) == 0 || !strings.HasPrefix(data[0], "lg_goal:") {
		t.Errorf("the goal options should be re-offered, got %v", data)
	}
	state, _ := f.states.GetState(ctx, f.user.TgUserID)
	if state == nil || state.Step != stepLangGoal {
		t.Fatalf("flow must not advance on an unknown code, state = %+v", state)
	}
	if _, ok := state.Data["goal"]; ok {
		t.Errorf("the bogus code must not be recorded: %v", state.Data)
	}

	// A real option still works.
	f.d.HandleCallback(ctx, f.user, "lg_goal:work")
	state, _ = f.states.GetState(ctx, f.user.TgUserID)
	if state == nil || state.Step != stepLangLevel || state.Data["goal"] != "work" {
		t.Errorf("valid choice should advance, state = %+v", state)
	}
}

func TestUnknownAstroSphereKeepsStep(t *testing.T) {
	f := newDialogFixture(t)
	ctx := context.Background()
	f.d.HandleCallback(ctx, f.user, "dir:astrology")

	r := f.d.HandleCallback(ctx, f.user, "as_sphere:__bogus__")
	if r.Alert == "" {
		t.Errorf("expected a soft-error popup, got %+v", r)
	}
	state, _ := f.states.GetState(ctx, f.user.TgUserID)
	if state == nil || state.Step != stepAstroFormat {
		t.Fatalf("flow must not advance on an unknown sphere, state = %+v", state)
	}
	if _, ok := state.Data["sphere"]; ok {
		t.Errorf("the bogus sphere must not be recorded: %v", state.Data)
	}
	r = f.d.HandleCallback(ctx, f.user, "as_fmt:__bogus__")
	if r.Alert == "" || len(f.orders.created) != 0 {
		t.Errorf("an unknown format must not reach ordering, reply %+v", r)
	}
}

func TestDirectionEntryDropsStaleScratch(t *testing.T) {
	f := newDialogFixture(t)
	ctx := context.Background()
	f.d.HandleCallback(ctx, f.user, "dir:english")
	f.d.HandleCallback(ctx, f.user, "lg_goal:work")

	// Abandoning the language flow for yoga leaves nothing behind.
	f.d.HandleCallback(ctx, f.user, "dir:yoga")
	state, _ := f.states.GetState(ctx, f.user.TgUserID)
	if state != nil {
		t.Errorf("direction entry must drop prior scratch, state = %+v", state)
	}
}

func TestCallbackWithoutStateRestarts(t *testing.T) {
	f := newDialogFixture(t)
	r := f.d.HandleCallback(context.Background(), f.user, "lg_level:beginner")
	if !strings.Contains(r.Text, "start over") {
		t.Fatalf("expected a restart, got %q", r.Text)
	}
	data := callbackData(r)
	if len(data) == 0 || data[0] != "dir:english" {
		t.Errorf("restart should show the menu, got %v", data)
	}
}

func TestUnknownCallbackRestarts(t *testing.T) {
	f := newDialogFixture(t)
	r := f.d.HandleCallback(context.Background(), f.user, "bogus:data")
	if !strings.Contains(r.Text, "start over") {
		t.Fatalf("expected a restart, got %q", r.Text)
	}
}

func TestYogaPlanStraightToPayment(t *testing.T) {
	f := newDialogFixture(t)
	ctx := context.Background()

	r := f.d.HandleCallback(ctx, f.user, "dir:yoga")
	data := callbackData(r)
	if len(data) != 3 || data[0] != "y_plan:yoga_4" {
		t.Fatalf("yoga plans = %v", data)
	}
	if !strings.Contains(r.Rows[0][0].Text, "2000 RUB") {
		t.Errorf("plan label should carry the price, got %q", r.Rows[0][0].Text)
	}
	r = f.d.HandleCallback(ctx, f.user, "y_plan:yoga_8")
	if len(callbackData(r)) != 3 {
		t.Fatalf("expected payment methods, got %v", callbackData(r))
	}
	state, _ := f.states.GetState(ctx, f.user.TgUserID)
	if state == nil || state.Step != stepAwaitMethod {
		t.Errorf("state = %+v", state)
	}
}

func TestOpenPaymentConflictClearsState(t *testing.T) {
	f := newDialogFixture(t)
	ctx := context.Background()
	f.d.HandleCallback(ctx, f.user, "dir:yoga")
	f.d.HandleCallback(ctx, f.user, "y_plan:yoga_8")
	f.orders.createErr = domain.ErrConflict

	r := f.d.HandleCallback(ctx, f.user, "pay_m:card")
	if r.Alert == "" {
		t.Errorf("conflict should answer the callback with a popup")
	}
	if !strings.Contains(r.Text, "awaiting review") {
		t.Errorf("reply = %q", r.Text)
	}
	state, _ := f.states.GetState(ctx, f.user.TgUserID)
	if state != nil {
		t.Errorf("scratch state should be dropped, got %+v", state)
	}
}

func TestPhotoSubmitsProofOnlyWhileWaiting(t *testing.T) {
	f := newDialogFixture(t)
	ctx := context.Background()

	r := f.d.HandlePhoto(ctx, f.user, "file-1")
	if !strings.Contains(r.Text, "/menu") {
		t.Fatalf("unexpected photo should hint at the menu, got %q", r.Text)
	}
	if len(f.orders.proofs) != 0 {
		t.Fatalf("no proof should be submitted")
	}

	_ = f.states.SetState(ctx, f.user.TgUserID, &repository.ConversationState{
		Step: stepAwaitProof,
		Data: map[string]string{"payment_id": "7", "order_id": "7"},
	})
	r = f.d.HandlePhoto(ctx, f.user, "file-2")
	if len(f.orders.proofs) != 1 || f.orders.proofs[0] != "file-2" {
		t.Fatalf("proofs = %v", f.orders.proofs)
	}
	if !strings.Contains(r.Text, "Thank you") {
		t.Errorf("reply = %q", r.Text)
	}
	state, _ := f.states.GetState(ctx, f.user.TgUserID)
	if state != nil {
		t.Errorf("state should be cleared after submission")
	}
}

func TestPhotoOnDecidedPaymentShowsMenu(t *testing.T) {
	f := newDialogFixture(t)
	ctx := context.Background()
	_ = f.states.SetState(ctx, f.user.TgUserID, &repository.ConversationState{
		Step: stepAwaitProof,
		Data: map[string]string{"payment_id": "7", "order_id": "7"},
	})
	f.orders.submitErr = domain.ErrOrderClosed

	r := f.d.HandlePhoto(ctx, f.user, "file-1")
	if !strings.Contains(r.Text, "already decided") {
		t.Fatalf("reply = %q", r.Text)
	}
	state, _ := f.states.GetState(ctx, f.user.TgUserID)
	if state != nil {
		t.Errorf("stale proof state should be cleared")
	}
}

func TestYogaIntroForwardedToAdmins(t *testing.T) {
	f := newDialogFixture(t)
	ctx := context.Background()
	_ = f.states.SetState(ctx, f.user.TgUserID, &repository.ConversationState{
		Step: stepYogaIntro, Data: map[string]string{},
	})

	r := f.d.HandleText(ctx, f.user, "I practiced for two years, knee injury.")
	if !strings.Contains(r.Text, "Thank you") {
		t.Fatalf("reply = %q", r.Text)
	}
	if len(f.tg.messages) != 2 {
		t.Fatalf("admin forwards = %d, want one per admin", len(f.tg.messages))
	}
	for _, m := range f.tg.messages {
		if !strings.Contains(m.Text, "knee injury") || !strings.Contains(m.Text, "Jane (@jdoe)") {
			t.Errorf("forward = %q", m.Text)
		}
	}
	state, _ := f.states.GetState(ctx, f.user.TgUserID)
	if state != nil {
		t.Errorf("intro state should be cleared")
	}
}

func TestFreeTextOutsideIntroHints(t *testing.T) {
	f := newDialogFixture(t)
	r := f.d.HandleText(context.Background(), f.user, "hello?")
	if !strings.Contains(r.Text, "/menu") {
		t.Fatalf("reply = %q", r.Text)
	}
	if len(f.tg.messages) != 0 {
		t.Errorf("nothing should be forwarded")
	}
}

func TestSurveyFlowWithMultiSelect(t *testing.T) {
	f := newDialogFixture(t)
	ctx := context.Background()

	r := f.d.HandleCallback(ctx, f.user, "yf:start:5")
	if !strings.Contains(r.Text, "1/6") {
		t.Fatalf("first question = %q", r.Text)
	}
	data := callbackData(r)
	if len(data) != 3 || data[0] != "yf:a:5:1:easy" {
		t.Fatalf("question options = %v", data)
	}

	// Question 5's answer leads into the multi-select.
	r = f.d.HandleCallback(ctx, f.user, "yf:a:5:5:8_per_month")
	if !strings.Contains(r.Text, "6/6") || !strings.Contains(r.Text, "Done") {
		t.Fatalf("expected the multi-select, got %q", r.Text)
	}
	state, _ := f.states.GetState(ctx, f.user.TgUserID)
	if state == nil || state.Step != stepSurveyPrefs {
		t.Fatalf("state = %+v", state)
	}

	// Toggle on, toggle another, toggle the first off.
	r = f.d.HandleCallback(ctx, f.user, "yf:t:gentle_stretch")
	if !strings.Contains(r.Rows[0][0].Text, "✅") {
		t.Errorf("chosen option should be checked, rows = %v", r.Rows)
	}
	f.d.HandleCallback(ctx, f.user, "yf:t:breath_relax")
	f.d.HandleCallback(ctx, f.user, "yf:t:gentle_stretch")

	r = f.d.HandleCallback(ctx, f.user, "yf:done")
	if !f.feedback.completed {
		t.Fatalf("survey should be completed")
	}
	if len(f.feedback.prefs) != 1 || f.feedback.prefs[0] != "breath_relax" {
		t.Errorf("prefs = %v", f.feedback.prefs)
	}
	data = callbackData(r)
	if len(data) == 0 || data[0] != "yf:renew" {
		t.Errorf("closing should offer renewal, got %v", data)
	}
}

func TestRenewFromSurveyUsesCurrentPlan(t *testing.T) {
	f := newDialogFixture(t)
	f.feedback.plan = model.ProductYoga8
	ctx := context.Background()

	r := f.d.HandleCallback(ctx, f.user, "yf:renew")
	data := callbackData(r)
	if len(data) != 3 || data[0] != "pay_m:card" {
		t.Fatalf("renewal should jump to payment methods, got %v", data)
	}
	state, _ := f.states.GetState(ctx, f.user.TgUserID)
	if state == nil || state.Step != stepAwaitMethod || state.Data["product"] != "yoga_8" {
		t.Errorf("state = %+v", state)
	}
}

func TestRenewWithoutSubscriptionShowsPlans(t *testing.T) {
	f := newDialogFixture(t)
	f.feedback.planErr = domain.ErrNoCurrentSub

	r := f.d.HandleCallback(context.Background(), f.user, "yf:renew")
	data := callbackData(r)
	if len(data) != 3 || data[0] != "y_plan:yoga_4" {
		t.Fatalf("lapsed member should see the plan menu, got %v", data)
	}
}
