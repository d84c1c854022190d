package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telegram-commerce-bot/internal/config"
	"telegram-commerce-bot/internal/domain"
	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/domain/ports/adapter"
	"telegram-commerce-bot/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

var (
	_ repository.TransactionManager         = memTxManager{}
	_ repository.UserRepository             = (*memUserRepo)(nil)
	_ repository.OrderRepository            = (*memOrderRepo)(nil)
	_ repository.PaymentRepository          = (*memPaymentRepo)(nil)
	_ repository.SubscriptionRepository     = (*memSubRepo)(nil)
	_ repository.ChannelAccessLogRepository = (*memAccessLog)(nil)
	_ repository.FeedbackRepository         = (*memFeedbackRepo)(nil)
	_ repository.StateRepository            = (*memStateRepo)(nil)
	_ adapter.Transport                     = (*fakeTransport)(nil)
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func testConfig() *config.Config {
	return &config.Config{
		Bot: config.BotConfig{
			Token:         "dummy",
			AdminIDs:      []int64{9001, 9002},
			SupportHandle: "@support",
		},
		Prices: map[string]int64{
			"en_trial":           500,
			"en_single":          1500,
			"en_pack10":          12000,
			"yoga_4":             2000,
			"yoga_8":             3500,
			"yoga_10_individual": 8000,
			"astro_one":          2500,
			"astro_full":         6000,
			"mentor_week":        4000,
			"mentor_month":       12000,
		},
		Channels: config.ChannelsConfig{
			Personal:     -100500,
			YogaPersonal: -100600,
			Yoga: map[string]int64{
				"yoga_4": -100700,
				"yoga_8": -100800,
				// yoga_10_individual has no group channel on purpose
			},
		},
		Subscription: config.SubscriptionConfig{
			PeriodDays:       30,
			InviteLinkExpiry: 48 * time.Hour,
		},
		Scheduler: config.SchedulerConfig{
			Timezone:          "UTC",
			FeedbackLookahead: 1,
		},
	}
}

// memTxManager runs the callback without a real transaction. Repositories
// in this file accept a nil tx.
type memTxManager struct{}

func (memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// --- users ---

type memUserRepo struct {
	mu     sync.RWMutex
	byID   map[int64]*model.User
	byTgID map[int64]*model.User
	nextID int64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[int64]*model.User{}, byTgID: map[int64]*model.User{}}
}

func (m *memUserRepo) Upsert(ctx context.Context, tx repository.Tx, tgUserID int64, username, firstName string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byTgID[tgUserID]; ok {
		u.Username, u.FirstName = username, firstName
		cp := *u
		return &cp, nil
	}
	m.nextID++
	u := &model.User{ID: m.nextID, TgUserID: tgUserID, Username: username, FirstName: firstName, CreatedAt: time.Now()}
	m.byID[u.ID] = u
	m.byTgID[tgUserID] = u
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByTgID(ctx context.Context, tx repository.Tx, tgUserID int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byTgID[tgUserID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// --- orders ---

type memOrderRepo struct {
	mu     sync.RWMutex
	orders map[int64]*model.Order
	nextID int64
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[int64]*model.Order{}}
}

func (m *memOrderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *o
	cp.ID = m.nextID
	m.orders[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) SetStatus(ctx context.Context, tx repository.Tx, id int64, status model.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	return nil
}

// --- payments ---

type memPaymentRepo struct {
	mu       sync.RWMutex
	payments map[int64]*model.Payment
	nextID   int64
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: map[int64]*model.Payment{}}
}

// Create mirrors the partial unique index: a second open payment for the
// same user is a conflict.
func (m *memPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.payments {
		if q.UserID == p.UserID && q.Status.Open() {
			return 0, domain.ErrConflict
		}
	}
	m.nextID++
	cp := *p
	cp.ID = m.nextID
	m.payments[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) UpdateProof(ctx context.Context, tx repository.Tx, id int64, proofFileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.ProofFileID = &proofFileID
	p.Status = model.PaymentStatusProofSubmitted
	p.UpdatedAt = time.Now()
	return nil
}

func (m *memPaymentRepo) Approve(ctx context.Context, tx repository.Tx, id int64, adminID int64) error {
	return m.close(id, adminID, model.PaymentStatusPaid)
}

func (m *memPaymentRepo) Reject(ctx context.Context, tx repository.Tx, id int64, adminID int64) error {
	return m.close(id, adminID, model.PaymentStatusRejected)
}

func (m *memPaymentRepo) close(id, adminID int64, status model.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !p.Status.Open() {
		return domain.ErrAlreadyHandled
	}
	p.Status = status
	p.ApprovedByAdmin = &adminID
	p.UpdatedAt = time.Now()
	return nil
}

func (m *memPaymentRepo) CancelOpenForOrder(ctx context.Context, tx repository.Tx, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrderID == orderID && p.Status.Open() {
			p.Status = model.PaymentStatusCancelled
		}
	}
	return nil
}

func (m *memPaymentRepo) OpenPaymentExists(ctx context.Context, tx repository.Tx, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.UserID == userID && p.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

// --- subscriptions ---

type memSubRepo struct {
	mu     sync.RWMutex
	byUser map[int64]*model.Subscription
	nextID int64
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{byUser: map[int64]*model.Subscription{}}
}

func (m *memSubRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUser[s.UserID]; ok {
		return 0, domain.ErrConflict
	}
	m.nextID++
	cp := *s
	cp.ID = m.nextID
	m.byUser[cp.UserID] = &cp
	return cp.ID, nil
}

func (m *memSubRepo) FindCurrentByUser(ctx context.Context, tx repository.Tx, userID int64) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byUser[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byUser[s.UserID]
	if !ok || cur.ID != s.ID {
		return domain.ErrNotFound
	}
	cp := *s
	m.byUser[s.UserID] = &cp
	return nil
}

func (m *memSubRepo) MarkExpired(ctx context.Context, tx repository.Tx, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byUser {
		if s.ID == id {
			s.Status = model.SubscriptionStatusExpired
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memSubRepo) ListDue(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.byUser {
		if s.Status == model.SubscriptionStatusActive && s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubRepo) ListExpiringOn(ctx context.Context, tx repository.Tx, day time.Time) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	var out []*model.Subscription
	for _, s := range m.byUser {
		if s.Status != model.SubscriptionStatusActive || s.FeedbackSentAt != nil || s.ExpiresAt == nil {
			continue
		}
		if !s.ExpiresAt.Before(start) && s.ExpiresAt.Before(end) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubRepo) MarkFeedbackSent(ctx context.Context, tx repository.Tx, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byUser {
		if s.ID == id {
			now := time.Now()
			s.FeedbackSentAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

// --- access log ---

type accessEntry struct {
	UserID     int64
	ChannelKey string
	InviteLink *string
	Revoked    bool
}

type memAccessLog struct {
	mu      sync.Mutex
	entries []*accessEntry
}

func newMemAccessLog() *memAccessLog { return &memAccessLog{} }

func (m *memAccessLog) Append(ctx context.Context, tx repository.Tx, userID int64, channelKey string, inviteLink *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, &accessEntry{UserID: userID, ChannelKey: channelKey, InviteLink: inviteLink})
	return nil
}

func (m *memAccessLog) Revoke(ctx context.Context, tx repository.Tx, userID int64, channelKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.UserID == userID && e.ChannelKey == channelKey && !e.Revoked {
			e.Revoked = true
		}
	}
	return nil
}

func (m *memAccessLog) open(userID int64, channelKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.UserID == userID && e.ChannelKey == channelKey && !e.Revoked {
			n++
		}
	}
	return n
}

// --- feedback ---

type fbKey struct{ userID, subID int64 }

type memFeedbackRepo struct {
	mu   sync.Mutex
	rows map[fbKey]*model.YogaFeedback
}

func newMemFeedbackRepo() *memFeedbackRepo {
	return &memFeedbackRepo{rows: map[fbKey]*model.YogaFeedback{}}
}

func (m *memFeedbackRepo) UpsertBlank(ctx context.Context, tx repository.Tx, userID, subscriptionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := fbKey{userID, subscriptionID}
	if _, ok := m.rows[k]; !ok {
		m.rows[k] = &model.YogaFeedback{UserID: userID, SubscriptionID: subscriptionID}
	}
	return nil
}

func (m *memFeedbackRepo) SetAnswer(ctx context.Context, tx repository.Tx, userID, subscriptionID int64, field model.FeedbackField, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[fbKey{userID, subscriptionID}]
	if !ok {
		return domain.ErrNotFound
	}
	switch field {
	case model.FeedbackQ1Difficulty:
		v := value.(string)
		row.Q1Difficulty = &v
	case model.FeedbackQ2Pace:
		v := value.(string)
		row.Q2Pace = &v
	case model.FeedbackQ3State:
		v := value.(string)
		row.Q3State = &v
	case model.FeedbackQ4Format:
		v := value.(string)
		row.Q4Format = &v
	case model.FeedbackQ5Frequency:
		v := value.(string)
		row.Q5Frequency = &v
	case model.FeedbackQ6Preferences:
		row.Q6Preferences = value.([]string)
	default:
		return domain.ErrInvalidArgument
	}
	row.UpdatedAt = time.Now()
	return nil
}

func (m *memFeedbackRepo) Get(ctx context.Context, tx repository.Tx, userID, subscriptionID int64) (*model.YogaFeedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[fbKey{userID, subscriptionID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

// --- dialog state ---

type memStateRepo struct {
	mu     sync.Mutex
	states map[int64]*repository.ConversationState
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: map[int64]*repository.ConversationState{}}
}

func (m *memStateRepo) SetState(ctx context.Context, tgID int64, state *repository.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[tgID] = &cp
	return nil
}

func (m *memStateRepo) GetState(ctx context.Context, tgID int64) (*repository.ConversationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[tgID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStateRepo) ClearState(ctx context.Context, tgID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, tgID)
	return nil
}

// --- transport ---

type sentMessage struct {
	ChatID int64
	Text   string
	Rows   [][]adapter.InlineButton
}

type sentPhoto struct {
	ChatID  int64
	FileID  string
	Caption string
	Rows    [][]adapter.InlineButton
}

type inviteCall struct {
	ChannelID int64
	Name      string
}

type revokeCall struct {
	ChannelID int64
	TgUserID  int64
}

// fakeTransport records every outbound chat interaction. Failures can be
// injected per chat id or for invite creation.
type fakeTransport struct {
	mu       sync.Mutex
	messages []sentMessage
	photos   []sentPhoto
	invites  []inviteCall
	revokes  []revokeCall

	failSendTo map[int64]error
	inviteErr  error
	revokeErr  error
	inviteSeq  int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failSendTo: map[int64]error{}}
}

func (f *fakeTransport) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failSendTo[chatID]; ok {
		return err
	}
	f.messages = append(f.messages, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeTransport) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failSendTo[chatID]; ok {
		return err
	}
	f.messages = append(f.messages, sentMessage{ChatID: chatID, Text: text, Rows: rows})
	return nil
}

func (f *fakeTransport) SendPhotoWithButtons(ctx context.Context, chatID int64, fileID, caption string, rows [][]adapter.InlineButton) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failSendTo[chatID]; ok {
		return err
	}
	f.photos = append(f.photos, sentPhoto{ChatID: chatID, FileID: fileID, Caption: caption, Rows: rows})
	return nil
}

func (f *fakeTransport) CreateSingleUseInvite(ctx context.Context, channelID int64, name string, expiresIn time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inviteErr != nil {
		return "", f.inviteErr
	}
	f.inviteSeq++
	f.invites = append(f.invites, inviteCall{ChannelID: channelID, Name: name})
	return fmt.Sprintf("https://t.me/+invite%d", f.inviteSeq), nil
}

func (f *fakeTransport) RevokeMembership(ctx context.Context, channelID, tgUserID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revokes = append(f.revokes, revokeCall{ChannelID: channelID, TgUserID: tgUserID})
	return nil
}

func (f *fakeTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return nil
}

func (f *fakeTransport) messagesTo(chatID int64) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}
