package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"telegram-commerce-bot/internal/config"
	"telegram-commerce-bot/internal/domain"
	"telegram-commerce-bot/internal/domain/model"
	"telegram-commerce-bot/internal/domain/ports/adapter"
	"telegram-commerce-bot/internal/domain/ports/repository"
	"telegram-commerce-bot/internal/infra/logging"
	"telegram-commerce-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ FeedbackUseCase = (*feedbackUC)(nil)

// FeedbackUseCase runs the pre-expiry survey: invitation the day before
// the subscription ends, six questions, a summary for the admins and a
// renewal shortcut for the member.
type FeedbackUseCase interface {
	// SendDueSurveys invites every member whose subscription expires on
	// the lookahead day and who has not been invited yet. The sent marker
	// is written only after delivery succeeds, so a failed send retries
	// on the next run; a crash between send and mark means at most one
	// duplicate invitation, never a silent miss.
	SendDueSurveys(ctx context.Context) (int, int, error)
	// StartSurvey opens (or re-opens) the member's answer row and returns
	// the first question.
	StartSurvey(ctx context.Context, user *model.User, subscriptionID int64) (*model.SurveyQuestion, error)
	// RecordAnswer stores a single-choice answer and returns the next
	// question, nil when the stored answer was the last single-choice one
	// (the multi-select closes via CompleteSurvey).
	RecordAnswer(ctx context.Context, user *model.User, subscriptionID int64, questionNumber int, option string) (*model.SurveyQuestion, error)
	// CompleteSurvey stores the multi-select preferences and sends the
	// admins a readable summary.
	CompleteSurvey(ctx context.Context, user *model.User, subscriptionID int64, preferences []string) error
	// CurrentPlan returns the member's present plan for the renewal
	// shortcut shown after the survey.
	CurrentPlan(ctx context.Context, userID int64) (model.Product, error)
}

type feedbackUC struct {
	subs     repository.SubscriptionRepository
	users    repository.UserRepository
	feedback repository.FeedbackRepository
	tg       adapter.Transport
	cfg      *config.Config
	now      func() time.Time
	log      *zerolog.Logger
}

func NewFeedbackUseCase(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	feedback repository.FeedbackRepository,
	tg adapter.Transport,
	cfg *config.Config,
	logger *zerolog.Logger,
) *feedbackUC {
	l := logger.With().Str("component", "FeedbackUC").Logger()
	return &feedbackUC{
		subs: subs, users: users, feedback: feedback,
		tg: tg, cfg: cfg, now: time.Now, log: &l,
	}
}

func (u *feedbackUC) SendDueSurveys(ctx context.Context) (int, int, error) {
	defer logging.TraceDuration(u.log, "FeedbackUC.SendDueSurveys")()
	day := u.now().AddDate(0, 0, u.cfg.Scheduler.FeedbackLookahead)
	due, err := u.subs.ListExpiringOn(ctx, repository.NoTX, day)
	if err != nil {
		return 0, 0, err
	}
	sent := 0
	for _, sub := range due {
		if err := u.inviteOne(ctx, sub); err != nil {
			u.log.Error().Err(err).Int64("subscription_id", sub.ID).Msg("survey invitation failed")
			metrics.IncJob("feedback", "failed")
			continue
		}
		sent++
		metrics.IncJob("feedback", "completed")
	}
	u.log.Info().Int("sent", sent).Int("total", len(due)).Msg("survey round finished")
	return sent, len(due), nil
}

func (u *feedbackUC) inviteOne(ctx context.Context, sub *model.Subscription) error {
	user, err := u.users.FindByID(ctx, repository.NoTX, sub.UserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", sub.UserID, err)
	}
	text := "🧘 Your subscription ends tomorrow.\n" +
		"Help us plan next month: a short survey, six quick questions."
	rows := [][]adapter.InlineButton{{
		{Text: "Take the survey", Data: fmt.Sprintf("yf:start:%d", sub.ID)},
	}}
	if err := u.tg.SendButtons(ctx, user.TgUserID, text, rows); err != nil {
		return fmt.Errorf("deliver invitation: %w", err)
	}
	// Mark only after delivery: an unsent invitation must stay eligible.
	if err := u.subs.MarkFeedbackSent(ctx, repository.NoTX, sub.ID); err != nil {
		return fmt.Errorf("mark feedback sent: %w", err)
	}
	return nil
}

func (u *feedbackUC) StartSurvey(ctx context.Context, user *model.User, subscriptionID int64) (*model.SurveyQuestion, error) {
	defer logging.TraceDuration(u.log, "FeedbackUC.StartSurvey")()
	if err := u.feedback.UpsertBlank(ctx, repository.NoTX, user.ID, subscriptionID); err != nil {
		return nil, err
	}
	return model.SurveyQuestionByNumber(1), nil
}

func (u *feedbackUC) RecordAnswer(ctx context.Context, user *model.User, subscriptionID int64, questionNumber int, option string) (*model.SurveyQuestion, error) {
	defer logging.TraceDuration(u.log, "FeedbackUC.RecordAnswer")()
	q := model.SurveyQuestionByNumber(questionNumber)
	if q == nil || q.Multi {
		return nil, domain.ErrInvalidArgument
	}
	if !q.ValidOption(option) {
		return nil, fmt.Errorf("%w: option %q for question %d", domain.ErrValidation, option, questionNumber)
	}
	if err := u.feedback.SetAnswer(ctx, repository.NoTX, user.ID, subscriptionID, q.Field, option); err != nil {
		return nil, err
	}
	return model.SurveyQuestionByNumber(questionNumber + 1), nil
}

func (u *feedbackUC) CompleteSurvey(ctx context.Context, user *model.User, subscriptionID int64, preferences []string) error {
	defer logging.TraceDuration(u.log, "FeedbackUC.CompleteSurvey")()
	q := model.SurveyQuestionByNumber(len(model.SurveyQuestions))
	for _, code := range preferences {
		if !q.ValidOption(code) {
			return fmt.Errorf("%w: preference %q", domain.ErrValidation, code)
		}
	}
	if err := u.feedback.SetAnswer(ctx, repository.NoTX, user.ID, subscriptionID, q.Field, preferences); err != nil {
		return err
	}
	metrics.IncSurveyCompleted()
	u.log.Info().Int64("user_id", user.ID).Int64("subscription_id", subscriptionID).Msg("survey completed")

	fb, err := u.feedback.Get(ctx, repository.NoTX, user.ID, subscriptionID)
	if err != nil {
		return err
	}
	summary := renderSurveySummary(user, fb)
	for _, adminID := range u.cfg.Bot.AdminIDs {
		if err := u.tg.SendMessage(ctx, adminID, summary); err != nil {
			u.log.Error().Err(err).Int64("admin_id", adminID).Msg("failed to deliver survey summary")
		}
	}
	return nil
}

func (u *feedbackUC) CurrentPlan(ctx context.Context, userID int64) (model.Product, error) {
	sub, err := u.subs.FindCurrentByUser(ctx, repository.NoTX, userID)
	if err != nil {
		if isNotFound(err) {
			return "", domain.ErrNoCurrentSub
		}
		return "", err
	}
	return sub.Product, nil
}

func renderSurveySummary(user *model.User, fb *model.YogaFeedback) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Survey from %s | id: %d\n", user.DisplayLine(), user.TgUserID)
	answer := func(n int, v *string) {
		q := model.SurveyQuestionByNumber(n)
		label := "—"
		if v != nil {
			label = q.OptionLabel(*v)
		}
		fmt.Fprintf(&b, "%d. %s — %s\n", n, q.Prompt, label)
	}
	answer(1, fb.Q1Difficulty)
	answer(2, fb.Q2Pace)
	answer(3, fb.Q3State)
	answer(4, fb.Q4Format)
	answer(5, fb.Q5Frequency)
	q6 := model.SurveyQuestionByNumber(6)
	labels := make([]string, 0, len(fb.Q6Preferences))
	for _, code := range fb.Q6Preferences {
		labels = append(labels, q6.OptionLabel(code))
	}
	if len(labels) == 0 {
		labels = append(labels, "—")
	}
	fmt.Fprintf(&b, "6. %s — %s", q6.Prompt, strings.Join(labels, ", "))
	return b.String()
}
