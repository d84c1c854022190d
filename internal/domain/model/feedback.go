package model

import "time"

// FeedbackField names one answer column of the yoga survey. Repos accept
// only these values (column names are never built from raw input).
type FeedbackField string

const (
	FeedbackQ1Difficulty  FeedbackField = "q1_difficulty"
	FeedbackQ2Pace        FeedbackField = "q2_pace"
	FeedbackQ3State       FeedbackField = "q3_state"
	FeedbackQ4Format      FeedbackField = "q4_format"
	FeedbackQ5Frequency   FeedbackField = "q5_frequency"
	FeedbackQ6Preferences FeedbackField = "q6_preferences"
)

func (f FeedbackField) Valid() bool {
	switch f {
	case FeedbackQ1Difficulty, FeedbackQ2Pace, FeedbackQ3State,
		FeedbackQ4Format, FeedbackQ5Frequency, FeedbackQ6Preferences:
		return true
	}
	return false
}

// YogaFeedback holds one user's survey answers for one subscription.
// A blank row is created when the survey starts; answers fill in
// incrementally. Unique per (user, subscription).
type YogaFeedback struct {
	UserID         int64
	SubscriptionID int64
	Q1Difficulty   *string
	Q2Pace         *string
	Q3State        *string
	Q4Format       *string
	Q5Frequency    *string
	Q6Preferences  []string
	UpdatedAt      time.Time
}

// SurveyQuestion describes one survey step: its answer field, prompt and
// the closed option set. Question 6 is the only multi-select.
type SurveyQuestion struct {
	Number  int
	Field   FeedbackField
	Prompt  string
	Options []SurveyOption
	Multi   bool
}

type SurveyOption struct {
	Code  string
	Label string
}

// SurveyQuestions is the fixed questionnaire sent before expiry.
var SurveyQuestions = []SurveyQuestion{
	{
		Number: 1, Field: FeedbackQ1Difficulty,
		Prompt: "How difficult were the practices?",
		Options: []SurveyOption{
			{"easy", "Easy"}, {"moderate", "Moderate"}, {"hard", "Hard"},
		},
	},
	{
		Number: 2, Field: FeedbackQ2Pace,
		Prompt: "How was the pace of the practices?",
		Options: []SurveyOption{
			{"slow", "Slow"}, {"comfortable", "Comfortable"}, {"fast", "Fast"},
		},
	},
	{
		Number: 3, Field: FeedbackQ3State,
		Prompt: "How did you usually feel after a practice?",
		Options: []SurveyOption{
			{"relaxed", "Relaxed"}, {"balanced", "Balanced"}, {"energized", "Energized"},
		},
	},
	{
		Number: 4, Field: FeedbackQ4Format,
		Prompt: "Which class format suits you better?",
		Options: []SurveyOption{
			{"group", "Group"}, {"individual", "Individual"},
		},
	},
	{
		Number: 5, Field: FeedbackQ5Frequency,
		Prompt: "Was the number of practices enough? How often would you like to practice per month?",
		Options: []SurveyOption{
			{"4_per_month", "4 per month"}, {"8_per_month", "8 per month"}, {"10_individual", "10 practices 1-1"},
		},
	},
	{
		Number: 6, Field: FeedbackQ6Preferences, Multi: true,
		Prompt: "Which practices would you like to see more of next month?",
		Options: []SurveyOption{
			{"gentle_stretch", "Gentle yoga and stretching"},
			{"strength_tone", "Strength yoga / tone"},
			{"breath_relax", "Relaxation and breathing"},
		},
	},
}

// SurveyQuestion returns the question by number, nil when out of range.
func SurveyQuestionByNumber(n int) *SurveyQuestion {
	if n < 1 || n > len(SurveyQuestions) {
		return nil
	}
	return &SurveyQuestions[n-1]
}

// ValidOption reports whether code is in the question's option set.
func (q *SurveyQuestion) ValidOption(code string) bool {
	for _, o := range q.Options {
		if o.Code == code {
			return true
		}
	}
	return false
}

// OptionLabel resolves an option code to its display label; unknown codes
// fall back to the code itself.
func (q *SurveyQuestion) OptionLabel(code string) string {
	for _, o := range q.Options {
		if o.Code == code {
			return o.Label
		}
	}
	return code
}
