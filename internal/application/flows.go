package application

import "telegram-commerce-bot/internal/domain/model"

// Option is one closed-choice entry of a selection step. Codes go into
// callback data and scratch state; labels are what the user sees.
type Option struct {
	Code  string
	Label string
}

func validOption(opts []Option, code string) bool {
	for _, o := range opts {
		if o.Code == code {
			return true
		}
	}
	return false
}

func optionLabel(opts []Option, code string) string {
	for _, o := range opts {
		if o.Code == code {
			return o.Label
		}
	}
	return code
}

// Language flow steps (shared by English and Chinese).
var (
	languageGoals = []Option{
		{"work", "For work"},
		{"travel", "For travel"},
		{"exam", "Exam preparation"},
		{"relocation", "Moving abroad"},
		{"self", "For myself"},
	}

	languageLevels = []Option{
		{"zero", "From zero"},
		{"beginner", "Beginner"},
		{"intermediate", "Intermediate"},
		{"advanced", "Advanced"},
	}

	languageFrequencies = []Option{
		{"1_per_week", "Once a week"},
		{"2_per_week", "Twice a week"},
		{"3_per_week", "Three times a week or more"},
	}
)

// languageTiers maps a language direction to its purchasable products in
// menu order.
func languageTiers(d model.Direction) []model.Product {
	if d == model.DirectionChinese {
		return []model.Product{model.ProductChineseTrial, model.ProductChineseSingle, model.ProductChinesePack10}
	}
	return []model.Product{model.ProductEnglishTrial, model.ProductEnglishSingle, model.ProductEnglishPack10}
}

// Astrology flow steps.
var astrologySpheres = []Option{
	{"career", "Career and purpose"},
	{"relationships", "Relationships"},
	{"finance", "Finance"},
	{"health", "Health and energy"},
	{"growth", "Personal growth"},
}

var astrologyFormats = []Option{
	{"one", "One sphere in depth"},
	{"full", "Full natal chart"},
}

func astrologyProduct(formatCode string) model.Product {
	if formatCode == "full" {
		return model.ProductAstroFull
	}
	return model.ProductAstroOne
}

// Mentoring tiers.
var mentoringPlans = []model.Product{model.ProductMentorWeek, model.ProductMentorMonth}

// directionsMenu lists the top-level directions in menu order.
var directionsMenu = []model.Direction{
	model.DirectionEnglish,
	model.DirectionChinese,
	model.DirectionYoga,
	model.DirectionAstrology,
	model.DirectionMentoring,
}
