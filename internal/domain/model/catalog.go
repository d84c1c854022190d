package model

// Direction is a top-level product family the user picks from the main menu.
type Direction string

const (
	DirectionEnglish   Direction = "english"
	DirectionChinese   Direction = "chinese"
	DirectionYoga      Direction = "yoga"
	DirectionAstrology Direction = "astrology"
	DirectionMentoring Direction = "mentoring"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionEnglish, DirectionChinese, DirectionYoga, DirectionAstrology, DirectionMentoring:
		return true
	}
	return false
}

// IsLanguage reports whether the direction is one of the language flows,
// which share selection steps and product tiers.
func (d Direction) IsLanguage() bool {
	return d == DirectionEnglish || d == DirectionChinese
}

func (d Direction) Title() string {
	switch d {
	case DirectionEnglish:
		return "English"
	case DirectionChinese:
		return "Chinese"
	case DirectionYoga:
		return "Yoga"
	case DirectionAstrology:
		return "Astrology"
	case DirectionMentoring:
		return "Mentoring"
	}
	return string(d)
}

// Product identifies a concrete purchasable tier. It is resolved at
// order-creation time and stored on the order; nothing downstream derives
// it from display text.
type Product string

const (
	ProductEnglishTrial  Product = "en_trial"
	ProductEnglishSingle Product = "en_single"
	ProductEnglishPack10 Product = "en_pack10"

	ProductChineseTrial  Product = "cn_trial"
	ProductChineseSingle Product = "cn_single"
	ProductChinesePack10 Product = "cn_pack10"

	ProductYoga4      Product = "yoga_4"
	ProductYoga8      Product = "yoga_8"
	ProductYoga10Ind  Product = "yoga_10_individual"

	ProductAstroOne  Product = "astro_one"
	ProductAstroFull Product = "astro_full"

	ProductMentorWeek  Product = "mentor_week"
	ProductMentorMonth Product = "mentor_month"
)

// YogaProducts lists the subscription-bearing plan tiers in menu order.
var YogaProducts = []Product{ProductYoga4, ProductYoga8, ProductYoga10Ind}

func (p Product) Valid() bool { return p.Direction() != "" }

// IsYogaPlan reports whether the product provisions a recurring yoga
// subscription rather than a one-off service.
func (p Product) IsYogaPlan() bool {
	return p == ProductYoga4 || p == ProductYoga8 || p == ProductYoga10Ind
}

// Direction returns the family a product belongs to, or "" for unknown codes.
func (p Product) Direction() Direction {
	switch p {
	case ProductEnglishTrial, ProductEnglishSingle, ProductEnglishPack10:
		return DirectionEnglish
	case ProductChineseTrial, ProductChineseSingle, ProductChinesePack10:
		return DirectionChinese
	case ProductYoga4, ProductYoga8, ProductYoga10Ind:
		return DirectionYoga
	case ProductAstroOne, ProductAstroFull:
		return DirectionAstrology
	case ProductMentorWeek, ProductMentorMonth:
		return DirectionMentoring
	}
	return ""
}

func (p Product) Title() string {
	switch p {
	case ProductEnglishTrial, ProductChineseTrial:
		return "Trial lesson (30 min)"
	case ProductEnglishSingle, ProductChineseSingle:
		return "Single lesson"
	case ProductEnglishPack10, ProductChinesePack10:
		return "Pack of 10 lessons"
	case ProductYoga4:
		return "Yoga: 4 practices / month"
	case ProductYoga8:
		return "Yoga: 8 practices / month"
	case ProductYoga10Ind:
		return "Yoga: 1-1, 10 practices / month"
	case ProductAstroOne:
		return "Astrology: one sphere reading"
	case ProductAstroFull:
		return "Astrology: full natal chart"
	case ProductMentorWeek:
		return "Mentoring: 1 week"
	case ProductMentorMonth:
		return "Mentoring: 1 month"
	}
	return string(p)
}
