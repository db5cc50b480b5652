package objection

import "context"

// Category is a classified objection label. Classification happens upstream
// (intent model); this package only consumes the closed set below.
type Category string

const (
	CategoryAlreadyHasAgent  Category = "already_has_agent"
	CategoryNotInterested    Category = "not_interested"
	CategoryLoyalty          Category = "loyalty"
	CategoryNotReady         Category = "not_ready"
	CategoryNeedTime         Category = "need_time"
	CategoryJustBrowsing     Category = "just_browsing"
	CategoryPriceTooHigh     Category = "price_too_high"
	CategoryCantAfford       Category = "cant_afford"
	CategoryBadTiming        Category = "bad_timing"
	CategoryNeedsSpouse      Category = "needs_spouse"
	CategoryBadExperience    Category = "had_bad_experience"
)

// ParseCategory maps an upstream intent label onto the closed category set.
func ParseCategory(raw string) (Category, bool) {
	switch Category(raw) {
	case CategoryAlreadyHasAgent, CategoryNotInterested, CategoryLoyalty,
		CategoryNotReady, CategoryNeedTime, CategoryJustBrowsing,
		CategoryPriceTooHigh, CategoryCantAfford, CategoryBadTiming,
		CategoryNeedsSpouse, CategoryBadExperience:
		return Category(raw), true
	default:
		return "", false
	}
}

// Strategy is the chosen response posture.
type Strategy string

const (
	StrategyAcknowledgeRespect Strategy = "acknowledge_and_respect"
	StrategySoftPivot          Strategy = "soft_pivot"
	StrategyValueAdd           Strategy = "value_add"
	StrategyFutureFocus        Strategy = "future_focus"
	StrategyInformationOffer   Strategy = "information_offer"
	StrategyEmpathyConnect     Strategy = "empathy_connect"
	StrategyGracefulExit       Strategy = "graceful_exit"
)

// Sentiment labels arrive from the upstream classifier alongside the
// category.
const (
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentPositive = "positive"
)

// Input is everything the selector needs for one decision.
type Input struct {
	ContactID      string
	OrganizationID string
	Category       Category
	Sentiment      string
	LeadScore      int
	// Timeline is the contact's stated purchase timeline, when known
	// (e.g. "long", "6+ months").
	Timeline string
}

// Decision is the selector output. Everything here is data for the caller to
// apply; the selector never mutates the contact record.
type Decision struct {
	Strategy           Strategy `json:"strategy"`
	Script             string   `json:"script"`
	ShouldFollowUp     bool     `json:"should_follow_up"`
	FollowUpDelayDays  int      `json:"follow_up_delay_days,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	Nurture            bool     `json:"nurture,omitempty"`
	CloseContact       bool     `json:"close_contact,omitempty"`
	Notes              string   `json:"notes,omitempty"`
	ObjectionCount     int      `json:"objection_count"`
	SameObjectionCount int      `json:"same_objection_count"`
}

// HistoryStore is the persisted objection history collaborator. The
// in-process ledger is a cache over this store and must be rebuildable from
// it at any time.
type HistoryStore interface {
	ObjectionHistory(ctx context.Context, contactID string) ([]string, error)
	AppendObjection(ctx context.Context, contactID, category string) error
}
