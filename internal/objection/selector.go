package objection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// firstRules maps a category to the strategy for its first occurrence.
// Categories absent here fall through to the always-exit list and then the
// value_add default.
var firstRules = map[Category]Strategy{
	CategoryNotReady:      StrategyFutureFocus,
	CategoryNeedTime:      StrategyFutureFocus,
	CategoryBadTiming:     StrategyFutureFocus,
	CategoryJustBrowsing:  StrategyInformationOffer,
	CategoryPriceTooHigh:  StrategyValueAdd,
	CategoryCantAfford:    StrategyInformationOffer,
	CategoryNeedsSpouse:   StrategyEmpathyConnect,
	CategoryBadExperience: StrategyEmpathyConnect,
}

// repeatRules applies when the same objection comes up a second time.
// Deliberately softer than firstRules; categories absent here default to
// graceful_exit.
var repeatRules = map[Category]Strategy{
	CategoryPriceTooHigh: StrategyInformationOffer,
	CategoryBadTiming:    StrategyFutureFocus,
	CategoryNeedsSpouse:  StrategyEmpathyConnect,
}

// alwaysExitFirst categories get acknowledge_and_respect immediately even
// on the first occurrence.
var alwaysExitFirst = map[Category]bool{
	CategoryAlreadyHasAgent: true,
	CategoryNotInterested:   true,
	CategoryLoyalty:         true,
}

// hotLeadOverrides keeps high-score leads in play where the default tables
// would back off.
var hotLeadOverrides = map[Category]Strategy{
	CategoryNotReady:  StrategySoftPivot,
	CategoryNeedTime:  StrategySoftPivot,
	CategoryBadTiming: StrategyValueAdd,
}

const hotLeadScore = 70

// Selector chooses a response strategy and secondary effects for a
// classified objection. It is safe for concurrent use.
type Selector struct {
	ledger  *Ledger
	history HistoryStore
	scripts *ScriptLibrary
	logger  *slog.Logger
}

func NewSelector(log *slog.Logger, history HistoryStore, scripts *ScriptLibrary) *Selector {
	if log == nil {
		log = slog.Default()
	}
	return &Selector{
		ledger:  NewLedger(),
		history: history,
		scripts: scripts,
		logger:  log.With(slog.String("component", "objection")),
	}
}

// Select runs the policy for one objection turn. The observation is written
// through to the persisted history before counting so that a process restart
// reconstructs identical state.
func (s *Selector) Select(ctx context.Context, in Input) (Decision, error) {
	if strings.TrimSpace(in.ContactID) == "" {
		return Decision{}, fmt.Errorf("contact id is required")
	}
	if in.Category == "" {
		return Decision{}, fmt.Errorf("objection category is required")
	}

	s.hydrate(ctx, in.ContactID)
	if s.history != nil {
		if err := s.history.AppendObjection(ctx, in.ContactID, string(in.Category)); err != nil {
			// The cache still advances; the ledger self-heals from the
			// store on next restart.
			s.logger.Error("persist objection failed",
				slog.String("contact_id", in.ContactID),
				slog.Any("error", err))
		}
	}
	s.ledger.Observe(in.ContactID, in.Category)
	total, same := s.ledger.Counts(in.ContactID, in.Category)

	strategy := s.chooseStrategy(in, total, same)
	decision := s.applyEffects(in, strategy, total, same)
	decision.Script = s.scripts.Draw(in.Category, strategy)
	decision.ObjectionCount = total
	decision.SameObjectionCount = same

	s.logger.Info("objection strategy selected",
		slog.String("contact_id", in.ContactID),
		slog.String("category", string(in.Category)),
		slog.String("strategy", string(strategy)),
		slog.Int("objection_count", total),
		slog.Int("same_objection_count", same))
	return decision, nil
}

func (s *Selector) hydrate(ctx context.Context, contactID string) {
	if s.history == nil || s.ledger.Loaded(contactID) {
		return
	}
	categories, err := s.history.ObjectionHistory(ctx, contactID)
	if err != nil {
		s.logger.Error("rehydrate objection history failed",
			slog.String("contact_id", contactID),
			slog.Any("error", err))
		return
	}
	s.ledger.Seed(contactID, categories)
}

func (s *Selector) chooseStrategy(in Input, total, same int) Strategy {
	// Negative sentiment with a second objection of any kind means the
	// contact wants out; everything else is overridden.
	if strings.EqualFold(in.Sentiment, SentimentNegative) && total >= 2 {
		return StrategyGracefulExit
	}
	if same >= 2 {
		if strategy, ok := repeatRules[in.Category]; ok {
			return strategy
		}
		return StrategyGracefulExit
	}
	if in.LeadScore >= hotLeadScore {
		if strategy, ok := hotLeadOverrides[in.Category]; ok {
			return strategy
		}
	}
	if strategy, ok := firstRules[in.Category]; ok {
		return strategy
	}
	if alwaysExitFirst[in.Category] {
		return StrategyAcknowledgeRespect
	}
	return StrategyValueAdd
}

func (s *Selector) applyEffects(in Input, strategy Strategy, total, same int) Decision {
	decision := Decision{
		Strategy:          strategy,
		ShouldFollowUp:    true,
		FollowUpDelayDays: defaultDelayDays(strategy),
	}

	if strategy == StrategyGracefulExit || in.Category == CategoryAlreadyHasAgent {
		decision.ShouldFollowUp = false
		decision.Nurture = true
		decision.Tags = append(decision.Tags, "long_term_nurture")
		decision.Notes = "automated follow-up disabled, moved to 60-90 day nurture"
	}
	if in.Category == CategoryNotInterested && same >= 2 {
		decision.ShouldFollowUp = false
		decision.CloseContact = true
		decision.Notes = "not interested twice, closing contact"
	}
	if in.Category == CategoryPriceTooHigh || in.Category == CategoryCantAfford {
		if decision.ShouldFollowUp {
			decision.FollowUpDelayDays = 30
			decision.Tags = append(decision.Tags, "needs_financing_help")
		}
	}
	// A stated long timeline wins over any category-derived delay.
	if decision.ShouldFollowUp && isLongTimeline(in.Timeline) {
		decision.FollowUpDelayDays = 30
	}
	return decision
}

func defaultDelayDays(strategy Strategy) int {
	switch strategy {
	case StrategySoftPivot:
		return 3
	case StrategyValueAdd:
		return 5
	case StrategyInformationOffer, StrategyEmpathyConnect:
		return 7
	case StrategyAcknowledgeRespect:
		return 10
	case StrategyFutureFocus:
		return 14
	default:
		return 0
	}
}

func isLongTimeline(timeline string) bool {
	normalized := strings.ToLower(strings.TrimSpace(timeline))
	if normalized == "" {
		return false
	}
	for _, marker := range []string{"long", "6+", "6 month", "next year", "year+"} {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}
