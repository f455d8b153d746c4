package model

// Category is the single bucket a message is filed under.
type Category string

const (
	// CategoryAction holds academic messages that carry a deadline or action cue.
	CategoryAction Category = "action"
	// CategoryUniversity holds academic messages without an action cue.
	CategoryUniversity Category = "university"
	// CategoryPromotions holds marketing and deal messages.
	CategoryPromotions Category = "promotions"
	// CategorySocial holds social network notifications.
	CategorySocial Category = "social"
	// CategoryUpdates holds receipts, confirmations and account notices.
	CategoryUpdates Category = "updates"
	// CategoryUnsorted is the fallback when no rule applies.
	CategoryUnsorted Category = "unsorted"
)

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// Label is a descriptive tag attached to a message. A message may carry several.
type Label string

// Label vocabulary.
const (
	LabelUniversity  Label = "University"
	LabelActionItems Label = "Action Items"
	LabelPromotions  Label = "Promotions"
	LabelSocial      Label = "Social"
	LabelUpdates     Label = "Updates"
	LabelUnsorted    Label = "Unsorted"
)

// Signal names the boolean produced by matching one or more rule sets against message text.
type Signal string

// Built-in signals.
const (
	SignalAcademic  Signal = "academic"
	SignalAction    Signal = "action"
	SignalPromotion Signal = "promotion"
	SignalSocial    Signal = "social"
	SignalUpdates   Signal = "updates"
)
