package domain

import "time"

// MessageType is the closed set of classification categories.
type MessageType string

const (
	TypeSales       MessageType = "sales"
	TypeSupport     MessageType = "support"
	TypeInformation MessageType = "information"
	TypeSpam        MessageType = "spam"
	TypeScheduling  MessageType = "scheduling"
)

// ParseMessageType validates a provider-supplied value, falling back to
// information for anything outside the enumeration. Portuguese aliases are
// accepted because the prompts are written in Portuguese and some models
// answer in kind.
func ParseMessageType(s string) MessageType {
	switch MessageType(s) {
	case TypeSales, TypeSupport, TypeInformation, TypeSpam, TypeScheduling:
		return MessageType(s)
	}
	switch s {
	case "vendas":
		return TypeSales
	case "suporte":
		return TypeSupport
	case "informacao":
		return TypeInformation
	case "agendamento":
		return TypeScheduling
	}
	return TypeInformation
}

// MessagePriority is the closed priority set.
type MessagePriority string

const (
	PriorityHighLevel MessagePriority = "high"
	PriorityMedium    MessagePriority = "medium"
	PriorityLowLevel  MessagePriority = "low"
)

func ParsePriority(s string) MessagePriority {
	switch MessagePriority(s) {
	case PriorityHighLevel, PriorityMedium, PriorityLowLevel:
		return MessagePriority(s)
	}
	switch s {
	case "alta":
		return PriorityHighLevel
	case "media":
		return PriorityMedium
	case "baixa":
		return PriorityLowLevel
	}
	return PriorityMedium
}

// ProductInterest names a catalog product the sender asked about, or none.
type ProductInterest string

const (
	ProductCoaching   ProductInterest = "coaching"
	ProductAcelerador ProductInterest = "acelerador"
	ProductNone       ProductInterest = "none"
)

func ParseProduct(s string) ProductInterest {
	switch ProductInterest(s) {
	case ProductCoaching, ProductAcelerador, ProductNone:
		return ProductInterest(s)
	}
	return ProductNone
}

// Recognized reports whether the interest maps to a real catalog product.
func (p ProductInterest) Recognized() bool {
	return p == ProductCoaching || p == ProductAcelerador
}

// Sentiment is the coarse emotional polarity of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func ParseSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return Sentiment(s)
	}
	switch s {
	case "positivo":
		return SentimentPositive
	case "neutro":
		return SentimentNeutral
	case "negativo":
		return SentimentNegative
	}
	return SentimentNeutral
}

// Classification is the structured judgment for one message.
// Exactly one per message; reclassification overwrites, never appends.
type Classification struct {
	MessageID    string
	Type         MessageType
	Priority     MessagePriority
	Product      ProductInterest
	Sentiment    Sentiment
	Confidence   float64
	Reasoning    string
	ClassifiedAt time.Time
}

// DefaultClassification is the canonical zero-confidence fallback used when
// the provider call or parse fails. It keeps the pipeline moving.
func DefaultClassification(messageID string) Classification {
	return Classification{
		MessageID:    messageID,
		Type:         TypeInformation,
		Priority:     PriorityMedium,
		Product:      ProductNone,
		Sentiment:    SentimentNeutral,
		Confidence:   0.0,
		Reasoning:    "classificacao automatica indisponivel",
		ClassifiedAt: time.Now(),
	}
}
