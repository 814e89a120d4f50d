package model

// InboundMessage is one relay webhook delivery.
type InboundMessage struct {
	From       string
	Body       string
	MessageSid string
}

type Outcome string

const (
	OutcomeReplied  Outcome = "replied"
	OutcomeFailed   Outcome = "failed"
	OutcomeRejected Outcome = "rejected"
)

func (o Outcome) String() string {
	return string(o)
}
