package enum

// Outcome is how a maker cycle ended.
type Outcome uint8

const (
	_outcome_beg Outcome = iota
	OutcomeHedged
	OutcomeHedgeFailed
	OutcomeCancelled
	OutcomeRejected
	_outcome_end
)

func (o Outcome) IsAvailable() bool {
	return o > _outcome_beg && o < _outcome_end
}

func (o Outcome) String() string {
	switch o {
	case OutcomeHedged:
		return "hedged"
	case OutcomeHedgeFailed:
		return "hedge_failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
