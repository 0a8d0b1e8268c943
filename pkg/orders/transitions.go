package orders

var statusRank = map[Status]int{
	StatusLead:      0,
	StatusInquiry:   1,
	StatusBooked:    2,
	StatusCompleted: 3,
}

// ValidStatus reports whether s is a known order status
func ValidStatus(s Status) bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether an order may move from one status to
// another. Statuses only move forward, stages may be skipped, cancellation
// is allowed from any status including completed, and cancelled is terminal.
func CanTransition(from, to Status) bool {
	if from == StatusCancelled || !ValidStatus(to) {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	return statusRank[to] > fromRank
}
