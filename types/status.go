package types

type Status string

const (
	StatusPending   Status = "pending"   // workflow accepted, lock not yet submitted
	StatusLocking   Status = "locking"   // lock tx submitted, waiting for receipt
	StatusLocked    Status = "locked"    // lock confirmed and lock id extracted
	StatusMinting   Status = "minting"   // destination monitor engaged
	StatusCompleted Status = "completed" // mint observed on the destination ledger
	StatusFailed    Status = "failed"    // terminal failure, see record error
)

// AllStatuses in lifecycle order
var AllStatuses = []Status{StatusPending, StatusLocking, StatusLocked, StatusMinting, StatusCompleted, StatusFailed}

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusLocking:   1,
	StatusLocked:    2,
	StatusMinting:   3,
	StatusCompleted: 4,
	StatusFailed:    4,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Rank orders statuses along the lifecycle; both terminal states share the top rank
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// CanAdvanceTo reports whether s -> next is a legal forward transition.
// failed is reachable from every non-terminal status, completed only from minting.
func (s Status) CanAdvanceTo(next Status) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	switch next {
	case StatusFailed:
		return true
	case StatusCompleted:
		return s == StatusMinting
	}
	return next.Rank() == s.Rank()+1
}
