package services

import "errors"

// Conflict-as-success: the operation already happened. Callers should treat
// these as "done", not as failures.
var (
	ErrAlreadyClaimed = errors.New("already claimed")
	ErrAlreadyOwned   = errors.New("already owned")
	ErrAlreadyClosed  = errors.New("season already closed")
)

// Precondition failures: reported for display, retrying without a state
// change will fail again.
var (
	ErrInsufficientXP      = errors.New("insufficient XP")
	ErrOutOfStock          = errors.New("out of stock")
	ErrItemUnavailable     = errors.New("item unavailable")
	ErrNotCompleted        = errors.New("challenge not completed")
	ErrChallengeNotStarted = errors.New("challenge not started")
	ErrInvalidSelection    = errors.New("invalid showcase selection")
)

// Programming / data errors: fatal to the call.
var (
	ErrUnknownBadge     = errors.New("unknown badge key")
	ErrUnknownSeason    = errors.New("unknown season")
	ErrUnknownChallenge = errors.New("unknown challenge")
	ErrUnknownItem      = errors.New("unknown shop item")
	ErrUnknownCampaign  = errors.New("unknown campaign")
	ErrUnknownAccount   = errors.New("unknown account")
)

// IsConflict reports whether err means the operation had already happened.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrAlreadyOwned) ||
		errors.Is(err, ErrAlreadyClosed)
}

// IsUnknown reports whether err names an entity that does not exist.
func IsUnknown(err error) bool {
	return errors.Is(err, ErrUnknownBadge) ||
		errors.Is(err, ErrUnknownSeason) ||
		errors.Is(err, ErrUnknownChallenge) ||
		errors.Is(err, ErrUnknownItem) ||
		errors.Is(err, ErrUnknownCampaign) ||
		errors.Is(err, ErrUnknownAccount)
}

// IsPrecondition reports whether err is a user-visible precondition failure.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrInsufficientXP) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrItemUnavailable) ||
		errors.Is(err, ErrNotCompleted) ||
		errors.Is(err, ErrChallengeNotStarted) ||
		errors.Is(err, ErrInvalidSelection)
}
