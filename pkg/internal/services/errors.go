package services

import "errors"

// Outcomes of casting a vote, in the order the engine checks them.
// Handlers map these onto HTTP statuses; ErrAlreadyVoted must stay
// distinguishable from ErrInternal (conflict vs. retry-later).
var (
	ErrVotingDisabled      = errors.New("voting is currently disabled")
	ErrAnonymousNotAllowed = errors.New("anonymous voting is not allowed")
	ErrRateLimited         = errors.New("too many vote attempts, try again later")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrQuestionInactive    = errors.New("question is not open for voting")
	ErrOptionInvalid       = errors.New("option does not belong to this question")
	ErrAlreadyVoted        = errors.New("user has already voted on this question")
	ErrInternal            = errors.New("internal storage error")

	// ErrResultsUnavailable covers inactive questions and questions whose
	// results are hidden; deliberately never cached so a later toggle of
	// show_results takes effect immediately.
	ErrResultsUnavailable = errors.New("results are not available for this question")
)
