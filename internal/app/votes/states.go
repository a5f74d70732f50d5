package votes

// Phase is a step of one vote action: Idle -> Pending -> Confirmed | RolledBack.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePending    Phase = "pending"
	PhaseConfirmed  Phase = "confirmed"
	PhaseRolledBack Phase = "rolled_back"
)

// Outcome is how a vote request ended.
type Outcome string

const (
	// OutcomeConfirmed: the remote call succeeded and the new state was persisted.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeRolledBack: the remote call failed; the prior state and count were restored.
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeAdopted: the remote said the vote was already applied; the clicked
	// direction was persisted instead of rolling back.
	OutcomeAdopted Outcome = "adopted"
	// OutcomeRefused: comment downvotes are never sent.
	OutcomeRefused Outcome = "refused"
	// OutcomeBusy: another action on the same item is still pending.
	OutcomeBusy Outcome = "busy"
	// OutcomeUnresolvable: the comment could not be matched to an id.
	OutcomeUnresolvable Outcome = "unresolvable"
	// OutcomeUnauthenticated: no agent is logged in.
	OutcomeUnauthenticated Outcome = "unauthenticated"
	// OutcomeInvalid: the request named an unknown content type or direction.
	OutcomeInvalid Outcome = "invalid"
)

const (
	ReasonCommentDownvote = "Comment downvoting not supported by Moltbook"
	ReasonUnresolvable    = "Unable to vote - comment not found in API results"
)

// validTransitions lists the allowed phase changes.
var validTransitions = map[Phase][]Phase{
	PhaseIdle:       {PhasePending},
	PhasePending:    {PhaseConfirmed, PhaseRolledBack},
	PhaseConfirmed:  {PhaseIdle},
	PhaseRolledBack: {PhaseIdle},
}

func canTransition(from, to Phase) bool {
	for _, p := range validTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}
