package colosseum

// ExpectedActor maps a status to the unique actor permitted to act next
// (spec §4.3). Statuses with no legal move return ActorNone.
func ExpectedActor(status Status) Actor {
	switch status {
	case StatusChallengerTurn, StatusReadyToProve, StatusAsserterTimeout:
		return ActorChallenger
	case StatusAsserterTurn, StatusChallengerTimeout:
		return ActorAsserter
	default:
		return ActorNone
	}
}
