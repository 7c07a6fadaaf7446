package common

import "time"

// AccessTokenHeaderName is the HTTP header used to carry the access token on
// outbound requests to the backend.
const AccessTokenHeaderName = "Authorization"

const (
	// LockTimeout is how long a meal-plan lock stays valid without a refresh.
	// A lock older than this is stale and eligible for takeover.
	LockTimeout = 5 * time.Minute

	// ProposalExpiry is how long a pending meal proposal waits for votes
	// before it expires.
	ProposalExpiry = 24 * time.Hour

	// ResultAutoClear is how long a resolved proposal remains visible after
	// it was closed.
	ResultAutoClear = 24 * time.Hour

	// MaxQueueRetries bounds automatic push attempts per queue entry. An
	// entry that reaches the bound is surfaced for manual resolution, never
	// dropped silently.
	MaxQueueRetries = 5
)
