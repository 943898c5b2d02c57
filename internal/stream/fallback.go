package stream

import (
	"time"

	"resumable-chat/backend/internal/models"
)

// DefaultFreshnessWindow is how old an assistant message may be and still
// be replayed to a reconnecting client.
const DefaultFreshnessWindow = 15 * time.Second

// DecisionKind enumerates the fallback outcomes.
type DecisionKind int

const (
	// DecisionNotFound: the chat has no streams at all.
	DecisionNotFound DecisionKind = iota
	// DecisionNothingToReplay: the latest message is missing or not the assistant's.
	DecisionNothingToReplay
	// DecisionStale: the latest assistant message is older than the window.
	DecisionStale
	// DecisionReplayOne: send the latest assistant message once.
	DecisionReplayOne
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionNotFound:
		return "not_found"
	case DecisionNothingToReplay:
		return "nothing"
	case DecisionStale:
		return "stale"
	case DecisionReplayOne:
		return "replay"
	default:
		return "unknown"
	}
}

// Decision is the result of DecideReplay. Message is set only for
// DecisionReplayOne.
type Decision struct {
	Kind    DecisionKind
	Message *models.Message
}

// DecideReplay picks what a reconnecting client gets when no producer is live.
// A message exactly window old is still replayed.
func DecideReplay(streamIDs []string, last *models.Message, now time.Time, window time.Duration) Decision {
	if len(streamIDs) == 0 {
		return Decision{Kind: DecisionNotFound}
	}
	if last == nil || last.Role != models.RoleAssistant {
		return Decision{Kind: DecisionNothingToReplay}
	}
	if now.Sub(last.CreatedAt) > window {
		return Decision{Kind: DecisionStale}
	}
	return Decision{Kind: DecisionReplayOne, Message: last}
}

// Source renders the decision as the stream sent to the client.
func (d Decision) Source() Source {
	if d.Kind == DecisionReplayOne {
		return Single(Event{Type: EventAppendMessage, MessageID: d.Message.ID, Message: d.Message})
	}
	return Empty()
}
