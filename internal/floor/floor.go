// Package floor decides who the bot listens to next in a voice room.
package floor

import (
	"math/rand"

	"coringa/voicebot/internal/gateway"
)

// Decision represents the action the floor wants to take on a poll tick.
type Decision struct {
	Start  bool
	User   string
	Reason string // "speaking" or "proactive"
}

// Snapshot is what a poll tick sees of one room.
type Snapshot struct {
	Members  []gateway.Member
	Speaking []string
	// Gated reports users that already hold a listening session anywhere.
	Gated func(user string) bool
	// RoomListening counts listening sessions bound to this room.
	RoomListening int
	// Busy is set while the room's pipeline cycle is running.
	Busy bool
}

// Decide applies the poll rules: prefer someone audibly speaking who is not
// already captured; otherwise, if the room is quiet and nobody is being
// listened to, pick a random human member.
func Decide(s Snapshot, rng *rand.Rand) Decision {
	if s.Busy || len(s.Members) == 0 {
		return Decision{}
	}
	gated := s.Gated
	if gated == nil {
		gated = func(string) bool { return false }
	}
	present := make(map[string]bool, len(s.Members))
	for _, m := range s.Members {
		present[m.ID] = true
	}
	for _, u := range s.Speaking {
		if present[u] && !gated(u) {
			return Decision{Start: true, User: u, Reason: "speaking"}
		}
	}
	if len(s.Speaking) > 0 || s.RoomListening > 0 {
		return Decision{}
	}
	var humans []string
	for _, m := range s.Members {
		if !m.Bot && !gated(m.ID) {
			humans = append(humans, m.ID)
		}
	}
	if u, ok := Pick(humans, rng); ok {
		return Decision{Start: true, User: u, Reason: "proactive"}
	}
	return Decision{}
}

// Pick returns a uniformly chosen candidate.
func Pick(candidates []string, rng *rand.Rand) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	if rng == nil {
		return candidates[rand.Intn(len(candidates))], true
	}
	return candidates[rng.Intn(len(candidates))], true
}
