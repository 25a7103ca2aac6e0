package runner

import (
	"math/rand/v2"

	"github.com/dyatelok/secret-santa/internal/models"
)

// Pair assigns one giver to one receiver.
type Pair struct {
	Giver    models.UserID
	Receiver models.UserID
}

// DistributePresents pairs every user with a receiver such that nobody
// gives to themselves: the receiver sequence is a derangement of the
// input. It reshuffles until no position maps to itself; the expected
// number of attempts converges to e regardless of input size, so the
// loop terminates for every n >= 2. The caller must not pass fewer than
// two users — for n = 1 no derangement exists and the loop would spin.
func DistributePresents(users []models.UserID) []Pair {
	shuffled := make([]models.UserID, len(users))
	for {
		copy(shuffled, users)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		if !hasFixedPoint(users, shuffled) {
			break
		}
	}

	pairs := make([]Pair, len(users))
	for i := range users {
		pairs[i] = Pair{Giver: users[i], Receiver: shuffled[i]}
	}
	return pairs
}

func hasFixedPoint(a, b []models.UserID) bool {
	for i := range a {
		if a[i] == b[i] {
			return true
		}
	}
	return false
}
