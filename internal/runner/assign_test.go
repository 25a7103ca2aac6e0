package runner

import (
	"testing"

	"github.com/dyatelok/secret-santa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributePresentsIsDerangement(t *testing.T) {
	for n := 2; n <= 25; n++ {
		users := make([]models.UserID, n)
		for i := range users {
			users[i] = models.UserID(i + 1)
		}

		for attempt := 0; attempt < 20; attempt++ {
			pairs := DistributePresents(users)
			require.Len(t, pairs, n)

			receivers := make(map[models.UserID]int, n)
			for i, pair := range pairs {
				assert.Equal(t, users[i], pair.Giver, "givers must keep the input order")
				assert.NotEqual(t, pair.Giver, pair.Receiver, "nobody gives to themselves")
				receivers[pair.Receiver]++
			}

			// Every user receives exactly one present.
			require.Len(t, receivers, n)
			for _, count := range receivers {
				assert.Equal(t, 1, count)
			}
		}
	}
}

func TestDistributePresentsPairSwap(t *testing.T) {
	// For two users the only derangement is the swap.
	pairs := DistributePresents([]models.UserID{1, 2})
	require.Len(t, pairs, 2)
	assert.Equal(t, models.UserID(2), pairs[0].Receiver)
	assert.Equal(t, models.UserID(1), pairs[1].Receiver)
}

func TestDistributePresentsDoesNotMutateInput(t *testing.T) {
	users := []models.UserID{10, 20, 30, 40}
	DistributePresents(users)
	assert.Equal(t, []models.UserID{10, 20, 30, 40}, users)
}
