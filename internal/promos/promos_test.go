package promos

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanhop/backend/internal/database"
	"github.com/beanhop/backend/pkg/logger"
)

func TestActive(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults when empty", func(t *testing.T) {
		svc := NewService(database.NewMockRepository(), logger.NewDiscard())
		got := svc.Active(ctx)
		require.Len(t, got, 4)
		assert.Equal(t, []string{"promo-1", "promo-2", "promo-3", "promo-4"},
			[]string{got[0].ID, got[1].ID, got[2].ID, got[3].ID})
		assert.Equal(t, "Double Points", got[3].Title)
	})

	t.Run("first default on error", func(t *testing.T) {
		repo := database.NewMockRepository()
		repo.FailNext(errors.New("down"))
		got := NewService(repo, logger.NewDiscard()).Active(ctx)
		require.Len(t, got, 1)
		assert.Equal(t, "Exclusive Offer", got[0].Title)
	})

	t.Run("stored promos by sort order", func(t *testing.T) {
		repo := database.NewMockRepository()
		repo.AddPromo(database.Promo{ID: "b", Title: "B", IsActive: true, SortOrder: 2})
		repo.AddPromo(database.Promo{ID: "a", Title: "A", IsActive: true, SortOrder: 1})
		repo.AddPromo(database.Promo{ID: "off", Title: "Off", IsActive: false})

		got := NewService(repo, logger.NewDiscard()).Active(ctx)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "b", got[1].ID)
	})
}
