package notifications

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanhop/backend/internal/database"
	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/pkg/logger"
)

func TestCreateAndList(t *testing.T) {
	repo := database.NewMockRepository()
	svc := NewService(repo, logger.NewDiscard())
	ctx := context.Background()

	n, err := svc.Create(ctx, CreateRequest{
		UserID: "user-1", Title: "Order ready", Message: "Grab it", Type: "order",
		Data: database.JSONObject{"order_id": "o1"},
	})
	require.NoError(t, err)
	assert.False(t, n.Read)
	assert.NotEmpty(t, n.ID)

	_, err = svc.Create(ctx, CreateRequest{UserID: "user-1", Title: "Second", Message: "m", Type: "promo"})
	require.NoError(t, err)

	items := svc.List(ctx, "user-1", 0)
	require.Len(t, items, 2)
	assert.Equal(t, "Second", items[0].Title)

	assert.Len(t, svc.List(ctx, "user-1", 1), 1)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(database.NewMockRepository(), logger.NewDiscard())
	_, err := svc.Create(context.Background(), CreateRequest{UserID: "user-1"})
	assert.Equal(t, http.StatusBadRequest, svcerrors.HTTPStatus(err))
}

func TestList_SwallowsErrors(t *testing.T) {
	repo := database.NewMockRepository()
	svc := NewService(repo, logger.NewDiscard())
	repo.FailNext(errors.New("relation \"notifications\" does not exist"))

	items := svc.List(context.Background(), "user-1", 10)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestMarkRead(t *testing.T) {
	repo := database.NewMockRepository()
	svc := NewService(repo, logger.NewDiscard())
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateRequest{UserID: "user-1", Title: "a", Message: "m", Type: "system"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateRequest{UserID: "user-1", Title: "b", Message: "m", Type: "system"})
	require.NoError(t, err)

	ack, err := svc.MarkRead(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ack.Success)

	read := 0
	for _, n := range svc.List(ctx, "user-1", 0) {
		if n.Read {
			read++
		}
	}
	assert.Equal(t, 1, read)

	_, err = svc.MarkAllRead(ctx, "user-1")
	require.NoError(t, err)
	for _, n := range svc.List(ctx, "user-1", 0) {
		assert.True(t, n.Read)
	}

	repo.FailNext(errors.New("down"))
	_, err = svc.MarkAllRead(ctx, "user-1")
	assert.Equal(t, http.StatusInternalServerError, svcerrors.HTTPStatus(err))
}
