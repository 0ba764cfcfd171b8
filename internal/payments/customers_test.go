package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanhop/backend/pkg/logger"
)

func TestCustomerResolver_SearchFirst(t *testing.T) {
	fake := NewFakeProcessor()
	want := fake.AddCustomer("user-1", "a@example.com")
	r := NewCustomerResolver(fake, logger.NewDiscard())

	got := r.Find(context.Background(), "user-1", "")
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
}

func TestCustomerResolver_FallsBackWhenSearchUnavailable(t *testing.T) {
	fake := NewFakeProcessor()
	fake.SearchErr = errors.New("search is not available in this region")
	want := fake.AddCustomer("user-1", "a@example.com")
	fake.AddCustomer("user-2", "a@example.com")
	r := NewCustomerResolver(fake, logger.NewDiscard())

	got := r.Find(context.Background(), "user-1", "a@example.com")
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)

	// Without an email the list-all scan still finds it.
	got = r.Find(context.Background(), "user-1", "")
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
}

func TestCustomerResolver_AllLookupsFail(t *testing.T) {
	fake := NewFakeProcessor()
	fake.SearchErr = errors.New("down")
	fake.ListErr = errors.New("down")
	r := NewCustomerResolver(fake, logger.NewDiscard())

	assert.Nil(t, r.Find(context.Background(), "user-1", "a@example.com"))
}

func TestCustomerResolver_GetOrCreate(t *testing.T) {
	fake := NewFakeProcessor()
	r := NewCustomerResolver(fake, logger.NewDiscard())
	ctx := context.Background()

	created, err := r.GetOrCreate(ctx, "user-1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", created.Metadata["user_id"])
	assert.Equal(t, "a@example.com", created.Email)

	again, err := r.GetOrCreate(ctx, "user-1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, 1, fake.CustomerCount())
}

func TestListByEmail_SkipsWithoutEmail(t *testing.T) {
	fake := NewFakeProcessor()
	fake.AddCustomer("user-1", "")

	got, err := ListByEmail{}.Find(context.Background(), fake, "user-1", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}
