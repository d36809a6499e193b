package service_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corebanking/digibank/internal/domain"
)

// seedTransfers runs n transfers from alice to bob, advancing the store clock
// by step between each so created_at ordering is deterministic. Transfer ids
// are assigned 1..n in creation order.
func seedTransfers(t *testing.T, f *fixture, n int, step time.Duration) {
	t.Helper()

	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	f.store.Now = func() time.Time { return now }

	for i := 0; i < n; i++ {
		_, _, err := f.transfers.Create(context.Background(), f.aliceInput(fmt.Sprintf("hist-%d", i), 10))
		require.NoError(t, err)
		now = now.Add(step)
	}
}

func TestListTransfers_Pagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seedTransfers(t, f, 30, time.Millisecond)

	var (
		seen   []int64
		cursor string
	)
	for page := 0; page < 3; page++ {
		res, err := f.transfers.List(ctx, f.alice.ID, 10, cursor)
		require.NoError(t, err)
		require.Len(t, res.Items, 10)

		for _, item := range res.Items {
			seen = append(seen, item.ID)
			require.Equal(t, domain.ViewSent, item.Direction)
			require.Equal(t, f.bob.Email, item.CounterpartyEmail)
		}

		if page < 2 {
			require.NotEmpty(t, res.NextCursor)
		} else {
			require.Empty(t, res.NextCursor)
		}
		cursor = res.NextCursor
	}

	// Newest first, no duplicates, no gaps across page boundaries.
	require.Len(t, seen, 30)
	for i, id := range seen {
		require.Equal(t, int64(30-i), id)
	}
}

func TestListTransfers_ReceivingLeg(t *testing.T) {
	f := newFixture(t)

	seedTransfers(t, f, 3, time.Millisecond)

	res, err := f.transfers.List(context.Background(), f.bob.ID, 10, "")
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	for _, item := range res.Items {
		require.Equal(t, domain.ViewReceived, item.Direction)
		require.Equal(t, f.alice.Email, item.CounterpartyEmail)
	}
}

func TestListTransfers_TimestampTieBreaksOnID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Zero step: all five rows share one created_at, so ordering and cursor
	// resumption ride entirely on the id tie-break.
	seedTransfers(t, f, 5, 0)

	first, err := f.transfers.List(ctx, f.alice.ID, 2, "")
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.Equal(t, int64(5), first.Items[0].ID)
	require.Equal(t, int64(4), first.Items[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.transfers.List(ctx, f.alice.ID, 2, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	require.Equal(t, int64(3), second.Items[0].ID)
	require.Equal(t, int64(2), second.Items[1].ID)

	third, err := f.transfers.List(ctx, f.alice.ID, 2, second.NextCursor)
	require.NoError(t, err)
	require.Len(t, third.Items, 1)
	require.Equal(t, int64(1), third.Items[0].ID)
	require.Empty(t, third.NextCursor)
}

func TestListTransfers_InvalidCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		cursor string
	}{
		{"not base64url", "%%%"},
		{"no separator", base64.RawURLEncoding.EncodeToString([]byte("17099123"))},
		{"non-numeric parts", base64.RawURLEncoding.EncodeToString([]byte("abc:def"))},
		{"non-numeric id", base64.RawURLEncoding.EncodeToString([]byte("1700000000000:xyz"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.transfers.List(ctx, f.alice.ID, 10, tc.cursor)
			require.ErrorIs(t, err, domain.ErrInvalidCursor)
		})
	}
}

func TestListTransfers_LimitClamping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seedTransfers(t, f, 5, time.Millisecond)

	res, err := f.transfers.List(ctx, f.alice.ID, 0, "")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	res, err = f.transfers.List(ctx, f.alice.ID, -7, "")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	res, err = f.transfers.List(ctx, f.alice.ID, 1000, "")
	require.NoError(t, err)
	require.Len(t, res.Items, 5)
	require.Empty(t, res.NextCursor)
}

func TestListTransfers_EmptyHistory(t *testing.T) {
	f := newFixture(t)

	res, err := f.transfers.List(context.Background(), f.alice.ID, 10, "")
	require.NoError(t, err)
	require.Empty(t, res.Items)
	require.Empty(t, res.NextCursor)
}
