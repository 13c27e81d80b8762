package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/courier-dispatch/internal/testutil"
	"github.com/angelmondragon/courier-dispatch/pkg/db"
	"github.com/angelmondragon/courier-dispatch/pkg/enums"
)

func TestUpdateOrderDetectsStaleVersion(t *testing.T) {
	conn := testutil.OpenDB(t)
	repo := NewRepository(conn)
	restaurant := testutil.SeedRestaurant(t, conn, 0, 0)
	order, _ := testutil.SeedOrder(t, conn, restaurant, enums.OrderStatusPending)

	stale := *order
	require.NoError(t, repo.UpdateOrder(context.Background(), order, map[string]any{"status": enums.OrderStatusAccepted}))
	assert.Equal(t, int64(2), order.Version)

	err := repo.UpdateOrder(context.Background(), &stale, map[string]any{"status": enums.OrderStatusRejected})
	assert.True(t, errors.Is(err, db.ErrWriteConflict))
	assert.Equal(t, int64(1), stale.Version)

	stored := testutil.ReloadOrder(t, conn, order.ID)
	assert.Equal(t, enums.OrderStatusAccepted, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestApplyDeliveryStatusStampsColumn(t *testing.T) {
	conn := testutil.OpenDB(t)
	repo := NewRepository(conn)
	restaurant := testutil.SeedRestaurant(t, conn, 0, 0)
	_, delivery := testutil.SeedOrder(t, conn, restaurant, enums.OrderStatusReady)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, ApplyDeliveryStatus(context.Background(), repo, delivery, enums.DeliveryStatusFailed, at, nil))

	stored := testutil.ReloadDelivery(t, conn, delivery.ID)
	assert.Equal(t, enums.DeliveryStatusFailed, stored.Status)
	require.NotNil(t, stored.FailedAt)
	assert.True(t, stored.FailedAt.Equal(at))
	assert.Equal(t, int64(2), stored.Version)
}

func TestUpdateDeliveryLocationKeepsVersion(t *testing.T) {
	conn := testutil.OpenDB(t)
	repo := NewRepository(conn)
	restaurant := testutil.SeedRestaurant(t, conn, 0, 0)
	_, delivery := testutil.SeedOrder(t, conn, restaurant, enums.OrderStatusReady)

	require.NoError(t, repo.UpdateDeliveryLocation(context.Background(), delivery.ID, 1.5, 2.5, time.Now().UTC()))
	require.NoError(t, repo.UpdateDeliveryLocation(context.Background(), delivery.ID, 1.5, 2.5, time.Now().UTC()))

	stored := testutil.ReloadDelivery(t, conn, delivery.ID)
	require.NotNil(t, stored.LastKnownLatitude)
	assert.InDelta(t, 1.5, *stored.LastKnownLatitude, 1e-9)
	assert.InDelta(t, 2.5, *stored.LastKnownLongitude, 1e-9)
	assert.Equal(t, int64(1), stored.Version)
}

func TestListReadyAwaitingCourier(t *testing.T) {
	conn := testutil.OpenDB(t)
	repo := NewRepository(conn)
	restaurant := testutil.SeedRestaurant(t, conn, 0, 0)

	waiting, _ := testutil.SeedOrder(t, conn, restaurant, enums.OrderStatusReady)
	testutil.SeedOrder(t, conn, restaurant, enums.OrderStatusPreparing)
	_, assignedDelivery := testutil.SeedOrder(t, conn, restaurant, enums.OrderStatusReady)
	courier := testutil.SeedCourier(t, conn, testutil.Float(0), testutil.Float(0), true, true)
	testutil.AttachCourier(t, conn, assignedDelivery, courier)

	ids, err := repo.ListReadyAwaitingCourier(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, waiting.ID, ids[0])
}
