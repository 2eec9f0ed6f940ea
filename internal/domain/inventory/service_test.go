package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/inventory"
	"posledger/internal/infrastructure/storage/memory"
)

func newStore(t *testing.T) (*inventory.Store, entity.Triple) {
	t.Helper()
	mem := memory.NewStore()
	store := inventory.NewStore(memory.NewInventoryRepo(mem))
	triple := entity.Triple{ProductID: id.New(), BranchID: id.New()}
	return store, triple
}

func TestAdjust_CreatesRowOnFirstIncrease(t *testing.T) {
	store, triple := newStore(t)
	ctx := context.Background()

	res, err := store.Adjust(ctx, triple, 10)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, types.Quantity(0), res.Previous)
	assert.Equal(t, types.Quantity(10), res.Current)

	row, err := store.Get(ctx, triple)
	require.NoError(t, err)
	assert.False(t, id.IsNil(row.ID), "created row must carry an id")
	assert.Equal(t, types.Quantity(10), row.Quantity)
	require.NotNil(t, row.LastRestocked, "positive delta must stamp last_restocked")
}

func TestAdjust_DecreaseBelowZeroFails(t *testing.T) {
	store, triple := newStore(t)
	ctx := context.Background()

	_, err := store.Adjust(ctx, triple, 3)
	require.NoError(t, err)

	_, err = store.Adjust(ctx, triple, -5)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, int64(5), appErr.Details["requested"])
	assert.Equal(t, int64(3), appErr.Details["available"])

	// The failed decrease leaves the row untouched.
	qty, err := store.Quantity(ctx, triple)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(3), qty)
}

func TestAdjust_DecreaseAgainstMissingRow(t *testing.T) {
	store, triple := newStore(t)
	ctx := context.Background()

	_, err := store.Adjust(ctx, triple, -1)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, int64(0), appErr.Details["available"])
}

func TestAdjust_DecreaseToExactlyZero(t *testing.T) {
	store, triple := newStore(t)
	ctx := context.Background()

	_, err := store.Adjust(ctx, triple, 4)
	require.NoError(t, err)

	res, err := store.Adjust(ctx, triple, -4)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), res.Current)
}

func TestAdjust_DecreaseDoesNotTouchLastRestocked(t *testing.T) {
	store, triple := newStore(t)
	ctx := context.Background()

	_, err := store.Adjust(ctx, triple, 10)
	require.NoError(t, err)
	row, err := store.Get(ctx, triple)
	require.NoError(t, err)
	restocked := *row.LastRestocked

	_, err = store.Adjust(ctx, triple, -2)
	require.NoError(t, err)

	row, err = store.Get(ctx, triple)
	require.NoError(t, err)
	assert.Equal(t, restocked, *row.LastRestocked)
}

func TestQuantity_MissingRowReadsAsZero(t *testing.T) {
	store, triple := newStore(t)

	qty, err := store.Quantity(context.Background(), triple)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), qty)
}

func TestSetLevels(t *testing.T) {
	store, triple := newStore(t)
	ctx := context.Background()

	_, err := store.Adjust(ctx, triple, 5)
	require.NoError(t, err)

	minLevel := types.Quantity(3)
	require.NoError(t, store.SetLevels(ctx, triple, inventory.LevelsPatch{MinStockLevel: &minLevel}))

	res, err := store.Adjust(ctx, triple, -3)
	require.NoError(t, err)
	assert.True(t, res.BelowMinimum)

	row, err := store.Get(ctx, triple)
	require.NoError(t, err)
	assert.True(t, row.BelowMinimum())
}

func TestSetLevels_Validation(t *testing.T) {
	store, triple := newStore(t)
	ctx := context.Background()

	err := store.SetLevels(ctx, triple, inventory.LevelsPatch{})
	require.Error(t, err)

	negative := types.Quantity(-1)
	err = store.SetLevels(ctx, triple, inventory.LevelsPatch{MinStockLevel: &negative})
	require.Error(t, err)
}

func TestVariationsTrackedSeparately(t *testing.T) {
	store, triple := newStore(t)
	ctx := context.Background()

	variationID := id.New()
	withVariation := triple
	withVariation.VariationID = &variationID

	_, err := store.Adjust(ctx, triple, 5)
	require.NoError(t, err)
	_, err = store.Adjust(ctx, withVariation, 2)
	require.NoError(t, err)

	qty, err := store.Quantity(ctx, triple)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(5), qty)

	qty, err = store.Quantity(ctx, withVariation)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(2), qty)
}
