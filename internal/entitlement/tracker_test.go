package entitlement_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/apperr"
	"github.com/hugh/orchestra/internal/database/models"
	"github.com/hugh/orchestra/internal/entitlement"
	"github.com/hugh/orchestra/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignModules(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	ctx := testutil.TestContext(t)
	tracker := entitlement.NewTracker(db)

	ent := testutil.CreateTestEnterprise(t, db)

	modules, err := tracker.Modules(ctx, ent.ID)
	require.NoError(t, err)

	got := map[string]bool{}
	for _, m := range modules {
		got[m.Key] = m.IsActivated
		assert.False(t, m.IsPurchased, m.Key)
	}
	assert.Equal(t, map[string]bool{
		"absences":   false,
		"enterprise": true,
		"events":     false,
		"personnel":  true,
		"roles":      true,
	}, got)
	assert.Equal(t, "absences", modules[0].Key)
}

func TestLimits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	ctx := testutil.TestContext(t)
	tracker := entitlement.NewTracker(db)
	ent := testutil.CreateTestEnterprise(t, db)

	t.Run("numeric limit", func(t *testing.T) {
		n, ok, err := tracker.IntLimit(ctx, ent.ID, "personnel", entitlement.LimitMaxUsers)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 30, n)

		n, ok, err = tracker.IntLimit(ctx, ent.ID, "roles", entitlement.LimitMaxRoles)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 5, n)
	})

	t.Run("palette", func(t *testing.T) {
		colors, ok, err := tracker.StringsLimit(ctx, ent.ID, "roles", entitlement.LimitAvailableColors)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"#FF0000", "#00FF00", "#0000FF"}, colors)
	})

	t.Run("missing limits are unlimited", func(t *testing.T) {
		_, ok, err := tracker.IntLimit(ctx, ent.ID, "events", entitlement.LimitMaxUsers)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = tracker.IntLimit(ctx, ent.ID, "personnel", "maxWidgets")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = tracker.IntLimit(ctx, uuid.New(), "personnel", entitlement.LimitMaxUsers)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("non positive limit is unlimited", func(t *testing.T) {
		var module models.Module
		require.NoError(t, db.Where(map[string]interface{}{"key": "personnel"}).First(&module).Error)
		var limit models.ModuleLimit
		require.NoError(t, db.Where("module_id = ?", module.ID).First(&limit).Error)
		limit.FreeLimit["maxUsers"] = 0
		require.NoError(t, db.Save(&limit).Error)

		_, ok, err := tracker.IntLimit(ctx, ent.ID, "personnel", entitlement.LimitMaxUsers)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRecordPurchase(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	ctx := testutil.TestContext(t)
	tracker := entitlement.NewTracker(db)
	ent := testutil.CreateTestEnterprise(t, db)

	purchased, err := tracker.IsPurchased(ctx, ent.ID, "events")
	require.NoError(t, err)
	assert.False(t, purchased)

	p, err := tracker.RecordPurchase(ctx, ent.ID, "events")
	require.NoError(t, err)
	assert.Equal(t, "200.00", p.PurchasedAmount.StringFixed(2))
	assert.Equal(t, "events", p.Module.Key)

	purchased, err = tracker.IsPurchased(ctx, ent.ID, "events")
	require.NoError(t, err)
	assert.True(t, purchased)

	other := testutil.CreateTestEnterprise(t, db)
	purchased, err = tracker.IsPurchased(ctx, other.ID, "events")
	require.NoError(t, err)
	assert.False(t, purchased)

	modules, err := tracker.Modules(ctx, ent.ID)
	require.NoError(t, err)
	for _, m := range modules {
		if m.Key == "events" {
			assert.True(t, m.IsActivated)
			assert.True(t, m.IsPurchased)
		}
	}

	_, err = tracker.RecordPurchase(ctx, ent.ID, "events")
	assert.True(t, apperr.IsConflict(err))

	_, err = tracker.RecordPurchase(ctx, ent.ID, "teleport")
	assert.True(t, apperr.IsNotFound(err))
}
