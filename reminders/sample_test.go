package reminders_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/assetpilot/asset-tracker-api/models"
	"github.com/assetpilot/asset-tracker-api/reminders"
)

func ramAsset(id, key, make, model string) models.Asset {
	return models.Asset{ID: id, Details: models.AssetDetails{Key: key, Make: make, Model: model}}
}

func TestLinkSampleMaintenanceNoMatch(t *testing.T) {
	items := reminders.SampleMaintenance(time.Now().UTC())

	out := reminders.LinkSampleMaintenance(items, []models.Asset{
		ramAsset("a1", "civic", "Honda", "Civic"),
	})

	assert.Equal(t, "sample-2", out[0].AssetKey)
	assert.Equal(t, "sample-3", out[1].AssetKey)
}

func TestLinkSampleMaintenancePointsRamRowAtOwnedAsset(t *testing.T) {
	items := reminders.SampleMaintenance(time.Now().UTC())

	out := reminders.LinkSampleMaintenance(items, []models.Asset{
		ramAsset("a1", "civic", "Honda", "Civic"),
		ramAsset("a2", "ram-key", "Dodge", "3500 Ram"),
	})

	assert.Equal(t, "ram-key", out[0].AssetKey)
	assert.True(t, out[0].IsSample)
	// the Ford row keeps its sample key
	assert.Equal(t, "sample-3", out[1].AssetKey)

	// the input slice is untouched
	assert.Equal(t, "sample-2", items[0].AssetKey)
}

func TestLinkSampleMaintenancePrefersMisspelledRecord(t *testing.T) {
	items := reminders.SampleMaintenance(time.Now().UTC())

	out := reminders.LinkSampleMaintenance(items, []models.Asset{
		ramAsset("a1", "dodge-key", "Dodge", "3500 Ram"),
		ramAsset("a2", "didge-key", "Didge", "3500 Ram"),
	})

	assert.Equal(t, "didge-key", out[0].AssetKey)
}

func TestLinkSampleMaintenanceFallsBackToAssetID(t *testing.T) {
	items := reminders.SampleMaintenance(time.Now().UTC())

	out := reminders.LinkSampleMaintenance(items, []models.Asset{
		ramAsset("a1", "", "Ram", "3500"),
	})

	assert.Equal(t, "a1", out[0].AssetKey)
}
