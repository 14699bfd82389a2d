package reminders

import (
	"strings"
	"time"

	"github.com/assetpilot/asset-tracker-api/models"
)

// Sample rows are shown when a bucket would otherwise be empty so new users
// see what the dashboard does. They are tagged IsSample and carry sample-*
// asset keys; nothing downstream may edit, delete, or persist them.

// SampleWarranties returns the illustrative warranty rows for an empty bucket.
func SampleWarranties(now time.Time) []Item {
	due := now.Add(7 * 24 * time.Hour)
	return []Item{
		{
			AssetKey:    "sample-1",
			AssetLabel:  "2018 Honda Civic",
			Type:        "Powertrain Warranty",
			Description: "5yr / 60k mi",
			DueDate:     &due,
			IsSample:    true,
		},
	}
}

// SampleMaintenance returns the illustrative maintenance rows for an empty bucket.
func SampleMaintenance(now time.Time) []Item {
	oilDue := now.Add(10 * 24 * time.Hour)
	tireDue := now.Add(18 * 24 * time.Hour)
	return []Item{
		{
			AssetKey:    "sample-2",
			AssetLabel:  "Dodge 3500 ram",
			Type:        "Oil Change",
			Description: "Full synthetic",
			DueDate:     &oilDue,
			IsSample:    true,
		},
		{
			AssetKey:    "sample-3",
			AssetLabel:  "2016 Ford F-150",
			Type:        "Tire Rotation",
			Description: "Cross-pattern",
			DueDate:     &tireDue,
			IsSample:    true,
		},
	}
}

// LinkSampleMaintenance points the Dodge ram sample row at a matching real
// asset when the user owns one, so clicking it opens an asset they actually
// have. The other rows keep their sample-* keys.
func LinkSampleMaintenance(items []Item, assets []models.Asset) []Item {
	key := matchRamAssetKey(assets)
	if key == "" {
		return items
	}
	out := make([]Item, len(items))
	copy(out, items)
	for i := range out {
		if strings.Contains(strings.ToLower(out[i].AssetLabel), "3500 ram") {
			out[i].AssetKey = key
		}
	}
	return out
}

// matchRamAssetKey looks for the user's own Dodge 3500 ram, tolerating the
// "Didge" misspelling seen in older records.
func matchRamAssetKey(assets []models.Asset) string {
	hay := func(a models.Asset) string {
		return strings.ToLower(strings.Join([]string{
			a.Details.Make, a.Details.Model, a.Details.Description, a.Details.Category,
		}, " "))
	}
	assetKey := func(a models.Asset) string {
		if a.Details.Key != "" {
			return a.Details.Key
		}
		return a.ID
	}
	for _, terms := range [][]string{
		{"didge", "3500", "ram"},
		{"dodge", "3500", "ram"},
		{"3500", "ram"},
	} {
		for _, a := range assets {
			h := hay(a)
			matched := true
			for _, term := range terms {
				if !strings.Contains(h, term) {
					matched = false
					break
				}
			}
			if matched {
				return assetKey(a)
			}
		}
	}
	return ""
}
