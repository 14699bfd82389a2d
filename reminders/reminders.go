package reminders

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/assetpilot/asset-tracker-api/models"
)

// DefaultWindowDays is the look-ahead window used when the caller does not ask
// for a specific one.
const DefaultWindowDays = 30

// Section names used to build reminder keys. They are part of the key format
// clients hold on to for dismissals, so they must not change.
const (
	SectionWarranty    = "warranty"
	SectionMaintenance = "maint"
)

// Item is a single derived reminder row. It is computed fresh from the asset
// collection on every call and never persisted.
type Item struct {
	AssetKey    string     `json:"assetKey"`
	AssetLabel  string     `json:"assetLabel"`
	Type        string     `json:"maintenanceType"`
	Description string     `json:"maintenanceDesc,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	IsSample    bool       `json:"isSample"`
}

// Key returns the stable identity key for this item within the given section:
// section:assetKey:type:dateKey. The key is derived from content, not position,
// so edits to unrelated records cannot re-target a dismissal.
func (i Item) Key(section string) string {
	dateKey := "na"
	if i.DueDate != nil {
		dateKey = i.DueDate.UTC().Format("2006-01-02")
	}
	assetKey := i.AssetKey
	if assetKey == "" {
		assetKey = "sample"
	}
	return section + ":" + assetKey + ":" + strings.ToLower(i.Type) + ":" + dateKey
}

// Buckets holds the two derived reminder lists.
type Buckets struct {
	Warranties  []Item `json:"warranties"`
	Maintenance []Item `json:"maintenance"`
}

// Dismissals is a session-local set of reminder keys the user has hidden.
// It only ever grows; the one undo is a full session reset.
type Dismissals map[string]struct{}

// NewDismissals returns an empty dismissal set.
func NewDismissals() Dismissals {
	return Dismissals{}
}

// Dismiss adds a key to the set.
func (d Dismissals) Dismiss(key string) {
	d[key] = struct{}{}
}

// Contains reports whether the key has been dismissed.
func (d Dismissals) Contains(key string) bool {
	_, ok := d[key]
	return ok
}

// Derive classifies every maintenance record across the given assets into the
// expiring-warranty and upcoming-maintenance buckets, restricted to due dates
// within [now, now+window] inclusive, sorted ascending by due date with
// undated items last, and filtered through the dismissal set. It is a pure
// function of its inputs: calling it twice with the same arguments yields the
// same output.
func Derive(assets []models.Asset, now time.Time, window time.Duration, dismissed Dismissals) Buckets {
	soon := now.Add(window)

	var warranties, maintenance []Item

	for _, a := range assets {
		label := LabelForAsset(a.Details)
		key := a.Details.Key
		if key == "" {
			key = a.ID
		}
		for _, m := range a.Details.Maintenance {
			recordType := strings.TrimSpace(m.MaintenanceType)
			due := parseDueDate(m.MaintenanceEndDate)

			item := Item{
				AssetKey:    key,
				AssetLabel:  label,
				Type:        recordType,
				Description: strings.TrimSpace(m.MaintenanceDesc),
				DueDate:     due,
			}

			// Only dated records can be due soon. Unparseable dates degrade to
			// "no date" rather than erroring out.
			if due == nil || due.Before(now) || due.After(soon) {
				continue
			}

			lower := strings.ToLower(recordType)
			if strings.Contains(lower, "warranty") {
				warranties = append(warranties, item)
			}
			if strings.Contains(lower, "oil") || strings.Contains(lower, "tire rotation") {
				maintenance = append(maintenance, item)
			}
		}
	}

	sortByDueDate(warranties)
	sortByDueDate(maintenance)

	return Buckets{
		Warranties:  Filter(SectionWarranty, warranties, dismissed),
		Maintenance: Filter(SectionMaintenance, maintenance, dismissed),
	}
}

// Filter returns the items whose keys are not in the dismissal set. The input
// slice is left untouched.
func Filter(section string, items []Item, dismissed Dismissals) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if dismissed.Contains(it.Key(section)) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// LabelForAsset builds a display label for an asset: "{year} {make} {model}"
// from the non-empty parts, falling back to VIN, then plate, then category,
// then the literal "Asset".
func LabelForAsset(a models.AssetDetails) string {
	var parts []string
	if a.Year != 0 {
		parts = append(parts, strconv.Itoa(a.Year))
	}
	if strings.TrimSpace(a.Make) != "" {
		parts = append(parts, strings.TrimSpace(a.Make))
	}
	if strings.TrimSpace(a.Model) != "" {
		parts = append(parts, strings.TrimSpace(a.Model))
	}
	if label := strings.Join(parts, " "); label != "" {
		return label
	}
	if vin := strings.TrimSpace(a.Vin); vin != "" {
		return vin
	}
	if plate := strings.TrimSpace(a.Plate); plate != "" {
		return plate
	}
	if category := strings.TrimSpace(a.Category); category != "" {
		return category
	}
	return "Asset"
}

// dueDateLayouts are tried in order when parsing a maintenance end date. The
// UI stores plain date-picker values but older records carry full timestamps.
var dueDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseDueDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func sortByDueDate(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].DueDate, items[j].DueDate
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})
}
