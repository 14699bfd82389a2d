package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/assetpilot/asset-tracker-api/api"
	"github.com/assetpilot/asset-tracker-api/config"
	"github.com/assetpilot/asset-tracker-api/databases"
	"github.com/assetpilot/asset-tracker-api/models"
	"github.com/assetpilot/asset-tracker-api/reminders"
)

// DismissalStore keeps each user's dismissed reminder keys for the lifetime of
// the process. Dismissals are intentionally never written to mongo; a restart
// or an explicit reset brings every reminder back.
type DismissalStore struct {
	mu     sync.Mutex
	byUser map[string]reminders.Dismissals
}

// NewDismissalStore returns an empty store.
func NewDismissalStore() *DismissalStore {
	return &DismissalStore{byUser: make(map[string]reminders.Dismissals)}
}

// Dismiss records a reminder key for the user.
func (s *DismissalStore) Dismiss(userID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byUser[userID]
	if !ok {
		d = reminders.NewDismissals()
		s.byUser[userID] = d
	}
	d.Dismiss(key)
}

// Snapshot returns a copy of the user's dismissal set safe to read without
// holding the lock.
func (s *DismissalStore) Snapshot(userID string) reminders.Dismissals {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := reminders.NewDismissals()
	for key := range s.byUser[userID] {
		out.Dismiss(key)
	}
	return out
}

// Reset clears every dismissal the user has made this session.
func (s *DismissalStore) Reset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, userID)
}

// Dashboard exported for testing purposes
type Dashboard struct {
	DB         databases.AssetDatabase
	Dismissals *DismissalStore
}

// DashboardResponse is the derived reminder view for one user.
type DashboardResponse struct {
	Warranties  []reminders.Item    `json:"warranties"`
	Maintenance []reminders.Item    `json:"maintenance"`
	NextActions []nextActionSummary `json:"nextActions"`
	WindowDays  int                 `json:"windowDays"`
}

type nextActionSummary struct {
	AssetID    string `json:"assetID"`
	AssetLabel string `json:"assetLabel"`
	Event      string `json:"event"`
	Date       string `json:"date"`
	NextAction string `json:"nextAction"`
	Overdue    bool   `json:"overdue"`
}

// DashboardHandler derives the reminder buckets for a user's assets. The
// optional "days" query param widens or narrows the look-ahead window and
// "samples=false" suppresses the placeholder rows shown to new users.
func (d Dashboard) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	windowDays := reminders.DefaultWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			zap.S().Warnf("days not usable, using default of %v, got: %v", reminders.DefaultWindowDays, raw)
		} else {
			windowDays = parsed
		}
	}
	withSamples := r.URL.Query().Get("samples") != "false"

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := d.DB.Find(ctx, bson.M{"asset.userID": userID})
	if err != nil {
		config.ErrorStatus("failed to get assets by user id", http.StatusNotFound, w, err)
		return
	}

	now := time.Now().UTC()
	dismissed := d.Dismissals.Snapshot(userID)
	buckets := reminders.Derive(dbResp, now, time.Duration(windowDays)*24*time.Hour, dismissed)

	// New users with nothing due get clearly tagged sample rows so the
	// dashboard never renders empty. Samples honor dismissals too.
	if withSamples {
		if len(buckets.Warranties) == 0 {
			buckets.Warranties = reminders.Filter(reminders.SectionWarranty, reminders.SampleWarranties(now), dismissed)
		}
		if len(buckets.Maintenance) == 0 {
			samples := reminders.LinkSampleMaintenance(reminders.SampleMaintenance(now), dbResp)
			buckets.Maintenance = reminders.Filter(reminders.SectionMaintenance, samples, dismissed)
		}
	}

	resp := DashboardResponse{
		Warranties:  buckets.Warranties,
		Maintenance: buckets.Maintenance,
		NextActions: nextActionRows(dbResp, now),
		WindowDays:  windowDays,
	}
	if resp.Warranties == nil {
		resp.Warranties = []reminders.Item{}
	}
	if resp.Maintenance == nil {
		resp.Maintenance = []reminders.Item{}
	}

	b, err := json.Marshal(resp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// nextActionRows projects the 8-month service check from every logged
// odometer and oil change entry across the user's assets.
func nextActionRows(assets []models.Asset, now time.Time) []nextActionSummary {
	out := make([]nextActionSummary, 0, len(assets))
	for _, a := range assets {
		label := reminders.LabelForAsset(a.Details)

		var odoDates, oilDates []string
		for _, e := range a.Details.Odometer {
			odoDates = append(odoDates, e.Date)
		}
		for _, e := range a.Details.OilChange {
			oilDates = append(oilDates, e.Date)
		}
		out = append(out, sourceRows(a.ID, label, "Odometer Reading", odoDates, now)...)
		out = append(out, sourceRows(a.ID, label, "Oil Change", oilDates, now)...)
	}
	return out
}

// sourceRows builds one row per usable entry date. Only the latest entry in a
// source can flag overdue so older history stays quiet.
func sourceRows(assetID, label, event string, dates []string, now time.Time) []nextActionSummary {
	latest := ""
	for _, raw := range dates {
		if _, ok := reminders.NextActionDate(raw); ok && raw > latest {
			latest = raw
		}
	}
	var rows []nextActionSummary
	for _, raw := range dates {
		if _, ok := reminders.NextActionDate(raw); !ok {
			continue
		}
		rows = append(rows, nextActionSummary{
			AssetID:    assetID,
			AssetLabel: label,
			Event:      event,
			Date:       raw,
			NextAction: reminders.FormatNextActionDate(raw),
			Overdue:    raw == latest && reminders.NextActionOverdue(raw, now),
		})
	}
	return rows
}

// DismissReminderHandler hides a single reminder row for the session
func (d Dashboard) DismissReminderHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userID"`
		Key    string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if strings.TrimSpace(body.UserID) == "" || strings.TrimSpace(body.Key) == "" {
		config.ErrorStatus("userID and key are required", http.StatusBadRequest, w, errors.New("missing userID or key"))
		return
	}

	d.Dismissals.Dismiss(body.UserID, body.Key)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Reminder dismissed",
	})
}

// ResetDismissalsHandler brings back every reminder the user has hidden
func (d Dashboard) ResetDismissalsHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	d.Dismissals.Reset(userID)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Dismissals cleared",
	})
}
