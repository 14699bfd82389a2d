package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/assetpilot/asset-tracker-api/api/handlers"
	"github.com/assetpilot/asset-tracker-api/databases"
	mocksdb "github.com/assetpilot/asset-tracker-api/databases/mocks"
	"github.com/assetpilot/asset-tracker-api/models"
	"github.com/assetpilot/asset-tracker-api/reminders"
)

func dashboardRequest(t *testing.T, target string) *http.Request {
	req, err := http.NewRequest("GET", target, nil)
	if err != nil {
		t.Fatal(err)
	}
	return mux.SetURLVars(req, map[string]string{"user_id": "user-1"})
}

func TestDashboardHandlerDerivesReminders(t *testing.T) {
	m := mockCollection("assets")

	warrantyDue := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	oilDue := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")

	m.cursorHelper.(*mocksdb.CursorHelper).
		On("Decode", mock.AnythingOfType("*[]models.Asset")).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Asset)
		*arg = []models.Asset{{
			ID: "asset-1",
			Details: models.AssetDetails{
				Key:    "mower",
				Make:   "Toro",
				Model:  "TimeMaster",
				Year:   2021,
				UserID: "user-1",
				Maintenance: []models.MaintenanceRecord{
					{MaintenanceType: "Extended Warranty", MaintenanceDesc: "Engine", MaintenanceEndDate: warrantyDue},
					{MaintenanceType: "Oil Change", MaintenanceEndDate: oilDue},
					{MaintenanceType: "Oil Change", MaintenanceEndDate: "2019-01-01"},
				},
			},
		}}
	})

	m.conn.(*mocksdb.CollectionHelper).
		On("Find", mock.Anything, mock.Anything).
		Return(m.cursorHelper, nil)

	d := handlers.Dashboard{DB: databases.NewAssetDatabase(m.db), Dismissals: handlers.NewDismissalStore()}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.DashboardHandler)
	handler.ServeHTTP(rr, dashboardRequest(t, "/api/v1/dashboard/user/user-1?samples=false"))

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.DashboardResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)

	assert.Equal(t, reminders.DefaultWindowDays, resp.WindowDays)
	assert.Len(t, resp.Warranties, 1)
	assert.Equal(t, "Extended Warranty", resp.Warranties[0].Type)
	assert.Equal(t, "2021 Toro TimeMaster", resp.Warranties[0].AssetLabel)
	// the stale oil change from 2019 is outside the window
	assert.Len(t, resp.Maintenance, 1)
}

func TestDashboardHandlerSamplesForNewUsers(t *testing.T) {
	m := mockCollection("assets")

	m.cursorHelper.(*mocksdb.CursorHelper).
		On("Decode", mock.AnythingOfType("*[]models.Asset")).
		Return(nil)

	m.conn.(*mocksdb.CollectionHelper).
		On("Find", mock.Anything, mock.Anything).
		Return(m.cursorHelper, nil)

	d := handlers.Dashboard{DB: databases.NewAssetDatabase(m.db), Dismissals: handlers.NewDismissalStore()}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.DashboardHandler)
	handler.ServeHTTP(rr, dashboardRequest(t, "/api/v1/dashboard/user/user-1"))

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.DashboardResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)

	assert.NotEmpty(t, resp.Warranties)
	assert.NotEmpty(t, resp.Maintenance)
	for _, item := range resp.Warranties {
		assert.True(t, item.IsSample)
	}
}

func TestDashboardHandlerSamplesSuppressed(t *testing.T) {
	m := mockCollection("assets")

	m.cursorHelper.(*mocksdb.CursorHelper).
		On("Decode", mock.AnythingOfType("*[]models.Asset")).
		Return(nil)

	m.conn.(*mocksdb.CollectionHelper).
		On("Find", mock.Anything, mock.Anything).
		Return(m.cursorHelper, nil)

	d := handlers.Dashboard{DB: databases.NewAssetDatabase(m.db), Dismissals: handlers.NewDismissalStore()}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.DashboardHandler)
	handler.ServeHTTP(rr, dashboardRequest(t, "/api/v1/dashboard/user/user-1?samples=false"))

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.DashboardResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Empty(t, resp.Warranties)
	assert.Empty(t, resp.Maintenance)
}

func TestDashboardHandlerNextActions(t *testing.T) {
	m := mockCollection("assets")

	recentReading := time.Now().UTC().AddDate(0, -1, 0).Format("2006-01-02")

	m.cursorHelper.(*mocksdb.CursorHelper).
		On("Decode", mock.AnythingOfType("*[]models.Asset")).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Asset)
		*arg = []models.Asset{
			{ID: "asset-1", Details: models.AssetDetails{
				Make: "Honda", Model: "Civic", UserID: "user-1",
				Odometer: []models.OdometerEntry{
					{Reading: 42000, Date: recentReading},
				},
				OilChange: []models.OilChangeEntry{
					{Odometer: 38000, Date: "2019-06-01"},
					{Odometer: 41000, Date: "2020-01-10"},
				},
			}},
			// purchase date alone does not produce a next action row
			{ID: "asset-2", Details: models.AssetDetails{Make: "Toro", PurchaseDate: "2019-06-01", UserID: "user-1"}},
		}
	})

	m.conn.(*mocksdb.CollectionHelper).
		On("Find", mock.Anything, mock.Anything).
		Return(m.cursorHelper, nil)

	d := handlers.Dashboard{DB: databases.NewAssetDatabase(m.db), Dismissals: handlers.NewDismissalStore()}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.DashboardHandler)
	handler.ServeHTTP(rr, dashboardRequest(t, "/api/v1/dashboard/user/user-1?samples=false"))

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.DashboardResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)

	assert.Len(t, resp.NextActions, 3)
	for _, row := range resp.NextActions {
		assert.Equal(t, "asset-1", row.AssetID)
		assert.Equal(t, "Honda Civic", row.AssetLabel)
	}

	assert.Equal(t, "Odometer Reading", resp.NextActions[0].Event)
	assert.Equal(t, recentReading, resp.NextActions[0].Date)
	assert.False(t, resp.NextActions[0].Overdue)

	// both oil changes are long past, but only the latest one flags
	assert.Equal(t, "Oil Change", resp.NextActions[1].Event)
	assert.Equal(t, "2019-06-01", resp.NextActions[1].Date)
	assert.Equal(t, "2/1/2020", resp.NextActions[1].NextAction)
	assert.False(t, resp.NextActions[1].Overdue)

	assert.Equal(t, "2020-01-10", resp.NextActions[2].Date)
	assert.Equal(t, "9/10/2020", resp.NextActions[2].NextAction)
	assert.True(t, resp.NextActions[2].Overdue)
}

func TestDashboardHandlerSampleLinksToOwnedRam(t *testing.T) {
	m := mockCollection("assets")

	m.cursorHelper.(*mocksdb.CursorHelper).
		On("Decode", mock.AnythingOfType("*[]models.Asset")).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Asset)
		*arg = []models.Asset{{
			ID: "asset-1",
			Details: models.AssetDetails{
				Key:    "ram-key",
				Make:   "Dodge",
				Model:  "3500 Ram",
				UserID: "user-1",
			},
		}}
	})

	m.conn.(*mocksdb.CollectionHelper).
		On("Find", mock.Anything, mock.Anything).
		Return(m.cursorHelper, nil)

	d := handlers.Dashboard{DB: databases.NewAssetDatabase(m.db), Dismissals: handlers.NewDismissalStore()}

	rr := httptest.NewRecorder()
	http.HandlerFunc(d.DashboardHandler).ServeHTTP(rr, dashboardRequest(t, "/api/v1/dashboard/user/user-1"))

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.DashboardResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)

	assert.Len(t, resp.Maintenance, 2)
	for _, item := range resp.Maintenance {
		assert.True(t, item.IsSample)
		switch item.AssetLabel {
		case "Dodge 3500 ram":
			assert.Equal(t, "ram-key", item.AssetKey)
		case "2016 Ford F-150":
			assert.Equal(t, "sample-3", item.AssetKey)
		}
	}
}

func TestDismissReminderHandlerHidesRow(t *testing.T) {
	m := mockCollection("assets")

	warrantyDue := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")

	m.cursorHelper.(*mocksdb.CursorHelper).
		On("Decode", mock.AnythingOfType("*[]models.Asset")).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Asset)
		*arg = []models.Asset{{
			ID: "asset-1",
			Details: models.AssetDetails{
				Key:    "mower",
				Make:   "Toro",
				UserID: "user-1",
				Maintenance: []models.MaintenanceRecord{
					{MaintenanceType: "Extended Warranty", MaintenanceEndDate: warrantyDue},
				},
			},
		}}
	})

	m.conn.(*mocksdb.CollectionHelper).
		On("Find", mock.Anything, mock.Anything).
		Return(m.cursorHelper, nil)

	d := handlers.Dashboard{DB: databases.NewAssetDatabase(m.db), Dismissals: handlers.NewDismissalStore()}

	key := "warranty:mower:extended warranty:" + warrantyDue

	b, err := json.Marshal(map[string]string{"userID": "user-1", "key": key})
	if err != nil {
		t.Fatal(err)
	}
	dismissReq, err := http.NewRequest("POST", "/api/v1/dashboard/dismiss", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(d.DismissReminderHandler).ServeHTTP(rr, dismissReq)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	http.HandlerFunc(d.DashboardHandler).ServeHTTP(rr, dashboardRequest(t, "/api/v1/dashboard/user/user-1?samples=false"))
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.DashboardResponse
	err = json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Empty(t, resp.Warranties)
}

func TestDismissReminderHandlerMissingFields(t *testing.T) {
	d := handlers.Dashboard{Dismissals: handlers.NewDismissalStore()}

	b, err := json.Marshal(map[string]string{"userID": "user-1"})
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest("POST", "/api/v1/dashboard/dismiss", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(d.DismissReminderHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	expected, err := json.Marshal(models.ErrorMessageResponse{Response: models.MessageError{
		Message: "userID and key are required",
		Error:   "missing userID or key",
	}})
	assert.NoError(t, err)
	assert.Equal(t, string(expected), rr.Body.String())
}

func TestResetDismissalsHandlerBringsRowsBack(t *testing.T) {
	store := handlers.NewDismissalStore()
	store.Dismiss("user-1", "warranty:mower:extended warranty:2026-10-01")

	d := handlers.Dashboard{Dismissals: store}

	req, err := http.NewRequest("DELETE", "/api/v1/dashboard/user/user-1/dismissals", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-1"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(d.ResetDismissalsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, store.Snapshot("user-1"))
}
