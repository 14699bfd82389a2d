package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/assetpilot/asset-tracker-api/api"
	"github.com/assetpilot/asset-tracker-api/config"
	"github.com/assetpilot/asset-tracker-api/databases"
	"github.com/assetpilot/asset-tracker-api/models"
)

var (
	// Page denotes the starting Page for pagination results
	Page = 0
)

// Asset exported for testing purposes
type Asset struct {
	DB     databases.AssetDatabase
	Events *EventHub
}

// AssetHandler returns all assets
func (a Asset) AssetHandler(w http.ResponseWriter, r *http.Request) {
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
	}
	limit64 := int64(Limit)
	Page = getPage(Page, r)
	skip64 := int64(Page * Limit)
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := a.DB.Find(ctx, bson.D{}, &options.FindOptions{Limit: &limit64, Skip: &skip64})
	if err != nil {
		config.ErrorStatus("failed to get assets", http.StatusNotFound, w, err)
		return
	}
	// Because the frontend requires that the data elements inside models.Asset exist, if
	// len == 0 then we will just return an empty data object
	if len(dbResp) == 0 {
		dbResp = []models.Asset{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AssetByIDHandler returns an asset by ID
func (a Asset) AssetByIDHandler(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["asset_id"]

	zap.S().Debugf("asset_id: %v", assetID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := a.DB.FindOne(ctx, bson.M{"_id": assetID})
	if err != nil {
		config.ErrorStatus("failed to get asset by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AssetsByUserIDHandler returns all assets that contain the given userID
func (a Asset) AssetsByUserIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v", Limit|10))
	}
	limit64 := int64(Limit)
	Page = getPage(Page, r)
	skip64 := int64(Page * Limit)

	zap.S().Debugf("user_id: '%v'", userID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := a.DB.Find(ctx, bson.M{
		"asset.userID": userID,
	}, &options.FindOptions{Limit: &limit64, Skip: &skip64})
	if err != nil {
		config.ErrorStatus("failed to get assets by user id", http.StatusNotFound, w, err)
		return
	}

	// Because the frontend requires that the data elements inside models.Asset exist, if
	// len == 0 then we will just return an empty data object
	if len(dbResp) == 0 {
		dbResp = []models.Asset{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CreateAssetHandler creates an asset
func (a Asset) CreateAssetHandler(w http.ResponseWriter, r *http.Request) {
	var asset models.Asset
	if err := json.NewDecoder(r.Body).Decode(&asset.Details); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	asset.ID = uuid.New().String()
	if strings.TrimSpace(asset.Details.Key) == "" {
		asset.Details.Key = asset.ID
	}
	asset.Details.Maintenance = sanitizeMaintenance(asset.Details.Maintenance)
	asset.Details.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	asset.Details.UpdatedAt = asset.Details.CreatedAt

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	_, err := a.DB.InsertOne(ctx, asset)
	if err != nil {
		config.ErrorStatus("failed to create asset", http.StatusInternalServerError, w, err)
		return
	}

	a.Events.Broadcast(AssetEvent{Event: "asset_created", AssetID: asset.ID, UserID: asset.Details.UserID})

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Asset created successfully",
		"id":      asset.ID,
	})
}

// UpdateAssetHandler updates an asset's details
func (a Asset) UpdateAssetHandler(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["asset_id"]

	var asset models.Asset
	if err := json.NewDecoder(r.Body).Decode(&asset.Details); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	asset.Details.Maintenance = sanitizeMaintenance(asset.Details.Maintenance)
	asset.Details.UpdatedAt = primitive.NewDateTimeFromTime(time.Now())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	_, err := a.DB.UpdateOne(ctx, bson.M{"_id": assetID}, bson.M{"$set": bson.M{"asset": asset.Details}})
	if err != nil {
		config.ErrorStatus("failed to update asset", http.StatusInternalServerError, w, err)
		return
	}

	a.Events.Broadcast(AssetEvent{Event: "asset_updated", AssetID: assetID, UserID: asset.Details.UserID})

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Asset updated successfully",
	})
}

// DeleteAssetHandler deletes an asset by ID
func (a Asset) DeleteAssetHandler(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["asset_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := a.DB.FindOne(ctx, bson.M{"_id": assetID})
	if err != nil {
		config.ErrorStatus("failed to get asset by ID", http.StatusNotFound, w, err)
		return
	}

	_, err = a.DB.DeleteOne(ctx, bson.M{"_id": assetID})
	if err != nil {
		config.ErrorStatus("failed to delete asset", http.StatusInternalServerError, w, err)
		return
	}

	a.Events.Broadcast(AssetEvent{Event: "asset_deleted", AssetID: assetID, UserID: dbResp.Details.UserID})

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Asset deleted successfully",
	})
}

// UpdateAssetMaintenanceHandler replaces an asset's maintenance record list
func (a Asset) UpdateAssetMaintenanceHandler(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["asset_id"]

	var records []models.MaintenanceRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	a.updateSubdocument(w, r, assetID, "asset.maintenance", sanitizeMaintenance(records))
}

// UpdateAssetPartsHandler replaces an asset's parts list
func (a Asset) UpdateAssetPartsHandler(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["asset_id"]

	var parts []models.Part
	if err := json.NewDecoder(r.Body).Decode(&parts); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	a.updateSubdocument(w, r, assetID, "asset.parts", parts)
}

// UpdateAssetOdometerHandler replaces an asset's odometer log
func (a Asset) UpdateAssetOdometerHandler(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["asset_id"]

	var entries []models.OdometerEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	a.updateSubdocument(w, r, assetID, "asset.odometer", entries)
}

// UpdateAssetOilChangeHandler replaces an asset's oil change log
func (a Asset) UpdateAssetOilChangeHandler(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["asset_id"]

	var entries []models.OilChangeEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	a.updateSubdocument(w, r, assetID, "asset.oilChange", entries)
}

// UpdateAssetNotesHandler replaces an asset's notes
func (a Asset) UpdateAssetNotesHandler(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["asset_id"]

	var body struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	a.updateSubdocument(w, r, assetID, "asset.notes", body.Notes)
}

func (a Asset) updateSubdocument(w http.ResponseWriter, r *http.Request, assetID, field string, value interface{}) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	_, err := a.DB.UpdateOne(ctx, bson.M{"_id": assetID}, bson.M{"$set": bson.M{
		field:             value,
		"asset.updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to update asset", http.StatusInternalServerError, w, err)
		return
	}

	a.Events.Broadcast(AssetEvent{Event: "asset_updated", AssetID: assetID})

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Asset updated successfully",
	})
}

// sanitizeMaintenance drops records with every field blank. Clients send the
// full editor grid including unused trailing rows.
func sanitizeMaintenance(records []models.MaintenanceRecord) []models.MaintenanceRecord {
	out := make([]models.MaintenanceRecord, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.MaintenanceType) == "" &&
			strings.TrimSpace(rec.MaintenanceDesc) == "" &&
			strings.TrimSpace(rec.MaintenanceEndDate) == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func getPage(Page int, r *http.Request) int {
	if r.URL.Query().Get("page") == "" {
		zap.S().Warnf("page not set, using default of %v", Page)
	} else {
		var err error
		Page, err = strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			zap.S().Errorf(fmt.Sprintf("error parsing page number: %v", err))
		}
		if Page < 0 {
			zap.S().Warnf(fmt.Sprintf("cannot process page number less than 1. Got: %v", Page))
			return 0
		}
	}
	return Page
}
