package models

// Asset holds the structure for the asset collection in mongo
type Asset struct {
	ID      string       `json:"_id" bson:"_id"`
	Details AssetDetails `json:"asset" bson:"asset"`
	Version int32        `json:"__v" bson:"__v"`
}

// AssetDetails holds the structure for the inner asset structure as
// defined in the asset collection in mongo
type AssetDetails struct {
	Key          string              `json:"key" bson:"key"`
	Make         string              `json:"make" bson:"make"`
	Model        string              `json:"model" bson:"model"`
	Year         int                 `json:"year" bson:"year"`
	Color        string              `json:"color" bson:"color"`
	Vin          string              `json:"vin" bson:"vin"`
	Plate        string              `json:"plate" bson:"plate"`
	Tires        string              `json:"tires" bson:"tires"`
	TireSize     string              `json:"tireSize" bson:"tireSize"`
	TirePressure string              `json:"tirePressure" bson:"tirePressure"`
	OilType      string              `json:"oilType" bson:"oilType"`
	PurchaseDate string              `json:"purchaseDate" bson:"purchaseDate"`
	ParcelNumber string              `json:"parcelNumber" bson:"parcelNumber"`
	Category     string              `json:"category" bson:"category"`
	Description  string              `json:"description" bson:"description"`
	Notes        string              `json:"notes" bson:"notes"`
	PhotoURL     string              `json:"photoURL" bson:"photoURL"`
	Maintenance  []MaintenanceRecord `json:"maintenance" bson:"maintenance"`
	Odometer     []OdometerEntry     `json:"odometer" bson:"odometer"`
	OilChange    []OilChangeEntry    `json:"oilChange" bson:"oilChange"`
	Parts        []Part              `json:"parts" bson:"parts"`
	Tools        []Tool              `json:"tools" bson:"tools"`
	Videos       []Video             `json:"videos" bson:"videos"`
	UserID       string              `json:"userID" bson:"userID"`
	CreatedAt    interface{}         `json:"createdAt" bson:"createdAt"`
	UpdatedAt    interface{}         `json:"updatedAt" bson:"updatedAt"`
}

// MaintenanceRecord is a dated or undated maintenance/warranty entry attached
// to an asset. All fields are optional; records with every field empty are
// dropped before they reach the collection.
type MaintenanceRecord struct {
	MaintenanceType    string `json:"maintenanceType" bson:"maintenanceType"`
	MaintenanceDesc    string `json:"maintenanceDesc" bson:"maintenanceDesc"`
	MaintenanceEndDate string `json:"maintenanceEndDate" bson:"maintenanceEndDate"`
}

// OdometerEntry holds a single odometer reading for an asset
type OdometerEntry struct {
	Reading float64 `json:"reading" bson:"reading"`
	Date    string  `json:"date" bson:"date"`
}

// OilChangeEntry holds a single oil change log entry for an asset
type OilChangeEntry struct {
	Odometer float64 `json:"odometer" bson:"odometer"`
	Date     string  `json:"date" bson:"date"`
}

// Part holds the structure for a replacement part tracked on an asset
type Part struct {
	Part        string `json:"part" bson:"part"`
	Type        string `json:"type" bson:"type"`
	URL         string `json:"url" bson:"url"`
	Date        string `json:"date" bson:"date"`
	Description string `json:"description" bson:"description"`
}

// Tool holds the structure for a tool associated with an asset
type Tool struct {
	Name        string `json:"name" bson:"name"`
	Description string `json:"description" bson:"description"`
}

// Video holds a reference video attached to an asset
type Video struct {
	Name string `json:"name" bson:"name"`
	URL  string `json:"url" bson:"url"`
}
