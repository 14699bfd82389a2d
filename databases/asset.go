package databases

// go generate: mockery --name AssetDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/assetpilot/asset-tracker-api/models"
)

const assetName = "assets"

// AssetDatabase contains the methods to use with the asset database
type AssetDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Asset, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Asset, error)
	InsertOne(ctx context.Context, asset models.Asset) (interface{}, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}) (*mongo.DeleteResult, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
}

type assetDatabase struct {
	db DatabaseHelper
}

// NewAssetDatabase initializes a new instance of asset database with the provided db connection
func NewAssetDatabase(db DatabaseHelper) AssetDatabase {
	return &assetDatabase{
		db: db,
	}
}

func (a *assetDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Asset, error) {
	asset := &models.Asset{}
	err := a.db.Collection(assetName).FindOne(ctx, filter).Decode(&asset)
	if err != nil {
		return nil, err
	}
	return asset, nil
}

func (a *assetDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Asset, error) {
	cursor, err := a.db.Collection(assetName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var assets []models.Asset
	if err := cursor.Decode(&assets); err != nil {
		return nil, err
	}
	return assets, nil
}

func (a *assetDatabase) InsertOne(ctx context.Context, asset models.Asset) (interface{}, error) {
	res, err := a.db.Collection(assetName).InsertOne(ctx, asset)
	if err != nil {
		return nil, err
	}
	return res.Decode(), nil
}

func (a *assetDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	return a.db.Collection(assetName).UpdateOne(ctx, filter, update)
}

func (a *assetDatabase) DeleteOne(ctx context.Context, filter interface{}) (*mongo.DeleteResult, error) {
	return a.db.Collection(assetName).DeleteOne(ctx, filter)
}

func (a *assetDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return a.db.Collection(assetName).CountDocuments(ctx, filter)
}
