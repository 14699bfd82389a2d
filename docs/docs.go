// Package docs Asset Tracker API.
//
// Documentation of Asset Tracker API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//     Host: https://asset-tracker-api.herokuapp.com
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - basic
//
//    SecurityDefinitions:
//    basic:
//      type: basic
//
// swagger:meta
package docs

import (
	"github.com/assetpilot/asset-tracker-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/v1/asset/{asset_id} asset assetByID
// Gets a single asset by ID.
// responses:
//   200: assetByIDResponse

// Shows a single asset by the given {ID}
// swagger:response assetByIDResponse
type assetByIDResponseWrapper struct {
	// in:body
	Body models.Asset
}
