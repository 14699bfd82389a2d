package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/assetpilot/asset-tracker-api/api"
	"github.com/assetpilot/asset-tracker-api/config"
	"github.com/assetpilot/asset-tracker-api/databases"
	"github.com/assetpilot/asset-tracker-api/gemini"
	"github.com/assetpilot/asset-tracker-api/models"
	"github.com/assetpilot/asset-tracker-api/reminders"
)

// DescriptionGenerator runs a prompt through the retrying Gemini pipeline.
//
// go generate: mockery --name=DescriptionGenerator
type DescriptionGenerator interface {
	Generate(ctx context.Context, prompt string) (gemini.Result, error)
}

// Description exported for testing purposes
type Description struct {
	DB        databases.AssetDatabase
	Generator DescriptionGenerator
}

type descriptionRequest struct {
	Prompt string `json:"prompt"`
}

type descriptionResponse struct {
	Status      string `json:"status"`
	Result      string `json:"result,omitempty"`
	Partial     bool   `json:"partial,omitempty"`
	Error       string `json:"error,omitempty"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"maxAttempts"`
}

// GenerateDescriptionHandler generates a descriptive blurb for an asset. The
// request may carry an explicit prompt (for parts or tools); otherwise the
// prompt is built from the asset's identifying fields.
func (d Description) GenerateDescriptionHandler(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["asset_id"]

	var req descriptionRequest
	if r.Body != nil {
		// An empty body is fine, the asset fields carry the prompt then.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		ctx, cancel := api.WithQueryTimeout(r.Context())
		defer cancel()
		asset, err := d.DB.FindOne(ctx, bson.M{"_id": assetID})
		if err != nil {
			config.ErrorStatus("failed to get asset by ID", http.StatusNotFound, w, err)
			return
		}
		prompt = buildDescriptionPrompt(asset.Details)
	}

	res, err := d.Generator.Generate(r.Context(), prompt)
	if err != nil {
		writeGenerationError(w, res, err)
		return
	}

	status := "success"
	if res.Partial {
		status = "partial"
		zap.S().Warnw("description truncated at token limit", "asset_id", assetID, "attempts", res.Attempts)
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(descriptionResponse{
		Status:      status,
		Result:      res.Text,
		Partial:     res.Partial,
		Attempts:    res.Attempts,
		MaxAttempts: res.MaxAttempts,
	})
}

func writeGenerationError(w http.ResponseWriter, res gemini.Result, err error) {
	status := http.StatusBadGateway
	var blocked *gemini.BlockedError
	var finish *gemini.FinishError
	switch {
	case errors.Is(err, gemini.ErrBlankPrompt):
		status = http.StatusBadRequest
	case errors.Is(err, gemini.ErrBusy):
		status = http.StatusConflict
	case errors.As(err, &blocked), errors.As(err, &finish):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}

	zap.S().Errorw("description generation failed", "error", err, "attempts", res.Attempts)

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(descriptionResponse{
		Status:      "failed",
		Error:       err.Error(),
		Attempts:    res.Attempts,
		MaxAttempts: res.MaxAttempts,
	})
}

// buildDescriptionPrompt turns the asset's identifying fields into a prompt.
// Fields the user left blank are skipped.
func buildDescriptionPrompt(a models.AssetDetails) string {
	var details []string
	appendDetail := func(name, value string) {
		if v := strings.TrimSpace(value); v != "" {
			details = append(details, fmt.Sprintf("%s: %s", name, v))
		}
	}

	appendDetail("category", a.Category)
	if a.Year != 0 {
		details = append(details, fmt.Sprintf("year: %d", a.Year))
	}
	appendDetail("make", a.Make)
	appendDetail("model", a.Model)
	appendDetail("color", a.Color)
	appendDetail("tires", a.Tires)
	appendDetail("oil type", a.OilType)
	appendDetail("notes", a.Notes)

	label := reminders.LabelForAsset(a)
	if len(details) == 0 {
		return fmt.Sprintf("Write a short, friendly description of an asset called %q for a personal asset tracker.", label)
	}
	return fmt.Sprintf(
		"Write a short, friendly description of %s for a personal asset tracker. Details: %s. Two to three sentences, no markdown.",
		label, strings.Join(details, ", "),
	)
}
