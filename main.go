package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/assetpilot/asset-tracker-api/api/handlers"
	"github.com/assetpilot/asset-tracker-api/api/scheduler"
	"github.com/assetpilot/asset-tracker-api/config"
	"github.com/assetpilot/asset-tracker-api/databases"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil { //initialize database and router
		log.Fatal(err)
	}

	dbHelper := a.DatabaseHelper()
	s := scheduler.NewScheduler(
		databases.NewAssetDatabase(dbHelper),
		databases.NewUserDatabase(dbHelper),
		databases.NewSchedulerLockDatabase(dbHelper),
	)
	s.Start()
	defer s.Stop()

	port := os.Getenv("PORT")
	baseURL := os.Getenv("BASE_URL")
	zap.S().Infow("asset-tracker-api is up and running",
		"port", port,
		"url", baseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", port), a.Router))
}
