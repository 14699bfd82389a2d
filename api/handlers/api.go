package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/assetpilot/asset-tracker-api/api"
	"github.com/assetpilot/asset-tracker-api/config"
	"github.com/assetpilot/asset-tracker-api/databases"
	"github.com/assetpilot/asset-tracker-api/gemini"
	"github.com/assetpilot/asset-tracker-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	DB       databases.CollectionHelper
	Config   config.Config
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)

	hub := NewEventHub()

	u := User{DB: databases.NewUserDatabase(a.dbHelper)}
	asset := Asset{DB: databases.NewAssetDatabase(a.dbHelper), Events: hub}
	dash := Dashboard{DB: databases.NewAssetDatabase(a.dbHelper), Dismissals: NewDismissalStore()}
	desc := Description{
		DB: databases.NewAssetDatabase(a.dbHelper),
		Generator: gemini.NewGenerator(gemini.NewClient(gemini.Config{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		})),
	}
	cloudinaryHandler := CloudinaryHandler{}
	metricsHandler := MetricsHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/check-user", http.HandlerFunc(u.UserCheckEmailHandler)).Methods("POST")
	apiCreate.Handle("/user/login", http.HandlerFunc(u.UserLoginHandler)).Methods("POST")
	apiCreate.Handle("/user/create-checkout-session", api.Middleware(http.HandlerFunc(u.CreateCheckoutSessionHandler))).Methods("POST")
	apiCreate.Handle("/user/verify-subscription", api.Middleware(http.HandlerFunc(u.VerifySubscriptionHandler))).Methods("POST")
	apiCreate.Handle("/user/unsubscribe", api.Middleware(http.HandlerFunc(u.UnsubscribeHandler))).Methods("POST")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UpdateUserByIDHandler))).Methods("PUT")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")
	// All routes for user must go above this line

	apiCreate.Handle("/asset/{asset_id}", api.Middleware(http.HandlerFunc(asset.AssetByIDHandler))).Methods("GET")
	apiCreate.Handle("/asset/{asset_id}", api.Middleware(http.HandlerFunc(asset.UpdateAssetHandler))).Methods("PUT")
	apiCreate.Handle("/asset/{asset_id}", api.Middleware(http.HandlerFunc(asset.DeleteAssetHandler))).Methods("DELETE")
	apiCreate.Handle("/asset/{asset_id}/maintenance", api.Middleware(http.HandlerFunc(asset.UpdateAssetMaintenanceHandler))).Methods("PUT")
	apiCreate.Handle("/asset/{asset_id}/parts", api.Middleware(http.HandlerFunc(asset.UpdateAssetPartsHandler))).Methods("PUT")
	apiCreate.Handle("/asset/{asset_id}/odometer", api.Middleware(http.HandlerFunc(asset.UpdateAssetOdometerHandler))).Methods("PUT")
	apiCreate.Handle("/asset/{asset_id}/oil-change", api.Middleware(http.HandlerFunc(asset.UpdateAssetOilChangeHandler))).Methods("PUT")
	apiCreate.Handle("/asset/{asset_id}/notes", api.Middleware(http.HandlerFunc(asset.UpdateAssetNotesHandler))).Methods("PUT")
	apiCreate.Handle("/asset/{asset_id}/generate-description",
		api.TimeoutMiddleware(60*time.Second)(api.Middleware(http.HandlerFunc(desc.GenerateDescriptionHandler)))).Methods("POST")
	apiCreate.Handle("/asset", api.Middleware(http.HandlerFunc(asset.CreateAssetHandler))).Methods("POST")
	apiCreate.Handle("/assets", api.Middleware(http.HandlerFunc(asset.AssetHandler))).Methods("GET")
	apiCreate.Handle("/assets/user/{user_id}", api.Middleware(http.HandlerFunc(asset.AssetsByUserIDHandler))).Methods("GET")

	apiCreate.Handle("/dashboard/user/{user_id}", api.Middleware(http.HandlerFunc(dash.DashboardHandler))).Methods("GET")
	apiCreate.Handle("/dashboard/dismiss", api.Middleware(http.HandlerFunc(dash.DismissReminderHandler))).Methods("POST")
	apiCreate.Handle("/dashboard/user/{user_id}/dismissals", api.Middleware(http.HandlerFunc(dash.ResetDismissalsHandler))).Methods("DELETE")

	apiCreate.Handle("/events/user/{user_id}", http.HandlerFunc(hub.EventsHandler)).Methods("GET")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

	apiCreate.Handle("/metrics", api.Middleware(http.HandlerFunc(metricsHandler.GetMetrics))).Methods("GET")

	apiCreate.Handle("/success", http.HandlerFunc(u.handleSuccessRedirect)).Methods("GET")
	apiCreate.Handle("/cancel", http.HandlerFunc(u.handleCancelRedirect)).Methods("GET")

	// swagger docs hosted at "/"
	r.PathPrefix("/").Handler(http.StripPrefix("/", http.FileServer(http.Dir("./docs/"))))
	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("asset-tracker-api has connected to the database")

	// initialize stripe
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		return fmt.Errorf("stripe secret key is not set")
	}
	stripe.Key = stripeKey

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// DatabaseHelper exposes the connected database so main can wire background jobs
func (a *App) DatabaseHelper() databases.DatabaseHelper {
	return a.dbHelper
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
