package handlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	stripesub "github.com/stripe/stripe-go/v82/subscription"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/assetpilot/asset-tracker-api/api"
	"github.com/assetpilot/asset-tracker-api/config"
	"github.com/assetpilot/asset-tracker-api/databases"
	"github.com/assetpilot/asset-tracker-api/models"
)

// User exported for testing purposes
type User struct {
	DB databases.UserDatabase
}

// UserHandler returns a user given a userID
func (u User) UserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	zap.S().Debugf("user_id: %v", userID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := u.DB.FindOne(ctx, bson.M{"_id": userID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	// never hand the password hash back out
	dbResp.Details.Password = ""

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UserCreateHandler creates a user
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var user models.UserDetails
	err := json.NewDecoder(r.Body).Decode(&user)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	user.Email = strings.TrimSpace(strings.ToLower(user.Email))
	if user.Email == "" || user.Password == "" {
		config.ErrorStatus("email and password are required", http.StatusBadRequest, w, fmt.Errorf("missing email or password"))
		return
	}

	// check if the user already exists
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	existingUser, _ := u.DB.FindOne(ctx, bson.M{"user.email": user.Email})
	if existingUser != nil {
		config.ErrorStatus("email already exists", http.StatusConflict, w, fmt.Errorf("duplicate email"))
		return
	}

	// hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}
	user.Password = string(hashedPassword)
	user.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	user.UpdatedAt = user.CreatedAt

	_, err = u.DB.InsertOne(ctx, user)
	if err != nil {
		config.ErrorStatus("failed to insert user", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "User created successfully",
	})
}

// UserCheckEmailHandler checks if an email exists using POST
func (u User) UserCheckEmailHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var user models.UserDetails
	err := json.NewDecoder(r.Body).Decode(&user)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	// check if the user already exists
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	existingUser, _ := u.DB.FindOne(ctx, bson.M{"user.email": strings.TrimSpace(strings.ToLower(user.Email))})
	if existingUser != nil {
		config.ErrorStatus("email already exists", http.StatusConflict, w, fmt.Errorf("duplicate email"))
		return
	}

	w.WriteHeader(http.StatusOK)
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Pro   bool   `json:"pro"`
	} `json:"user"`
}

// UserLoginHandler verifies basic auth credentials and returns a session JWT
func (u User) UserLoginHandler(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	if ok {
		usernameHash := sha256.Sum256([]byte(email))

		// fetch email & pass from db
		ctx, cancel := api.WithQueryTimeout(r.Context())
		defer cancel()
		dbEmailResp, err := u.DB.Find(ctx, bson.M{"user.email": strings.ToLower(email)})
		if err != nil {
			config.ErrorStatus("failed to get user by email", http.StatusNotFound, w, err)
			return
		}
		if len(dbEmailResp) == 0 {
			config.ErrorStatus("no matching email found", http.StatusUnauthorized, w, fmt.Errorf("no matching email found"))
			return
		}

		expectedUsernameHash := sha256.Sum256([]byte(dbEmailResp[0].Details.Email))
		usernameMatch := subtle.ConstantTimeCompare(usernameHash[:], expectedUsernameHash[:]) == 1

		err = bcrypt.CompareHashAndPassword([]byte(dbEmailResp[0].Details.Password), []byte(password))
		if err != nil {
			config.ErrorStatus("failed to compare password", http.StatusUnauthorized, w, err)
			return
		}

		if usernameMatch {
			jwtSecret := []byte(os.Getenv("JWT_SECRET"))
			if len(jwtSecret) == 0 {
				config.ErrorStatus("server misconfigured", http.StatusInternalServerError, w, fmt.Errorf("JWT_SECRET is not set"))
				return
			}

			user := dbEmailResp[0]
			claims := jwt.MapClaims{
				"sub":   user.ID,
				"email": user.Details.Email,
				"typ":   "access",
				"iat":   time.Now().Unix(),
				"exp":   time.Now().Add(24 * time.Hour).Unix(),
			}
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
			signed, err := token.SignedString(jwtSecret)
			if err != nil {
				config.ErrorStatus("failed to sign token", http.StatusInternalServerError, w, err)
				return
			}

			var resp loginResponse
			resp.Token = signed
			resp.User.ID = user.ID
			resp.User.Email = user.Details.Email
			resp.User.Name = user.Details.Name
			resp.User.Pro = user.Details.Pro

			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(resp)
			return
		}
	}

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// UpdateUserByIDHandler patches the given fields of a user document
func (u User) UpdateUserByIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	var updatedFields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updatedFields); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	// Password changes go through their own flow, never a blind patch.
	delete(updatedFields, "password")

	setFields := bson.M{"user.updatedAt": primitive.NewDateTimeFromTime(time.Now())}
	for key, value := range updatedFields {
		setFields["user."+key] = value
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	_, err := u.DB.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": setFields})
	if err != nil {
		config.ErrorStatus("failed to update user", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "User updated successfully",
	})
}

type checkoutSessionRequest struct {
	UserID string `json:"userID"`
}

// CreateCheckoutSessionHandler starts a Stripe checkout for the Pro plan
func (u User) CreateCheckoutSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req checkoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	user, err := u.DB.FindOne(ctx, bson.M{"_id": req.UserID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	priceID := os.Getenv("STRIPE_PRICE_ID")
	if priceID == "" {
		config.ErrorStatus("server misconfigured", http.StatusInternalServerError, w, fmt.Errorf("STRIPE_PRICE_ID is not set"))
		return
	}
	baseURL := strings.TrimRight(os.Getenv("PUBLIC_WEB_BASE_URL"), "/")

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(user.Details.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(baseURL + "/subscribe/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(baseURL + "/subscribe/cancel"),
		ClientReferenceID: stripe.String(user.ID),
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		config.ErrorStatus("failed to create checkout session", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sessionID": sess.ID,
		"url":       sess.URL,
	})
}

type verifySubscriptionRequest struct {
	UserID    string `json:"userID"`
	SessionID string `json:"sessionID"`
}

// VerifySubscriptionHandler confirms a completed checkout and flips the user to Pro
func (u User) VerifySubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	var req verifySubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("subscription")
	sess, err := checkoutsession.Get(req.SessionID, params)
	if err != nil {
		config.ErrorStatus("failed to get checkout session", http.StatusNotFound, w, err)
		return
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		config.ErrorStatus("subscription is not paid", http.StatusPaymentRequired, w, fmt.Errorf("payment status: %v", sess.PaymentStatus))
		return
	}

	setFields := bson.M{
		"user.pro":       true,
		"user.updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}
	if sess.Customer != nil {
		setFields["user.stripeCustomerID"] = sess.Customer.ID
	}
	if sess.Subscription != nil {
		setFields["user.stripeSubscriptionID"] = sess.Subscription.ID
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	_, err = u.DB.UpdateOne(ctx, bson.M{"_id": req.UserID}, bson.M{"$set": setFields})
	if err != nil {
		config.ErrorStatus("failed to update user", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Subscription verified",
		"pro":     true,
	})
}

type unsubscribeRequest struct {
	UserID string `json:"userID"`
}

// UnsubscribeHandler cancels the user's Stripe subscription and clears the Pro flag
func (u User) UnsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	user, err := u.DB.FindOne(ctx, bson.M{"_id": req.UserID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	if user.Details.StripeSubscriptionID == "" {
		config.ErrorStatus("user has no subscription", http.StatusBadRequest, w, fmt.Errorf("no stripe subscription on file"))
		return
	}

	_, err = stripesub.Cancel(user.Details.StripeSubscriptionID, nil)
	if err != nil {
		config.ErrorStatus("failed to cancel subscription", http.StatusInternalServerError, w, err)
		return
	}

	_, err = u.DB.UpdateOne(ctx, bson.M{"_id": req.UserID}, bson.M{"$set": bson.M{
		"user.pro":                  false,
		"user.stripeSubscriptionID": "",
		"user.updatedAt":            primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to update user", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Subscription cancelled",
		"pro":     false,
	})
}

func (u User) handleSuccessRedirect(w http.ResponseWriter, r *http.Request) {
	baseURL := strings.TrimRight(os.Getenv("PUBLIC_WEB_BASE_URL"), "/")
	http.Redirect(w, r, baseURL+"/dashboard?upgraded=true", http.StatusSeeOther)
}

func (u User) handleCancelRedirect(w http.ResponseWriter, r *http.Request) {
	baseURL := strings.TrimRight(os.Getenv("PUBLIC_WEB_BASE_URL"), "/")
	http.Redirect(w, r, baseURL+"/pricing", http.StatusSeeOther)
}
