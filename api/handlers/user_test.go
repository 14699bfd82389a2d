package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/assetpilot/asset-tracker-api/api/handlers"
	"github.com/assetpilot/asset-tracker-api/databases"
	mocksdb "github.com/assetpilot/asset-tracker-api/databases/mocks"
	"github.com/assetpilot/asset-tracker-api/models"
)

func TestUserHandlerStripsPassword(t *testing.T) {
	m := mockCollection("users")

	m.singleResultHelper.(*mocksdb.SingleResultHelper).
		On("Decode", mock.AnythingOfType("**models.User")).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).ID = "user-1"
		(*arg).Details.Email = "jo@example.com"
		(*arg).Details.Name = "Jo"
		(*arg).Details.Password = "$2a$10$secret-hash"
	})
	m.conn.(*mocksdb.CollectionHelper).
		On("FindOne", mock.Anything, mock.Anything).
		Return(m.singleResultHelper)

	u := handlers.User{DB: databases.NewUserDatabase(m.db)}

	req, err := http.NewRequest("GET", "/api/v1/user/user-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-1"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got models.User
	err = json.Unmarshal(rr.Body.Bytes(), &got)
	assert.NoError(t, err)
	assert.Equal(t, "jo@example.com", got.Details.Email)
	assert.Empty(t, got.Details.Password)
	assert.NotContains(t, rr.Body.String(), "secret-hash")
}

func TestUserCreateHandlerSuccess(t *testing.T) {
	m := mockCollection("users")

	// no existing user with this email
	m.singleResultHelper.(*mocksdb.SingleResultHelper).
		On("Decode", mock.AnythingOfType("**models.User")).
		Return(errors.New("mongo: no documents in result"))
	m.conn.(*mocksdb.CollectionHelper).
		On("FindOne", mock.Anything, mock.Anything).
		Return(m.singleResultHelper)

	var inserted models.UserDetails
	m.insertResultHelper.(*mocksdb.InsertOneResultHelper).
		On("Decode").Return("mocked-id")
	m.conn.(*mocksdb.CollectionHelper).
		On("InsertOne", mock.Anything, mock.Anything).
		Return(m.insertResultHelper, nil).Run(func(args mock.Arguments) {
		// the database layer wraps the details under a "user" field
		doc := reflect.ValueOf(args.Get(1))
		inserted = doc.FieldByName("User").Interface().(models.UserDetails)
	})

	u := handlers.User{DB: databases.NewUserDatabase(m.db)}

	b, err := json.Marshal(map[string]string{"email": "Jo@Example.com", "password": "hunter22", "name": "Jo"})
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest("POST", "/api/v1/user/create-user", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserCreateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	// email lowercased, password stored as a bcrypt hash
	assert.Equal(t, "jo@example.com", inserted.Email)
	assert.NotEqual(t, "hunter22", inserted.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(inserted.Password), []byte("hunter22")))
}

func TestUserCreateHandlerMissingFields(t *testing.T) {
	m := mockCollection("users")
	u := handlers.User{DB: databases.NewUserDatabase(m.db)}

	b, err := json.Marshal(map[string]string{"email": "jo@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest("POST", "/api/v1/user/create-user", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserCreateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUserCreateHandlerDuplicateEmail(t *testing.T) {
	m := mockCollection("users")

	m.singleResultHelper.(*mocksdb.SingleResultHelper).
		On("Decode", mock.AnythingOfType("**models.User")).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).ID = "existing-user"
		(*arg).Details.Email = "jo@example.com"
	})
	m.conn.(*mocksdb.CollectionHelper).
		On("FindOne", mock.Anything, mock.Anything).
		Return(m.singleResultHelper)

	u := handlers.User{DB: databases.NewUserDatabase(m.db)}

	b, err := json.Marshal(map[string]string{"email": "jo@example.com", "password": "hunter22"})
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest("POST", "/api/v1/user/create-user", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserCreateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)

	expected, err := json.Marshal(models.ErrorMessageResponse{Response: models.MessageError{
		Message: "email already exists",
		Error:   "duplicate email",
	}})
	assert.NoError(t, err)
	assert.Equal(t, string(expected), rr.Body.String())
}

func TestUserCheckEmailHandlerAvailable(t *testing.T) {
	m := mockCollection("users")

	m.singleResultHelper.(*mocksdb.SingleResultHelper).
		On("Decode", mock.AnythingOfType("**models.User")).
		Return(errors.New("mongo: no documents in result"))
	m.conn.(*mocksdb.CollectionHelper).
		On("FindOne", mock.Anything, mock.Anything).
		Return(m.singleResultHelper)

	u := handlers.User{DB: databases.NewUserDatabase(m.db)}

	b, err := json.Marshal(map[string]string{"email": "new@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest("POST", "/api/v1/user/check-user", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserCheckEmailHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func mockLoginUser(t *testing.T, m collectionMocks, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	m.cursorHelper.(*mocksdb.CursorHelper).
		On("Decode", mock.AnythingOfType("*[]models.User")).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.User)
		*arg = []models.User{{
			ID: "user-1",
			Details: models.UserDetails{
				Email:    "jo@example.com",
				Name:     "Jo",
				Password: string(hash),
				Pro:      true,
			},
		}}
	})
	m.conn.(*mocksdb.CollectionHelper).
		On("Find", mock.Anything, mock.Anything).
		Return(m.cursorHelper, nil)
}

func TestUserLoginHandlerSuccess(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	m := mockCollection("users")
	mockLoginUser(t, m, "hunter22")

	u := handlers.User{DB: databases.NewUserDatabase(m.db)}

	req, err := http.NewRequest("POST", "/api/v1/user/login", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.SetBasicAuth("jo@example.com", "hunter22")

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserLoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Pro   bool   `json:"pro"`
		} `json:"user"`
	}
	err = json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, "jo@example.com", resp.User.Email)
	assert.True(t, resp.User.Pro)

	token, err := jwt.Parse(resp.Token, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	assert.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, "access", claims["typ"])
}

func TestUserLoginHandlerWrongPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	m := mockCollection("users")
	mockLoginUser(t, m, "hunter22")

	u := handlers.User{DB: databases.NewUserDatabase(m.db)}

	req, err := http.NewRequest("POST", "/api/v1/user/login", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.SetBasicAuth("jo@example.com", "wrong-password")

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserLoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUserLoginHandlerNoCredentials(t *testing.T) {
	m := mockCollection("users")
	u := handlers.User{DB: databases.NewUserDatabase(m.db)}

	req, err := http.NewRequest("POST", "/api/v1/user/login", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserLoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, `Basic realm="restricted", charset="UTF-8"`, rr.Header().Get("WWW-Authenticate"))
}

func TestUpdateUserByIDHandlerDropsPassword(t *testing.T) {
	m := mockCollection("users")

	var update interface{}
	m.conn.(*mocksdb.CollectionHelper).
		On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			update = args.Get(2)
		})

	u := handlers.User{DB: databases.NewUserDatabase(m.db)}

	b, err := json.Marshal(map[string]string{"name": "Jo Jr", "password": "sneaky"})
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest("PUT", "/api/v1/user/user-1", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-1"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UpdateUserByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	set := update.(bson.M)["$set"].(bson.M)
	assert.Equal(t, "Jo Jr", set["user.name"])
	assert.NotContains(t, set, "user.password")
	assert.Contains(t, set, "user.updatedAt")
}
