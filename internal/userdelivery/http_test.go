package userdelivery

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/userservice"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/passpkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

var testMaker tokenpkg.Maker

func TestMain(m *testing.M) {
	var err error

	testMaker, err = tokenpkg.NewPasetoMaker(randompkg.String(32))
	if err != nil {
		panic(err)
	}

	gin.SetMode(gin.ReleaseMode)
	os.Exit(m.Run())
}

func randomUser(t *testing.T) (domain.User, string) {
	password := randompkg.String(10)

	hashedPassword, err := passpkg.Hash(password)
	require.NoError(t, err)

	user := domain.User{
		Username:       randompkg.Owner(),
		HashedPassword: hashedPassword,
		FullName:       randompkg.Owner(),
		Email:          randompkg.Email(),
		Role:           domain.RoleUser,
	}

	return user, password
}

// requireToken checks that the response carries a token issued for user.
func requireToken(t *testing.T, recorder *httptest.ResponseRecorder, user domain.User) {
	t.Helper()

	var got userData
	res := web.Response{Data: &got}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&res))

	require.Equal(t, user.Username, got.User.Username)
	require.Equal(t, user.Email, got.User.Email)
	require.NotNil(t, res.AccessTokenExpiresAt)

	payload, err := testMaker.VerifyToken(res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.Username, payload.Username)
	require.Equal(t, user.Role, payload.Role)
}

func TestCreateAPI(t *testing.T) {
	testUser, password := randomUser(t)

	valid := gin.H{
		"username": testUser.Username,
		"password": password,
		"fullname": testUser.FullName,
		"email":    testUser.Email,
	}

	with := func(key, value string) gin.H {
		body := gin.H{}
		for k, v := range valid {
			body[k] = v
		}

		body[key] = value

		return body
	}

	testCases := []struct {
		name          string
		requestBody   gin.H
		buildStubs    func(userService *MockService)
		checkResponse func(t *testing.T, recorder *httptest.ResponseRecorder)
	}{
		{
			name:        "InvalidUsername",
			requestBody: with("username", "user&%"),
			buildStubs: func(userService *MockService) {
				userService.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name:        "ShortPassword",
			requestBody: with("password", "xyz"),
			buildStubs: func(userService *MockService) {
				userService.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name:        "LongPassword",
			requestBody: with("password", strings.Repeat("p", passpkg.MaxLength+1)),
			buildStubs: func(userService *MockService) {
				userService.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
				require.Contains(t, recorder.Body.String(), "Password must be at most 72")
			},
		},
		{
			name:        "InvalidEmail",
			requestBody: with("email", "user%email.com"),
			buildStubs: func(userService *MockService) {
				userService.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name:        "UniqueViolationUsername",
			requestBody: valid,
			buildStubs: func(userService *MockService) {
				userService.EXPECT().
					Create(gomock.Any(),
						gomock.Eq(testUser.Username),
						gomock.Eq(password),
						gomock.Eq(testUser.FullName),
						gomock.Eq(testUser.Email)).
					Times(1).
					Return(domain.UserWithoutPassword{}, domain.ErrUsernameAlreadyExists)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusConflict, recorder.Code)
			},
		},
		{
			name:        "UniqueViolationEmail",
			requestBody: valid,
			buildStubs: func(userService *MockService) {
				userService.EXPECT().
					Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.UserWithoutPassword{}, domain.ErrEmailAlreadyExists)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusConflict, recorder.Code)
			},
		},
		{
			name:        "CreateInternalError",
			requestBody: valid,
			buildStubs: func(userService *MockService) {
				userService.EXPECT().
					Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.UserWithoutPassword{}, errorspkg.ErrInternal)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusInternalServerError, recorder.Code)
			},
		},
		{
			name:        "OK",
			requestBody: valid,
			buildStubs: func(userService *MockService) {
				userService.EXPECT().
					Create(gomock.Any(),
						gomock.Eq(testUser.Username),
						gomock.Eq(password),
						gomock.Eq(testUser.FullName),
						gomock.Eq(testUser.Email)).
					Times(1).
					Return(userservice.NewUserWithoutPassword(testUser), nil)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusCreated, recorder.Code)
				requireToken(t, recorder, testUser)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			userService := NewMockService(ctrl)
			userHandler := NewHandler(userService, testMaker, time.Minute)

			server := gin.New()
			url := "/users"
			server.POST(url, userHandler.Create)

			tc.buildStubs(userService)

			body, err := json.Marshal(tc.requestBody)
			require.NoError(t, err)

			req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
			require.NoError(t, err)

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)

			tc.checkResponse(t, recorder)
		})
	}
}

func TestLoginAPI(t *testing.T) {
	testUser, password := randomUser(t)

	testCases := []struct {
		name          string
		requestBody   gin.H
		buildStubs    func(userService *MockService)
		checkResponse func(t *testing.T, recorder *httptest.ResponseRecorder)
	}{
		{
			name:        "InvalidUsernameRequest",
			requestBody: gin.H{"username": "invalid-%user#1", "password": password},
			buildStubs: func(userService *MockService) {
				userService.EXPECT().CheckPassword(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name:        "ShortPasswordRequest",
			requestBody: gin.H{"username": testUser.Username, "password": "xyz"},
			buildStubs: func(userService *MockService) {
				userService.EXPECT().CheckPassword(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name:        "UserNotFound",
			requestBody: gin.H{"username": "NotFound", "password": password},
			buildStubs: func(userService *MockService) {
				userService.EXPECT().
					CheckPassword(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.UserWithoutPassword{}, domain.ErrUserNotFound)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusNotFound, recorder.Code)
			},
		},
		{
			name:        "IncorrectPassword",
			requestBody: gin.H{"username": testUser.Username, "password": "incorrect"},
			buildStubs: func(userService *MockService) {
				userService.EXPECT().
					CheckPassword(gomock.Any(), gomock.Eq(testUser.Username), gomock.Eq("incorrect")).
					Times(1).
					Return(domain.UserWithoutPassword{}, domain.ErrWrongPassword)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusUnauthorized, recorder.Code)
			},
		},
		{
			name:        "CheckPasswordInternalError",
			requestBody: gin.H{"username": testUser.Username, "password": password},
			buildStubs: func(userService *MockService) {
				userService.EXPECT().
					CheckPassword(gomock.Any(), gomock.Eq(testUser.Username), gomock.Eq(password)).
					Times(1).
					Return(domain.UserWithoutPassword{}, errorspkg.ErrInternal)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusInternalServerError, recorder.Code)
			},
		},
		{
			name:        "OK",
			requestBody: gin.H{"username": testUser.Username, "password": password},
			buildStubs: func(userService *MockService) {
				userService.EXPECT().
					CheckPassword(gomock.Any(), gomock.Eq(testUser.Username), gomock.Eq(password)).
					Times(1).
					Return(userservice.NewUserWithoutPassword(testUser), nil)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, recorder.Code)
				requireToken(t, recorder, testUser)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			userService := NewMockService(ctrl)
			userHandler := NewHandler(userService, testMaker, time.Minute)

			server := gin.New()
			url := "/users/login"
			server.POST(url, userHandler.Login)

			tc.buildStubs(userService)

			data, err := json.Marshal(tc.requestBody)
			require.NoError(t, err)

			request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
			require.NoError(t, err)

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, request)

			tc.checkResponse(t, recorder)
		})
	}
}
