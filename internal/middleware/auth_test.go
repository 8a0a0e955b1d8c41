package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

func TestAuthMiddleware(t *testing.T) {
	pasetoMaker, err := tokenpkg.NewPasetoMaker(randompkg.String(32))
	require.NoError(t, err)

	jwtMaker, err := tokenpkg.NewJWTMaker(randompkg.String(32))
	require.NoError(t, err)

	testCases := []struct {
		name           string
		maker          tokenpkg.Maker
		requireRole    string
		setupAuth      func(t *testing.T, r *http.Request, maker tokenpkg.Maker) error
		wantStatusCode int
		wantError      string
		wantViewer     domain.Viewer
	}{
		{
			name:  "NoAuthorization",
			maker: pasetoMaker,
			setupAuth: func(t *testing.T, r *http.Request, maker tokenpkg.Maker) error {
				return nil
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      ErrAuthHeaderNotFound.Error(),
		},
		{
			name:  "MissingToken",
			maker: pasetoMaker,
			setupAuth: func(t *testing.T, r *http.Request, maker tokenpkg.Maker) error {
				r.Header.Set(AuthHeaderKey, AuthTypeBearer)
				return nil
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      ErrBadAuthHeaderFormat.Error(),
		},
		{
			name:  "BasicAuth",
			maker: pasetoMaker,
			setupAuth: func(t *testing.T, r *http.Request, maker tokenpkg.Maker) error {
				return AddAuthorizationWithRole(r, maker, "basic", "alice", domain.RoleUser, time.Minute)
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      ErrUnsupportedAuthType.Error(),
		},
		{
			name:  "ExpiredToken",
			maker: jwtMaker,
			setupAuth: func(t *testing.T, r *http.Request, maker tokenpkg.Maker) error {
				return AddAuthorizationWithRole(r, maker, AuthTypeBearer, "alice", domain.RoleUser, -time.Minute)
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      tokenpkg.ErrExpiredToken.Error(),
		},
		{
			name:  "TokenFromAnotherKey",
			maker: pasetoMaker,
			setupAuth: func(t *testing.T, r *http.Request, maker tokenpkg.Maker) error {
				other, err := tokenpkg.NewPasetoMaker(randompkg.String(32))
				require.NoError(t, err)

				return AddAuthorizationWithRole(r, other, AuthTypeBearer, "alice", domain.RoleAdmin, time.Minute)
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      tokenpkg.ErrInvalidToken.Error(),
		},
		{
			name:  "UserPaseto",
			maker: pasetoMaker,
			setupAuth: func(t *testing.T, r *http.Request, maker tokenpkg.Maker) error {
				return AddAuthorization(r, maker, AuthTypeBearer, "alice", time.Minute)
			},
			wantStatusCode: http.StatusOK,
			wantViewer:     domain.Viewer{Username: "alice", Role: domain.RoleUser},
		},
		{
			name:  "AdminJWT",
			maker: jwtMaker,
			setupAuth: func(t *testing.T, r *http.Request, maker tokenpkg.Maker) error {
				return AddAuthorizationWithRole(r, maker, "Bearer", "carol", domain.RoleAdmin, time.Minute)
			},
			wantStatusCode: http.StatusOK,
			wantViewer:     domain.Viewer{Username: "carol", Role: domain.RoleAdmin},
		},
		{
			name:        "AdminRouteAsAdmin",
			maker:       pasetoMaker,
			requireRole: domain.RoleAdmin,
			setupAuth: func(t *testing.T, r *http.Request, maker tokenpkg.Maker) error {
				return AddAuthorizationWithRole(r, maker, AuthTypeBearer, "carol", domain.RoleAdmin, time.Minute)
			},
			wantStatusCode: http.StatusOK,
			wantViewer:     domain.Viewer{Username: "carol", Role: domain.RoleAdmin},
		},
		{
			name:        "AdminRouteAsUser",
			maker:       jwtMaker,
			requireRole: domain.RoleAdmin,
			setupAuth: func(t *testing.T, r *http.Request, maker tokenpkg.Maker) error {
				return AddAuthorizationWithRole(r, maker, AuthTypeBearer, "alice", domain.RoleUser, time.Minute)
			},
			wantStatusCode: http.StatusForbidden,
			wantError:      ErrForbidden.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handlers := []gin.HandlerFunc{AuthMiddleware(tc.maker)}
			if tc.requireRole != "" {
				handlers = append(handlers, RequireRole(tc.requireRole))
			}

			var got domain.Viewer

			handlers = append(handlers, func(gctx *gin.Context) {
				got = Viewer(gctx)
				gctx.JSON(http.StatusOK, web.Response{})
			})

			gin.SetMode(gin.ReleaseMode)
			server := gin.New()
			server.GET("/auth", handlers...)

			request := httptest.NewRequest(http.MethodGet, "/auth", nil)
			require.NoError(t, tc.setupAuth(t, request, tc.maker))

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, request)

			require.Equal(t, tc.wantStatusCode, recorder.Code)
			require.Equal(t, tc.wantViewer, got)

			if tc.wantError != "" {
				require.Contains(t, recorder.Body.String(), tc.wantError)
			}
		})
	}
}
