package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anpetrov/filegate/internal/common"
	"github.com/anpetrov/filegate/internal/dbx"
	"github.com/anpetrov/filegate/internal/server/auth"
	"github.com/anpetrov/filegate/internal/server/models"
	filesrepo "github.com/anpetrov/filegate/internal/server/repositories/files"
	serversrepo "github.com/anpetrov/filegate/internal/server/repositories/servers"
	tokensrepo "github.com/anpetrov/filegate/internal/server/repositories/tokens"
	usersrepo "github.com/anpetrov/filegate/internal/server/repositories/users"
	"github.com/anpetrov/filegate/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubServersRepo struct {
	byID      map[int64]*models.Server
	byName    map[string]*models.Server
	updateErr error
}

func (r *stubServersRepo) Create(ctx context.Context, s *models.Server) (*models.Server, error) {
	out := *s
	out.ID = int64(len(r.byID) + 1)
	return &out, nil
}

func (r *stubServersRepo) GetByID(ctx context.Context, id int64) (*models.Server, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return s, nil
}

func (r *stubServersRepo) GetByName(ctx context.Context, name string) (*models.Server, error) {
	s, ok := r.byName[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return s, nil
}

func (r *stubServersRepo) List(ctx context.Context) ([]*models.Server, error) { return nil, nil }

func (r *stubServersRepo) Update(ctx context.Context, id int64, u *models.Server, rev string) (*models.Server, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	return u, nil
}

func (r *stubServersRepo) Delete(ctx context.Context, id int64) error { return nil }

func (r *stubServersRepo) TouchLastConnection(ctx context.Context, id int64) error { return nil }

type stubTokensRepo struct {
	record *models.TokenRecord
}

func (r *stubTokensRepo) FindByOwner(ctx context.Context, ownerID int64) (*models.TokenRecord, error) {
	if r.record == nil || r.record.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}
	return r.record, nil
}

func (r *stubTokensRepo) UpsertByOwner(ctx context.Context, ownerID int64, token string) (*models.TokenRecord, error) {
	r.record = &models.TokenRecord{ID: 1, OwnerID: ownerID, Token: token}
	return r.record, nil
}

type stubRepoManager struct {
	servers *stubServersRepo
	tokens  *stubTokensRepo
}

func (m *stubRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *stubRepoManager) Servers(db dbx.DBTX) serversrepo.Repository { return m.servers }

func (m *stubRepoManager) Users(db dbx.DBTX) usersrepo.Repository { return nil }

func (m *stubRepoManager) Files(db dbx.DBTX) filesrepo.Repository { return nil }

func (m *stubRepoManager) ServerTokens(db dbx.DBTX) tokensrepo.Repository { return m.tokens }

func (m *stubRepoManager) UserTokens(db dbx.DBTX) tokensrepo.Repository { return m.tokens }

func newRoutedServer(t *testing.T, repo *stubServersRepo) (*Server, http.Handler, *auth.Signer) {
	t.Helper()

	signer := auth.NewSigner([]byte("test-secret"))
	logger := newTestLogger()
	rm := &stubRepoManager{servers: repo, tokens: &stubTokensRepo{}}

	tokens := services.NewTokenService(rm.tokens, signer, auth.ServerProjection, logger)
	serverSvc := services.NewServerService(nil, rm, tokens, logger)

	s := NewServer(":0", time.Second, logger, signer, serverSvc, nil, nil)
	return s, s.routes(), signer
}

func adminHeader(t *testing.T, signer *auth.Signer) string {
	t.Helper()
	signed, err := signer.Sign(auth.AdminProjection.Identity(1, "root"), time.Hour)
	require.NoError(t, err)
	return "Bearer " + signed.Token
}

func TestServerLoginRoute(t *testing.T) {
	digest, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.DefaultCost)
	require.NoError(t, err)

	repo := &stubServersRepo{
		byID:   map[int64]*models.Server{1: {ID: 1, Name: "app-1", Password: string(digest)}},
		byName: map[string]*models.Server{"app-1": {ID: 1, Name: "app-1", Password: string(digest)}},
	}
	_, router, _ := newRoutedServer(t, repo)

	t.Run("success returns token pair", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/servers/login",
			strings.NewReader(`{"name":"app-1","password":"right"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp auth.SignedToken
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Greater(t, resp.ExpiresAt, time.Now().Unix())
	})

	t.Run("bad password", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/servers/login",
			strings.NewReader(`{"name":"app-1","password":"wrong"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/servers/login", strings.NewReader(`{`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServerRoutes_RequireAdminToken(t *testing.T) {
	repo := &stubServersRepo{byID: map[int64]*models.Server{}, byName: map[string]*models.Server{}}
	_, router, signer := newRoutedServer(t, repo)

	t.Run("no token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/servers/1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("server token is not an admin token", func(t *testing.T) {
		signed, err := signer.Sign(auth.ServerProjection.Identity(1, "app-1"), time.Hour)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/servers/1", nil)
		r.Header.Set("Authorization", "Bearer "+signed.Token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestServerGetRoute(t *testing.T) {
	repo := &stubServersRepo{
		byID:   map[int64]*models.Server{1: {ID: 1, Name: "app-1", Rev: "abc"}},
		byName: map[string]*models.Server{},
	}
	_, router, signer := newRoutedServer(t, repo)

	t.Run("found echoes rev", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/servers/1", nil)
		r.Header.Set("Authorization", adminHeader(t, signer))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"_rev":"abc"`)
	})

	t.Run("missing row", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/servers/99", nil)
		r.Header.Set("Authorization", adminHeader(t, signer))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/servers/abc", nil)
		r.Header.Set("Authorization", adminHeader(t, signer))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestServerUpdateRoute_StaleRevConflicts(t *testing.T) {
	repo := &stubServersRepo{
		byID:      map[int64]*models.Server{1: {ID: 1, Name: "app-1", Rev: "current"}},
		byName:    map[string]*models.Server{},
		updateErr: common.ErrIntegrityConflict,
	}
	_, router, signer := newRoutedServer(t, repo)

	r := httptest.NewRequest(http.MethodPut, "/api/servers/1",
		strings.NewReader(`{"name":"renamed","_rev":"stale"}`))
	r.Header.Set("Authorization", adminHeader(t, signer))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "integrity_conflict")
}
