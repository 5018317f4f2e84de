package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/anpetrov/filegate/internal/common"
	"github.com/anpetrov/filegate/internal/dbx"
	"github.com/anpetrov/filegate/internal/server/auth"
	"github.com/anpetrov/filegate/internal/server/models"
	filesrepo "github.com/anpetrov/filegate/internal/server/repositories/files"
	serversrepo "github.com/anpetrov/filegate/internal/server/repositories/servers"
	tokensrepo "github.com/anpetrov/filegate/internal/server/repositories/tokens"
	usersrepo "github.com/anpetrov/filegate/internal/server/repositories/users"
)

// --- fakes shared by the service tests in this package ---

type fakeServersRepo struct {
	createOut *models.Server
	createErr error

	getByIDOut *models.Server
	getByIDErr error

	getByNameOut *models.Server
	getByNameErr error

	updateOut *models.Server
	updateErr error

	touchErr    error
	touchCalled bool
}

func (f *fakeServersRepo) Create(ctx context.Context, s *models.Server) (*models.Server, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeServersRepo) GetByID(ctx context.Context, id int64) (*models.Server, error) {
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	return f.getByIDOut, nil
}

func (f *fakeServersRepo) GetByName(ctx context.Context, name string) (*models.Server, error) {
	if f.getByNameErr != nil {
		return nil, f.getByNameErr
	}
	return f.getByNameOut, nil
}

func (f *fakeServersRepo) List(ctx context.Context) ([]*models.Server, error) {
	return nil, nil
}

func (f *fakeServersRepo) Update(ctx context.Context, id int64, u *models.Server, rev string) (*models.Server, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updateOut != nil {
		return f.updateOut, nil
	}
	return u, nil
}

func (f *fakeServersRepo) Delete(ctx context.Context, id int64) error { return nil }

func (f *fakeServersRepo) TouchLastConnection(ctx context.Context, id int64) error {
	f.touchCalled = true
	return f.touchErr
}

type fakeRepoManager struct {
	s  *fakeServersRepo
	u  *fakeUsersRepo
	f  *fakeFilesRepo
	st *fakeTokensRepo
	ut *fakeTokensRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeRepoManager) Servers(db dbx.DBTX) serversrepo.Repository { return m.s }

func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository { return m.u }

func (m *fakeRepoManager) Files(db dbx.DBTX) filesrepo.Repository { return m.f }

func (m *fakeRepoManager) ServerTokens(db dbx.DBTX) tokensrepo.Repository { return m.st }

func (m *fakeRepoManager) UserTokens(db dbx.DBTX) tokensrepo.Repository { return m.ut }

// newTxDB backs a service with a mocked *sql.DB for paths that open a
// transaction around the repository call.
func newTxDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func newServerService(db *sql.DB, rm *fakeRepoManager) (*ServerService, *fakeTokensRepo) {
	tr := rm.st
	if tr == nil {
		tr = &fakeTokensRepo{}
	}
	signer := auth.NewSigner([]byte("test-secret"))
	tokens := NewTokenService(tr, signer, auth.ServerProjection, newTestLogger())
	return NewServerService(db, rm, tokens, newTestLogger()), tr
}

func TestServerRegister_DigestsPassword(t *testing.T) {
	db, mock := newTxDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeServersRepo{createOut: &models.Server{ID: 42, Name: "app-1"}}
	s, _ := newServerService(db, &fakeRepoManager{s: repo})

	got, err := s.Register(context.Background(), "app-1", "plaintext")
	if err != nil || got.ID != 42 {
		t.Fatalf("Register: got (%v, %v)", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServerRegister_CreateErr(t *testing.T) {
	db, mock := newTxDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	s, _ := newServerService(db, &fakeRepoManager{s: &fakeServersRepo{createErr: errBoom{}}})

	_, err := s.Register(context.Background(), "app-1", "p")
	if err == nil || !regexp.MustCompile(`error creating server: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped create error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServerAuthenticate_Flows(t *testing.T) {
	digest, err := hashPassword("right")
	if err != nil {
		t.Fatalf("hashPassword error: %v", err)
	}

	// unknown name → unauthorized
	sNF, _ := newServerService(nil, &fakeRepoManager{s: &fakeServersRepo{getByNameErr: common.ErrorNotFound}})
	if _, err := sNF.Authenticate(context.Background(), "ghost", "x"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("notfound: want ErrorUnauthorized, got %v", err)
	}

	// repo failure propagates
	sIE, _ := newServerService(nil, &fakeRepoManager{s: &fakeServersRepo{getByNameErr: errBoom{}}})
	if _, err := sIE.Authenticate(context.Background(), "app-1", "x"); !errors.Is(err, errBoom{}) {
		t.Fatalf("repo error: got %v", err)
	}

	// wrong password → unauthorized
	sWP, _ := newServerService(nil, &fakeRepoManager{s: &fakeServersRepo{
		getByNameOut: &models.Server{ID: 1, Name: "app-1", Password: digest},
	}})
	if _, err := sWP.Authenticate(context.Background(), "app-1", "wrong"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("wrong password: want ErrorUnauthorized, got %v", err)
	}

	// success mints a token and records the connection
	repoOK := &fakeServersRepo{getByNameOut: &models.Server{ID: 1, Name: "app-1", Password: digest}}
	sOK, tr := newServerService(nil, &fakeRepoManager{s: repoOK})
	signed, err := sOK.Authenticate(context.Background(), "app-1", "right")
	if err != nil || signed.Token == "" {
		t.Fatalf("success: token=%+v err=%v", signed, err)
	}
	if !repoOK.touchCalled {
		t.Fatalf("last_connection was not touched")
	}
	if tr.upserts != 1 {
		t.Fatalf("want 1 token upsert, got %d", tr.upserts)
	}
}

func TestServerRetrieveToken_ServerMissing(t *testing.T) {
	s, _ := newServerService(nil, &fakeRepoManager{s: &fakeServersRepo{getByIDErr: common.ErrorNotFound}})

	_, err := s.RetrieveToken(context.Background(), 99)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestServerUpdate_RedigestsPassword(t *testing.T) {
	repo := &fakeServersRepo{}
	s, _ := newServerService(nil, &fakeRepoManager{s: repo})

	got, err := s.Update(context.Background(), 1, &models.Server{Name: "app-1", Password: "newpass"}, "rev")
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.Password == "newpass" {
		t.Fatalf("password must be digested before persisting")
	}
	if !checkPassword(got.Password, "newpass") {
		t.Fatalf("digest does not verify")
	}
}
