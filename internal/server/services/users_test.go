package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/anpetrov/filegate/internal/common"
	"github.com/anpetrov/filegate/internal/server/auth"
	"github.com/anpetrov/filegate/internal/server/models"
)

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	getByIDOut *models.User
	getByIDErr error

	getByNameOut *models.User
	getByNameErr error

	touchErr error

	updatedWith *models.User
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	return f.getByIDOut, nil
}

func (f *fakeUsersRepo) GetByName(ctx context.Context, name string) (*models.User, error) {
	if f.getByNameErr != nil {
		return nil, f.getByNameErr
	}
	return f.getByNameOut, nil
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) { return nil, nil }

func (f *fakeUsersRepo) Update(ctx context.Context, id int64, u *models.User, rev string) (*models.User, error) {
	f.updatedWith = u
	return u, nil
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id int64) error { return nil }

func (f *fakeUsersRepo) TouchLastConnection(ctx context.Context, id int64) error {
	return f.touchErr
}

func newUserService(db *sql.DB, rm *fakeRepoManager) (*UserService, *auth.Signer) {
	if rm.ut == nil {
		rm.ut = &fakeTokensRepo{}
	}
	signer := auth.NewSigner([]byte("test-secret"))
	adminTokens := NewTokenService(rm.ut, signer, auth.AdminProjection, newTestLogger())
	userTokens := NewTokenService(rm.ut, signer, auth.UserProjection, newTestLogger())
	return NewUserService(db, rm, adminTokens, userTokens, newTestLogger()), signer
}

func TestUserAuthenticate_KindFollowsRole(t *testing.T) {
	digest, err := hashPassword("pw")
	if err != nil {
		t.Fatalf("hashPassword error: %v", err)
	}

	cases := []struct {
		name     string
		isAdmin  bool
		wantKind auth.OwnerKind
	}{
		{"admin", true, auth.OwnerAdmin},
		{"application user", false, auth.OwnerUser},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rm := &fakeRepoManager{u: &fakeUsersRepo{
				getByNameOut: &models.User{ID: 5, Name: "alice", Password: digest, IsAdmin: tc.isAdmin},
			}}
			s, signer := newUserService(nil, rm)

			signed, err := s.Authenticate(context.Background(), "alice", "pw")
			if err != nil {
				t.Fatalf("Authenticate error: %v", err)
			}
			claims, err := signer.Decode(signed.Token)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if claims.Data.Kind != tc.wantKind {
				t.Fatalf("want kind %q, got %q", tc.wantKind, claims.Data.Kind)
			}
		})
	}
}

func TestUserAuthenticate_Unauthorized(t *testing.T) {
	digest, err := hashPassword("pw")
	if err != nil {
		t.Fatalf("hashPassword error: %v", err)
	}

	sNF, _ := newUserService(nil, &fakeRepoManager{u: &fakeUsersRepo{getByNameErr: common.ErrorNotFound}})
	if _, err := sNF.Authenticate(context.Background(), "ghost", "pw"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("notfound: want ErrorUnauthorized, got %v", err)
	}

	sWP, _ := newUserService(nil, &fakeRepoManager{u: &fakeUsersRepo{
		getByNameOut: &models.User{ID: 5, Name: "alice", Password: digest},
	}})
	if _, err := sWP.Authenticate(context.Background(), "alice", "wrong"); !errors.Is(err, common.ErrorUnauthorized) {
		t.Fatalf("wrong password: want ErrorUnauthorized, got %v", err)
	}
}

func TestUserRegister_KeepsRole(t *testing.T) {
	db, mock := newTxDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeUsersRepo{createOut: &models.User{ID: 9, Name: "root", IsAdmin: true}}
	s, _ := newUserService(db, &fakeRepoManager{u: repo})

	got, err := s.Register(context.Background(), "root", "pw", true)
	if err != nil || !got.IsAdmin {
		t.Fatalf("Register: got (%+v, %v)", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserUpdate_RedigestsPassword(t *testing.T) {
	repo := &fakeUsersRepo{getByIDOut: &models.User{ID: 5, Name: "alice"}}
	s, _ := newUserService(nil, &fakeRepoManager{u: repo})

	got, err := s.Update(context.Background(), 5, UserUpdate{Name: "alice", Password: "newpass"}, "rev")
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.Password == "newpass" || !checkPassword(got.Password, "newpass") {
		t.Fatalf("password must be digested before persisting")
	}
}

// An update body that says nothing about the admin flag must not change it.
func TestUserUpdate_OmittedAdminFlagKeepsRole(t *testing.T) {
	repo := &fakeUsersRepo{getByIDOut: &models.User{ID: 9, Name: "root", IsAdmin: true}}
	s, _ := newUserService(nil, &fakeRepoManager{u: repo})

	got, err := s.Update(context.Background(), 9, UserUpdate{Name: "root2"}, "rev")
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if !got.IsAdmin {
		t.Fatalf("omitted admin flag must keep the current role")
	}
	if repo.updatedWith == nil || !repo.updatedWith.IsAdmin {
		t.Fatalf("repo received a demotion: %+v", repo.updatedWith)
	}
}

func TestUserUpdate_ExplicitDemotion(t *testing.T) {
	repo := &fakeUsersRepo{}
	s, _ := newUserService(nil, &fakeRepoManager{u: repo})

	demote := false
	got, err := s.Update(context.Background(), 9, UserUpdate{Name: "root", IsAdmin: &demote}, "rev")
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.IsAdmin {
		t.Fatalf("explicit demotion must clear the flag")
	}
}
