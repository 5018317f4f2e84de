package repomanager

import (
	"context"
	"database/sql"

	"github.com/anpetrov/filegate/internal/dbx"
	"github.com/anpetrov/filegate/internal/server/repositories/files"
	"github.com/anpetrov/filegate/internal/server/repositories/servers"
	"github.com/anpetrov/filegate/internal/server/repositories/tokens"
	"github.com/anpetrov/filegate/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// the same repository code against either the pool or an open transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Servers(db dbx.DBTX) servers.Repository
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	ServerTokens(db dbx.DBTX) tokens.Repository
	UserTokens(db dbx.DBTX) tokens.Repository
}
