package app

import (
	"fmt"

	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/keel/internal/hierarchy/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/keel/internal/shared/application"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/keel/pkg/config"
	"github.com/google/uuid"
)

// RepositoryFactory creates repositories for a database connection. The
// SQL repositories serve both drivers; the factory rejects anything else.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
}

// NewRepositoryFactory creates a new repository factory.
func NewRepositoryFactory(conn database.Connection) *RepositoryFactory {
	return &RepositoryFactory{
		conn:   conn,
		driver: conn.Driver(),
	}
}

// Driver returns the database driver the factory was built for.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}

// HierarchyRepository creates the milestone tree repository.
func (f *RepositoryFactory) HierarchyRepository() (domain.Repository, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return persistence.NewSQLHierarchyRepository(f.conn), nil
}

// ContributionRepository creates the KPI contribution ledger.
func (f *RepositoryFactory) ContributionRepository() (domain.ContributionRepository, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return persistence.NewSQLContributionRepository(f.conn), nil
}

// OutboxRepository creates the transactional outbox.
func (f *RepositoryFactory) OutboxRepository() (outbox.Repository, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return outbox.NewSQLRepository(f.conn), nil
}

// UnitOfWork creates a unit of work whose transaction the repositories join.
func (f *RepositoryFactory) UnitOfWork() sharedApplication.UnitOfWork {
	return database.NewUnitOfWork(f.conn)
}

func (f *RepositoryFactory) check() error {
	if !f.driver.IsValid() {
		return fmt.Errorf("unsupported driver: %s", f.driver)
	}
	return nil
}

// SessionFromConfig builds the identity used by the CLI and MCP server from
// KEEL_USER_ID and KEEL_USER_ROLE.
func SessionFromConfig(cfg *config.Config) (sharedApplication.Session, error) {
	userID, err := uuid.Parse(cfg.UserID)
	if err != nil {
		return sharedApplication.Session{}, fmt.Errorf("invalid KEEL_USER_ID %q: %w", cfg.UserID, err)
	}
	return sharedApplication.NewSession(userID, cfg.UserRole)
}
