package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-noticast/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db     *bun.DB
	policy core.MatchPolicy

	directoryStore   *DirectoryStore
	errorReportStore *ErrorReportStore
	ledgerStore      *DispatchLedgerStore
}

func NewRepositoryFactory(policy core.MatchPolicy) *RepositoryFactory {
	return &RepositoryFactory{policy: policy}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, policy core.MatchPolicy) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(policy)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, policy core.MatchPolicy) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(policy)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB.
func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.directoryStore != nil && f.errorReportStore != nil && f.ledgerStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) DirectoryStore() *DirectoryStore {
	if f == nil {
		return nil
	}
	return f.directoryStore
}

func (f *RepositoryFactory) ErrorReportStore() *ErrorReportStore {
	if f == nil {
		return nil
	}
	return f.errorReportStore
}

func (f *RepositoryFactory) LedgerStore() *DispatchLedgerStore {
	if f == nil {
		return nil
	}
	return f.ledgerStore
}

func (f *RepositoryFactory) initStores() error {
	directory, err := NewDirectoryStore(f.db, f.policy)
	if err != nil {
		return err
	}
	reports, err := NewErrorReportStore(f.db)
	if err != nil {
		return err
	}
	ledger, err := NewDispatchLedgerStore(f.db)
	if err != nil {
		return err
	}
	f.directoryStore = directory
	f.errorReportStore = reports
	f.ledgerStore = ledger
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: bun db is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
