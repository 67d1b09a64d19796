package sqlite

import (
	"database/sql"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
)

// Manager implements the StorageManager interface
type Manager struct {
	db       *SQLiteDB
	category interfaces.CategoryStorage
	source   interfaces.SourceStorage
	article  interfaces.ArticleStorage
	digest   interfaces.DigestStorage
	setting  interfaces.SettingStorage
	jobRun   interfaces.JobRunStorage
	logger   arbor.ILogger
}

// NewManager creates a new SQLite storage manager
func NewManager(logger arbor.ILogger, config *common.DatabaseConfig) (interfaces.StorageManager, error) {
	db, err := NewSQLiteDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:       db,
		category: NewCategoryStorage(db, logger),
		source:   NewSourceStorage(db, logger),
		article:  NewArticleStorage(db, logger),
		digest:   NewDigestStorage(db, logger),
		setting:  NewSettingsStorage(db, logger),
		jobRun:   NewJobRunStorage(db, logger),
		logger:   logger,
	}, nil
}

// CategoryStorage returns the Category storage interface
func (m *Manager) CategoryStorage() interfaces.CategoryStorage {
	return m.category
}

// SourceStorage returns the Source storage interface
func (m *Manager) SourceStorage() interfaces.SourceStorage {
	return m.source
}

// ArticleStorage returns the Article storage interface
func (m *Manager) ArticleStorage() interfaces.ArticleStorage {
	return m.article
}

// DigestStorage returns the Digest storage interface
func (m *Manager) DigestStorage() interfaces.DigestStorage {
	return m.digest
}

// SettingStorage returns the Setting storage interface
func (m *Manager) SettingStorage() interfaces.SettingStorage {
	return m.setting
}

// JobRunStorage returns the JobRun storage interface
func (m *Manager) JobRunStorage() interfaces.JobRunStorage {
	return m.jobRun
}

// DB returns the underlying database connection
func (m *Manager) DB() *sql.DB {
	if m.db != nil {
		return m.db.DB()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
