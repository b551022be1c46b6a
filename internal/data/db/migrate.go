package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/orgdesk-backend/internal/domain/audit"
	"github.com/yungbote/orgdesk-backend/internal/domain/org"
	"github.com/yungbote/orgdesk-backend/internal/domain/questionnaire"
	"github.com/yungbote/orgdesk-backend/internal/domain/user"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Identity
		&user.User{},

		// Tenancy
		&org.Organization{},
		&org.Member{},

		// Questionnaires
		&questionnaire.Session{},

		// Audit
		&audit.Log{},
	)
}

// EnsureIndexes adds the Postgres-only indexes struct tags cannot express.
// Other dialects are left alone.
func EnsureIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	stmts := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_audit_entity_version",
			sql:  `CREATE INDEX IF NOT EXISTS idx_audit_entity_version ON audit_log(entity_type, entity_id, version DESC);`,
		},
		{
			name: "idx_questionnaire_session_live",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_questionnaire_session_live
				ON questionnaire_session(id, version)
				WHERE deleted_at IS NULL;
			`,
		},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
