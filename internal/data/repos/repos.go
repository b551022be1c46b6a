package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/orgdesk-backend/internal/data/repos/audit"
	"github.com/yungbote/orgdesk-backend/internal/data/repos/org"
	"github.com/yungbote/orgdesk-backend/internal/data/repos/questionnaire"
	"github.com/yungbote/orgdesk-backend/internal/data/repos/user"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo
type MemberRepo = org.MemberRepo
type SessionRepo = questionnaire.SessionRepo
type AuditLogRepo = audit.LogRepo

type SessionAnswersUpdate = questionnaire.AnswersUpdate
type AuditEntityVersion = audit.EntityVersion

// Set is every table repo the app wires.
type Set struct {
	Users    UserRepo
	Members  MemberRepo
	Sessions SessionRepo
	Audit    AuditLogRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Users:    user.NewUserRepo(db, log),
		Members:  org.NewMemberRepo(db, log),
		Sessions: questionnaire.NewSessionRepo(db, log),
		Audit:    audit.NewLogRepo(db, log),
	}
}
