package aggregates

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/orgdesk-backend/internal/domain/aggregates"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want domainagg.ErrorCode
	}{
		{"validation", ValidationError("bad input"), domainagg.CodeValidation},
		{"conflict", ConflictError("stale"), domainagg.CodeConflict},
		{"not found", gorm.ErrRecordNotFound, domainagg.CodeNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, domainagg.CodeConflict},
		{"serialization", &pgconn.PgError{Code: "40001"}, domainagg.CodeRetryable},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, domainagg.CodeDatabase},
		{"sqlite busy", errors.New("database is locked"), domainagg.CodeRetryable},
		{"unknown", errors.New("connection reset by peer"), domainagg.CodeDatabase},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MapError("op", tc.in)
			if !domainagg.IsCode(got, tc.want) {
				t.Fatalf("code: want=%s got=%s (%v)", tc.want, domainagg.CodeOf(got), got)
			}
		})
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeForbidden, "op", "nope", errors.New("boom"))
	if out := MapError("other", in); out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
	if MapError("op", nil) != nil {
		t.Fatalf("nil: want nil")
	}
}
