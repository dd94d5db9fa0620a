package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/meridianfm/meridian/internal/domain"
)

// newMockCatalog wires a sqlx.DB backed by go-sqlmock's driver onto a Store
// with only the catalog handle populated, enough to exercise catalog.go's
// SQL without a live Postgres connection.
func newMockCatalog(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{catalog: sqlx.NewDb(db, "sqlmock")}, mock
}

func TestGetVoice(t *testing.T) {
	s, mock := newMockCatalog(t)
	id := uuid.New()

	cols := []string{"id", "name", "model_id", "language", "locale", "gender", "quality_tier", "available"}
	mock.ExpectQuery(`SELECT id, name, model_id, language, locale, gender, quality_tier, available FROM voices WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(id, "DJ Nova", "model-1", "en", "en-US", "female", "studio", true))

	got, err := s.GetVoice(context.Background(), id)
	if err != nil {
		t.Fatalf("GetVoice: %v", err)
	}
	if got.Name != "DJ Nova" || got.ModelID != "model-1" {
		t.Errorf("GetVoice = %+v, want Name=DJ Nova ModelID=model-1", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListVoices(t *testing.T) {
	s, mock := newMockCatalog(t)

	cols := []string{"id", "name", "model_id", "language", "locale", "gender", "quality_tier", "available"}
	mock.ExpectQuery(`SELECT id, name, model_id, language, locale, gender, quality_tier, available FROM voices`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(uuid.New(), "DJ Nova", "model-1", "en", "en-US", "female", "studio", true).
			AddRow(uuid.New(), "DJ Rex", "model-2", "en", "en-GB", "male", "standard", true))

	voices, err := s.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("ListVoices returned %d voices, want 2", len(voices))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetVoice_NotFound(t *testing.T) {
	s, mock := newMockCatalog(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT id, name, model_id, language, locale, gender, quality_tier, available FROM voices WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sqlx.ErrNotMapped)

	if _, err := s.GetVoice(context.Background(), id); err == nil {
		t.Fatal("GetVoice: want error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListDJsForProgram(t *testing.T) {
	s, mock := newMockCatalog(t)
	programID := uuid.New()
	dj1, dj2 := uuid.New(), uuid.New()

	cols := []string{"program_id", "dj_id", "role", "order"}
	mock.ExpectQuery(`SELECT program_id, dj_id, role, "order" FROM program_djs WHERE program_id = \$1 ORDER BY "order"`).
		WithArgs(programID).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(programID, dj1, string(domain.RoleHost), 0).
			AddRow(programID, dj2, string(domain.RoleCoHost), 1))

	roster, err := s.ListDJsForProgram(context.Background(), programID)
	if err != nil {
		t.Fatalf("ListDJsForProgram: %v", err)
	}
	if len(roster) != 2 || roster[0].Role != domain.RoleHost {
		t.Errorf("ListDJsForProgram = %+v, want host first", roster)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
