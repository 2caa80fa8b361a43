package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"nci-backend/internal/shared/storage/kv"
)

func TestStorePutUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("INSERT INTO snapshots").
		WithArgs("nci_analysis_v1", []byte(`{"scores":{}}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := New(db).Put(context.Background(), "nci_analysis_v1", []byte(`{"scores":{}}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store := New(db)

	mock.ExpectQuery("SELECT value FROM snapshots").
		WithArgs("nci_analysis_v1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"inputText":"hi"}`)))
	got, err := store.Get(context.Background(), "nci_analysis_v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"inputText":"hi"}` {
		t.Fatalf("unexpected value %s", got)
	}

	mock.ExpectQuery("SELECT value FROM snapshots").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
