package kvstore

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS client_state").WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewPostgres(db)
	if err != nil {
		t.Fatalf("NewPostgres() error: %v", err)
	}
	return store, mock
}

func TestPostgresGetAndSet(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO client_state").
		WithArgs("c1", "access_token", "tok").
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := store.Set("c1", "access_token", "tok"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	mock.ExpectQuery("SELECT value FROM client_state WHERE client_id = \\$1 AND key = \\$2").
		WithArgs("c1", "access_token").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("tok"))
	v, ok, err := store.Get("c1", "access_token")
	if err != nil || !ok || v != "tok" {
		t.Fatalf("Get() = %q %v %v", v, ok, err)
	}

	mock.ExpectQuery("SELECT value FROM client_state").
		WithArgs("c1", "user").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	if _, ok, err := store.Get("c1", "user"); err != nil || ok {
		t.Fatalf("expected missing key, got ok %v err %v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresKeysDeleteClear(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT key FROM client_state WHERE client_id = \\$1 ORDER BY key").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"key"}).AddRow("access_token").AddRow("user"))
	keys, err := store.Keys("c1")
	if err != nil {
		t.Fatalf("Keys() error: %v", err)
	}
	if len(keys) != 2 || keys[1] != "user" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	mock.ExpectExec("DELETE FROM client_state WHERE client_id = \\$1 AND key = ANY").
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	if err := store.Delete("c1", "access_token", "user"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := store.Delete("c1"); err != nil {
		t.Fatalf("Delete() with no keys error: %v", err)
	}

	mock.ExpectExec("DELETE FROM client_state WHERE client_id = \\$1$").
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	if err := store.Clear("c1"); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
