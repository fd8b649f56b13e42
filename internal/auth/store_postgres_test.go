package auth

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"docuflow/portal/internal/session"
)

func TestNewPostgresUserStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS docuflow_users").WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := NewPostgresUserStore(db); err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresUserStoreGetByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS docuflow_users").WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewPostgresUserStore(db)
	if err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}

	rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "role"}).
		AddRow("u1", "dept", "hash", "department")
	mock.ExpectQuery("SELECT id, username, password_hash, role FROM docuflow_users WHERE username =").
		WithArgs("dept").
		WillReturnRows(rows)

	got, err := store.GetByUsername("dept")
	if err != nil {
		t.Fatalf("GetByUsername() error: %v", err)
	}
	if got.ID != "u1" || got.Role != session.RoleDepartment {
		t.Fatalf("unexpected user: %+v", got)
	}

	mock.ExpectQuery("SELECT id, username, password_hash, role FROM docuflow_users WHERE username =").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "role"}))
	if _, err := store.GetByUsername("missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresUserStorePut(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS docuflow_users").WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewPostgresUserStore(db)
	if err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}

	mock.ExpectExec("INSERT INTO docuflow_users").
		WithArgs("u1", "admin", "hash", "admin").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Put(User{ID: "u1", Username: "admin", PasswordHash: "hash", Role: session.RoleAdmin}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := store.Put(User{ID: "u2", Username: "x", PasswordHash: "hash", Role: "root"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
