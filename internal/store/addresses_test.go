package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Store{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func addressFixture() *models.Address {
	return &models.Address{
		CustomerID: 3,
		Type:       models.AddressTypeShipping,
		FirstName:  "Test",
		LastName:   "Customer",
		Line1:      "1 First Street",
		City:       "Leeds",
		Postcode:   "LS1 1AA",
		Country:    "GB",
	}
}

func insertedRow(id int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now)
}

func TestSetDefaultAddressClearsSiblingsFirst(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT type FROM addresses").
		WithArgs(int64(7), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"type"}).AddRow("shipping"))
	mock.ExpectExec("UPDATE addresses SET is_default = FALSE").
		WithArgs(int64(3), "shipping").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE addresses SET is_default = TRUE").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SetDefaultAddressTx(context.Background(), 3, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDefaultAddressUnknownAddressRollsBack(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT type FROM addresses").
		WithArgs(int64(9), int64(3)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := s.SetDefaultAddressTx(context.Background(), 3, 9)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAddressFirstOfTypeBecomesDefault(t *testing.T) {
	s, mock := mockStore(t)
	a := addressFixture()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(a.CustomerID, a.Type).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE addresses SET is_default = FALSE").
		WithArgs(a.CustomerID, a.Type).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO addresses").
		WillReturnRows(insertedRow(1))
	mock.ExpectCommit()

	require.NoError(t, s.CreateAddress(context.Background(), a))
	assert.True(t, a.IsDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAddressWithSiblingsStaysNonDefault(t *testing.T) {
	s, mock := mockStore(t)
	a := addressFixture()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(a.CustomerID, a.Type).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	// No clearing statement: the existing default stays in place
	mock.ExpectQuery("INSERT INTO addresses").
		WillReturnRows(insertedRow(4))
	mock.ExpectCommit()

	require.NoError(t, s.CreateAddress(context.Background(), a))
	assert.False(t, a.IsDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}
