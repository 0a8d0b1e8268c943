package attribution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresViewStore_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO page_views").
		WithArgs(sqlmock.AnyArg(), "r1", "/", "", "s1", true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	v := &PageView{ResellerID: "r1", Path: "/", SessionID: "s1", Tracked: true}
	require.NoError(t, NewPostgresViewStore(db).Insert(context.Background(), v))
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, now, v.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresViewStore_InsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO page_views").WillReturnError(errors.New("timeout"))
	err = NewPostgresViewStore(db).Insert(context.Background(), &PageView{ResellerID: "r1", Path: "/", SessionID: "s1"})
	assert.Error(t, err)
}
