package repository

import (
	"context"
	"testing"
	"time"

	"sailboat/internal/model"
	"sailboat/pkg/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestScheduleRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db, 100)

	mock.ExpectExec(`DELETE FROM "schedule_entries" WHERE id = \$1`).
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.Delete(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepository_FindByIDScoped(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db, 100)

	mock.ExpectQuery(`SELECT \* FROM "schedule_entries" WHERE owner_id = \$1 AND id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project", "version", "trigger_mode", "trigger_rule", "owner_id", "owner_name", "created_at"}).
			AddRow("s-1", "p", "v1", "interval", []byte(`{"seconds":1}`), "u-1", "alice", time.Now()))

	entry, err := repo.FindByID(context.Background(), "s-1", utils.WithWhere("owner_id = ?", "u-1"))
	require.NoError(t, err)
	assert.Equal(t, "p", entry.Project)
	assert.Equal(t, model.TriggerModeInterval, entry.TriggerMode)
	assert.JSONEq(t, `{"seconds":1}`, string(entry.TriggerRule))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepository_FindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db, 100)

	mock.ExpectQuery(`SELECT \* FROM "schedule_entries" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	entry, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, entry)
}

func TestScheduleRepository_ListFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db, 100)

	mock.ExpectQuery(`SELECT \* FROM "schedule_entries" WHERE project = \$1 AND owner_id = \$2 ORDER BY version DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project"}).
			AddRow("s-1", "p").
			AddRow("s-2", "p"))

	entries, err := repo.List(context.Background(), &model.ListScheduleParam{
		Project: "p",
		OwnerID: "u-1",
		SortBy:  "version",
		Order:   model.SortDesc,
	})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepository_ListRejectsUnknownSortColumn(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewScheduleRepository(db, 100)

	mock.ExpectQuery(`SELECT \* FROM "schedule_entries" ORDER BY created_at ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.List(context.Background(), &model.ListScheduleParam{SortBy: "id; DROP TABLE x"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerStateRepository_MarkFired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTriggerStateRepository(db)

	mock.ExpectExec(`UPDATE "trigger_states" SET .*"fire_count"=fire_count \+ \$1.*WHERE schedule_id = `).
		WillReturnResult(sqlmock.NewResult(0, 1))

	next := time.Now().Add(time.Minute)
	err := repo.MarkFired(context.Background(), "s-1", time.Now(), &next)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
