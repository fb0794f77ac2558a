package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"zonetime/internal/types"
)

// Note: mockDBTX, mockRow and mockRows are defined in history_repo_test.go.

func TestZoneRepository_Zones_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db, "person.alice")

	rows := newMockRows([][]any{
		{"zone.home", nil, false, 0, 0, true},
		{"zone.work", "Office", true, 30, 120, false},
	})
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), []any{"person.alice"}).Return(rows, nil)

	zones, err := repo.Zones(context.Background())
	require.NoError(t, err)
	require.Len(t, zones, 2)

	assert.Equal(t, types.ZoneDescriptor{ZoneID: "zone.home", EnableAverages: true}, zones[0])
	assert.Equal(t, types.ZoneDescriptor{
		ZoneID:          "zone.work",
		DisplayName:     "Office",
		BackfillEnabled: true,
		BackfillDays:    30,
		RetentionDays:   120,
	}, zones[1])
	db.AssertExpectations(t)
}

func TestZoneRepository_Zones_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db, "person.alice")

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := repo.Zones(context.Background())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestZoneRepository_Zones_ScanError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db, "person.alice")

	rows := newMockRows([][]any{{"zone.home"}})
	rows.scanErr = errors.New("type mismatch")
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	_, err := repo.Zones(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}

func TestZoneRepository_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewZoneRepository(db, "person.alice")
		row := &mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*string) = "zone.home"
			name := "Home"
			*dest[1].(**string) = &name
			*dest[2].(*bool) = true
			*dest[3].(*int) = 14
			*dest[4].(*int) = 90
			*dest[5].(*bool) = true
			return nil
		}}
		db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"person.alice", "zone.home"}).Return(row)

		z, err := repo.GetByID(context.Background(), "zone.home")
		require.NoError(t, err)
		assert.Equal(t, "Home", z.DisplayName)
		assert.Equal(t, 14, z.BackfillDays)
		assert.True(t, z.EnableAverages)
	})

	t.Run("not found", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewZoneRepository(db, "person.alice")
		db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(&mockRow{scanErr: pgx.ErrNoRows})

		_, err := repo.GetByID(context.Background(), "zone.gone")
		require.Error(t, err)
		assert.Equal(t, types.ErrCodeNotFoundZone, types.CodeOf(err))
	})
}

func TestZoneRepository_Upsert(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db, "person.alice")

	z := types.ZoneDescriptor{ZoneID: "zone.gym", DisplayName: "Gym", BackfillEnabled: true, BackfillDays: 7}
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"),
		[]any{"person.alice", "zone.gym", "Gym", true, 7, 0, false}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Upsert(context.Background(), z))
	db.AssertExpectations(t)
}

func TestZoneRepository_Disable(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewZoneRepository(db, "person.alice")
		db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(pgconn.NewCommandTag("UPDATE 1"), nil)

		require.NoError(t, repo.Disable(context.Background(), "zone.gym"))
	})

	t.Run("unknown zone", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewZoneRepository(db, "person.alice")
		db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(pgconn.NewCommandTag("UPDATE 0"), nil)

		err := repo.Disable(context.Background(), "zone.gym")
		assert.Equal(t, types.ErrCodeNotFoundZone, types.CodeOf(err))
	})
}

func TestZoneRepository_EnsureSchema(t *testing.T) {
	db := new(mockDBTX)
	repo := NewZoneRepository(db, "person.alice")
	db.On("Exec", mock.Anything, TrackedZonesSchema, []any(nil)).
		Return(pgconn.NewCommandTag("CREATE TABLE"), nil)

	require.NoError(t, repo.EnsureSchema(context.Background()))
	db.AssertExpectations(t)
}
