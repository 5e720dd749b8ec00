package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bus_tracker_go_backend/internal/database"
	"bus_tracker_go_backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "bus.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// SQLite allows one writer; a single connection makes transactions queue
	// instead of failing with SQLITE_BUSY.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type fixture struct {
	parent     models.User
	supervisor models.User
	bus        models.Bus
	student    models.Student
}

func seed(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	f := fixture{
		parent:     models.User{Email: "parent@example.com", Name: "Parent", Role: models.RoleParent},
		supervisor: models.User{Email: "supervisor@example.com", Name: "Supervisor", Role: models.RoleSupervisor},
	}
	require.NoError(t, db.Create(&f.parent).Error)
	require.NoError(t, db.Create(&f.supervisor).Error)

	f.bus = models.Bus{PlateNumber: "B1", SupervisorID: &f.supervisor.ID}
	require.NoError(t, db.Create(&f.bus).Error)

	f.student = models.Student{Name: "Sara", ParentID: f.parent.ID, BusID: &f.bus.ID}
	require.NoError(t, db.Create(&f.student).Error)
	return f
}

func TestRequestStoreGuard(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	f := seed(t, db)
	service := NewRequestService(NewRequestStore(db), NewBusDirectory(db), nil)

	in := CreateRequestInput{
		Kind:      models.RequestKindPermission,
		StudentID: f.student.ID,
		ParentID:  f.parent.ID,
		Type:      "EARLY_PICKUP",
		Date:      "2026-10-20",
	}

	t.Run("Three concurrent identical requests", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 3)
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := service.CreateRequest(ctx, in)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		created, conflicts := 0, 0
		for err := range errs {
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrDuplicateRequest):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, created)
		assert.Equal(t, 2, conflicts)

		var count int64
		require.NoError(t, db.Model(&models.Request{}).Where("student_id = ?", f.student.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Review then resubmit after rejection", func(t *testing.T) {
		reqs, err := service.ListStudentRequests(ctx, f.parent.ID, models.RoleParent, f.student.ID)
		require.NoError(t, err)
		require.Len(t, reqs, 1)

		rejected, err := service.ReviewRequest(ctx, f.supervisor.ID, reqs[0].ID, models.RequestStatusRejected)
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusRejected, rejected.Status)

		_, err = service.ReviewRequest(ctx, f.supervisor.ID, reqs[0].ID, models.RequestStatusApproved)
		assert.ErrorIs(t, err, ErrRequestAlreadyReviewed)

		again, err := service.CreateRequest(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusPending, again.Status)
	})

	t.Run("Unknown student", func(t *testing.T) {
		bad := in
		bad.StudentID = uuid.New()
		_, err := service.CreateRequest(ctx, bad)
		assert.ErrorIs(t, err, ErrStudentNotFound)
	})
}

func TestLocationStoreAndDirectory(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	f := seed(t, db)

	store := NewLocationStore(db)
	directory := NewBusDirectory(db)

	t.Run("Latest is nil before any report", func(t *testing.T) {
		latest, err := store.Latest(ctx, f.bus.ID)
		require.NoError(t, err)
		assert.Nil(t, latest)
	})

	t.Run("Latest returns the newest sample", func(t *testing.T) {
		_, err := store.Save(ctx, f.bus.ID, 24.70, 46.67)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		second, err := store.Save(ctx, f.bus.ID, 24.71, 46.68)
		require.NoError(t, err)

		latest, err := store.Latest(ctx, f.bus.ID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, second.ID, latest.ID)
		assert.InDelta(t, 24.71, latest.Latitude, 1e-9)
	})

	t.Run("Ownership lookups", func(t *testing.T) {
		bus, err := directory.BusForParent(ctx, f.parent.ID)
		require.NoError(t, err)
		require.NotNil(t, bus)
		assert.Equal(t, f.bus.ID, *bus)

		bus, err = directory.BusForSupervisor(ctx, f.supervisor.ID)
		require.NoError(t, err)
		require.NotNil(t, bus)
		assert.Equal(t, f.bus.ID, *bus)

		bus, err = directory.BusForParent(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, bus)

		exists, err := directory.BusExists(ctx, f.bus.ID)
		require.NoError(t, err)
		assert.True(t, exists)
	})
}
