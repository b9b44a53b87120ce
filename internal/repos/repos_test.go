package repos

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lumira/lumira-backend/internal/cache"
	"github.com/lumira/lumira-backend/internal/logger"
	"github.com/lumira/lumira-backend/internal/store"
	"github.com/lumira/lumira-backend/internal/types"
)

func newRepoDB(t *testing.T) (*gorm.DB, cache.Cache, *logger.Logger) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(
		&types.Course{},
		&types.Module{},
		&types.SubModule{},
		&types.ModuleContent{},
		&types.UserCourse{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
	return db, cache.NewMemory(), log
}

func TestUserCourseRepo_PatchRefreshesCachedRow(t *testing.T) {
	db, kv, log := newRepoDB(t)
	repo := NewUserCourseRepo(db, kv, log)
	ctx := context.Background()

	uc, err := repo.Create(ctx, nil, &types.UserCourse{
		UserID:   1,
		CourseID: 1,
		Stage:    types.StageGenerated,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stage := types.StageEducation
	if _, err := repo.Patch(ctx, nil, uc.ID, types.UserCoursePatch{Stage: &stage}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	var cached types.UserCourse
	ok, err := kv.Get(ctx, userCourseKey(uc.ID), &cached)
	if err != nil || !ok {
		t.Fatalf("expected refreshed cache entry, ok=%v err=%v", ok, err)
	}
	if cached.Stage != types.StageEducation {
		t.Fatalf("cache holds stale stage %q", cached.Stage)
	}
}

func TestUserCourseRepo_PatchInvalidatesUserViews(t *testing.T) {
	db, kv, log := newRepoDB(t)
	repo := NewUserCourseRepo(db, kv, log)
	ctx := context.Background()

	uc, err := repo.Create(ctx, nil, &types.UserCourse{
		UserID:   7,
		CourseID: 1,
		Stage:    types.StageGenerated,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Warm a page of the per-user listing.
	if _, err := repo.ListByUser(ctx, nil, 7, 1, 10); err != nil {
		t.Fatalf("list: %v", err)
	}
	pageKey := store.PageKey(userCoursesKey(7), 1, 10)
	var page store.Paginated[types.UserCourse]
	if ok, _ := kv.Get(ctx, pageKey, &page); !ok {
		t.Fatalf("listing page was not cached")
	}

	stage := types.StageEducation
	if _, err := repo.Patch(ctx, nil, uc.ID, types.UserCoursePatch{Stage: &stage}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if ok, _ := kv.Get(ctx, pageKey, &page); ok {
		t.Fatalf("patch must sweep the user's cached listings")
	}
}

func TestUserCourseRepo_DeactivateAllSparesOtherUsers(t *testing.T) {
	db, kv, log := newRepoDB(t)
	repo := NewUserCourseRepo(db, kv, log)
	ctx := context.Background()

	mine, err := repo.Create(ctx, nil, &types.UserCourse{UserID: 1, CourseID: 1, Stage: types.StageGenerated, Active: true})
	if err != nil {
		t.Fatalf("create mine: %v", err)
	}
	theirs, err := repo.Create(ctx, nil, &types.UserCourse{UserID: 2, CourseID: 1, Stage: types.StageGenerated, Active: true})
	if err != nil {
		t.Fatalf("create theirs: %v", err)
	}
	if _, err := repo.ListByUser(ctx, nil, 2, 1, 10); err != nil {
		t.Fatalf("warm their listing: %v", err)
	}

	if err := repo.DeactivateAllForUser(ctx, nil, 1); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	reloaded, err := repo.GetByID(ctx, nil, mine.ID)
	if err != nil {
		t.Fatalf("reload mine: %v", err)
	}
	if reloaded.Active {
		t.Fatalf("my enrollment must be deactivated")
	}

	other, err := repo.GetByID(ctx, nil, theirs.ID)
	if err != nil {
		t.Fatalf("reload theirs: %v", err)
	}
	if !other.Active {
		t.Fatalf("other users' enrollments must keep their state")
	}

	// The per-row sweep must not reach the other user's listing pages.
	var page store.Paginated[types.UserCourse]
	if ok, _ := kv.Get(ctx, store.PageKey(userCoursesKey(2), 1, 10), &page); !ok {
		t.Fatalf("other user's cached listing was swept")
	}
}

func TestCourseRepo_AvailabilityChangeInvalidatesListings(t *testing.T) {
	db, kv, log := newRepoDB(t)
	repo := NewCourseRepo(db, kv, log)
	ctx := context.Background()

	course, err := repo.Create(ctx, nil, &types.Course{Title: "Go", LanguageCode: "en", Available: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.ListAvailable(ctx, nil, 1, 10); err != nil {
		t.Fatalf("list: %v", err)
	}
	listKey := store.PageKey(availableCoursesKey, 1, 10)
	var page store.Paginated[types.Course]
	if ok, _ := kv.Get(ctx, listKey, &page); !ok {
		t.Fatalf("available listing was not cached")
	}

	available := false
	if _, err := repo.Patch(ctx, nil, course.ID, types.CoursePatch{Available: &available}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if ok, _ := kv.Get(ctx, listKey, &page); ok {
		t.Fatalf("availability change must drop the cached listings")
	}
}

func TestContentRepo_OrderKeyIsPerType(t *testing.T) {
	db, kv, log := newRepoDB(t)
	repo := NewContentRepo(db, kv, log)
	ctx := context.Background()

	if _, err := repo.CreateBatch(ctx, nil, []*types.ModuleContent{
		{SubModuleID: 1, ContentType: types.ContentTypeText, Content: "lesson", OrderNumber: 1},
		{SubModuleID: 1, ContentType: types.ContentTypeImage, ImageURL: "3,0001", OrderNumber: 1},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	text, err := repo.GetBySubModuleAndOrder(ctx, nil, 1, types.ContentTypeText, 1)
	if err != nil {
		t.Fatalf("get text: %v", err)
	}
	image, err := repo.GetBySubModuleAndOrder(ctx, nil, 1, types.ContentTypeImage, 1)
	if err != nil {
		t.Fatalf("get image: %v", err)
	}
	if text == nil || image == nil {
		t.Fatalf("both rows must resolve at the same order")
	}
	if text.ID == image.ID {
		t.Fatalf("text and image lookups at the same order must not collide")
	}
	if text.Content != "lesson" || image.ImageURL != "3,0001" {
		t.Fatalf("unexpected rows: %+v / %+v", text, image)
	}
}
