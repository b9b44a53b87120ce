package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lumira/lumira-backend/internal/cache"
	"github.com/lumira/lumira-backend/internal/logger"
	"github.com/lumira/lumira-backend/internal/repos"
	"github.com/lumira/lumira-backend/internal/types"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// testEnv wires every repo over an in-memory sqlite handle and an in-memory
// cache so service tests exercise the real data-access path.
type testEnv struct {
	db  *gorm.DB
	kv  cache.Cache
	log *logger.Logger

	users       repos.UserRepo
	balances    repos.BalanceRepo
	invoices    repos.InvoiceRepo
	promos      repos.PromoRepo
	courses     repos.CourseRepo
	modules     repos.ModuleRepo
	subModules  repos.SubModuleRepo
	contents    repos.ContentRepo
	questions   repos.QuestionRepo
	userCourses repos.UserCourseRepo
	answers     repos.AnswerRepo
	prompts     repos.PromptRepo
	gptModels   repos.GPTModelRepo
	runs        repos.GenerationRunRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A second pooled connection to :memory: would see a different, empty
	// database, so pin the pool to one.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&types.User{},
		&types.UserBalance{},
		&types.Invoice{},
		&types.Course{},
		&types.Module{},
		&types.SubModule{},
		&types.ModuleContent{},
		&types.Question{},
		&types.UserCourse{},
		&types.UserAnswer{},
		&types.GPTModel{},
		&types.Prompt{},
		&types.Translation{},
		&types.PromoCode{},
		&types.UserPromoCode{},
		&types.CourseGenerationRun{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	kv := cache.NewMemory()
	log := testLogger()

	return &testEnv{
		db:  db,
		kv:  kv,
		log: log,

		users:       repos.NewUserRepo(db, kv, log),
		balances:    repos.NewBalanceRepo(db, kv, log),
		invoices:    repos.NewInvoiceRepo(db, kv, log),
		promos:      repos.NewPromoRepo(db, kv, log),
		courses:     repos.NewCourseRepo(db, kv, log),
		modules:     repos.NewModuleRepo(db, kv, log),
		subModules:  repos.NewSubModuleRepo(db, kv, log),
		contents:    repos.NewContentRepo(db, kv, log),
		questions:   repos.NewQuestionRepo(db, kv, log),
		userCourses: repos.NewUserCourseRepo(db, kv, log),
		answers:     repos.NewAnswerRepo(db, kv, log),
		prompts:     repos.NewPromptRepo(db, kv, log),
		gptModels:   repos.NewGPTModelRepo(db, kv, log),
		runs:        repos.NewGenerationRunRepo(db, log),
	}
}

func (e *testEnv) progressService() ProgressService {
	return NewProgressService(e.db, e.log, e.userCourses, e.courses, e.modules, e.subModules, e.contents, e.questions)
}

func (e *testEnv) userService() UserService {
	return NewUserService(e.db, e.log, e.users, e.balances, e.invoices, e.promos)
}

func (e *testEnv) courseService() CourseService {
	return NewCourseService(e.db, e.kv, e.log, e.courses, e.modules, e.subModules, e.contents, e.questions)
}

// courseShape describes a fully generated course fixture: moduleCount
// modules, each with subCount sub-modules, each carrying contentCount text
// slots and one multiple-choice question per slot plus a closing open
// question.
type courseShape struct {
	moduleCount  int
	subCount     int
	contentCount int
}

func (e *testEnv) buildGeneratedCourse(t *testing.T, shape courseShape) *types.Course {
	t.Helper()
	ctx := context.Background()

	plan := types.Plan{Title: "Test Course", Description: "fixture"}
	rawPlan, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("marshal plan: %v", err)
	}

	course, err := e.courses.Create(ctx, nil, &types.Course{
		Title:        plan.Title,
		Description:  plan.Description,
		LanguageCode: "en",
		Available:    true,
		DefaultPlan:  datatypes.JSON(rawPlan),
	})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}

	var startModuleID, startSubModuleID uint
	for mi := 1; mi <= shape.moduleCount; mi++ {
		mods, err := e.modules.CreateBatch(ctx, nil, []*types.Module{{
			CourseID:    course.ID,
			Title:       fmt.Sprintf("Module %d", mi),
			OrderNumber: mi,
		}})
		if err != nil {
			t.Fatalf("create module %d: %v", mi, err)
		}
		module := mods[0]
		if mi == 1 {
			startModuleID = module.ID
		}

		for si := 1; si <= shape.subCount; si++ {
			subs, err := e.subModules.CreateBatch(ctx, nil, []*types.SubModule{{
				ModuleID:    module.ID,
				Title:       fmt.Sprintf("Sub-module %d.%d", mi, si),
				OrderNumber: si,
			}})
			if err != nil {
				t.Fatalf("create sub-module %d.%d: %v", mi, si, err)
			}
			sub := subs[0]
			if mi == 1 && si == 1 {
				startSubModuleID = sub.ID
			}

			var contents []*types.ModuleContent
			var questions []*types.Question
			for ci := 1; ci <= shape.contentCount; ci++ {
				contents = append(contents, &types.ModuleContent{
					SubModuleID: sub.ID,
					ContentType: types.ContentTypeText,
					Content:     fmt.Sprintf("lesson %d.%d.%d", mi, si, ci),
					OrderNumber: ci,
				})
				questions = append(questions, &types.Question{
					SubModuleID:   sub.ID,
					QuestionType:  types.QuestionTypeMultipleChoice,
					QuestionText:  fmt.Sprintf("question %d.%d.%d", mi, si, ci),
					Options:       datatypes.JSON(`["a","b","c"]`),
					CorrectAnswer: "a",
					Explanation:   "a is right",
					OrderNumber:   ci,
				})
			}
			questions = append(questions, &types.Question{
				SubModuleID:  sub.ID,
				QuestionType: types.QuestionTypeOpen,
				QuestionText: fmt.Sprintf("summarize %d.%d", mi, si),
				OrderNumber:  shape.contentCount + 1,
			})
			if _, err := e.contents.CreateBatch(ctx, nil, contents); err != nil {
				t.Fatalf("create contents %d.%d: %v", mi, si, err)
			}
			if _, err := e.questions.CreateBatch(ctx, nil, questions); err != nil {
				t.Fatalf("create questions %d.%d: %v", mi, si, err)
			}
		}
	}

	generated := true
	course, err = e.courses.Patch(ctx, nil, course.ID, types.CoursePatch{
		IsGenerated:      &generated,
		StartModuleID:    &startModuleID,
		StartSubModuleID: &startSubModuleID,
	})
	if err != nil {
		t.Fatalf("patch course start: %v", err)
	}
	return course
}

func (e *testEnv) createUser(t *testing.T, externalID int64) *types.User {
	t.Helper()
	user, err := e.userService().Register(context.Background(), externalID, fmt.Sprintf("user%d", externalID), externalID)
	if err != nil {
		t.Fatalf("register user: %v", err)
	}
	return user
}
