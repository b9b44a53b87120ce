package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	perrors "github.com/lumira/lumira-backend/internal/pkg/errors"
	"github.com/lumira/lumira-backend/internal/types"
)

func TestNextStage_WalksSingleSubModule(t *testing.T) {
	env := newTestEnv(t)
	svc := env.progressService()
	ctx := context.Background()

	course := env.buildGeneratedCourse(t, courseShape{moduleCount: 1, subCount: 1, contentCount: 2})
	user := env.createUser(t, 100)

	uc, err := svc.Enroll(ctx, user.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if uc.Stage != types.StageGenerated {
		t.Fatalf("expected stage %q after enrolling in a generated course, got %q", types.StageGenerated, uc.Stage)
	}
	if uc.CurrentOrderNumber != 0 {
		t.Fatalf("expected cursor at order 0, got %d", uc.CurrentOrderNumber)
	}

	// Two text slots, then their two multiple-choice questions plus the
	// closing open question, then completion.
	expected := []struct {
		stage types.Stage
		order int
	}{
		{types.StageEducation, 1},
		{types.StageEducation, 2},
		{types.StageQuestion, 1},
		{types.StageQuestion, 2},
		{types.StageQuestion, 3},
	}
	for i, want := range expected {
		uc, err = svc.NextStage(ctx, uc.ID)
		if err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
		if uc.Stage != want.stage || uc.CurrentOrderNumber != want.order {
			t.Fatalf("step %d: got (%s, %d), want (%s, %d)",
				i+1, uc.Stage, uc.CurrentOrderNumber, want.stage, want.order)
		}
	}

	uc, err = svc.NextStage(ctx, uc.ID)
	if err != nil {
		t.Fatalf("final step: %v", err)
	}
	if uc.Stage != types.StageCompleted {
		t.Fatalf("expected completed, got %q", uc.Stage)
	}
	if !uc.Archived || !uc.Finished || uc.Active {
		t.Fatalf("completion must finish, archive and deactivate, got archived=%v finished=%v active=%v",
			uc.Archived, uc.Finished, uc.Active)
	}
	if uc.UsageCount != 1 {
		t.Fatalf("completion must count the pass, got usage count %d", uc.UsageCount)
	}
}

func TestNextStage_TraversalTerminates(t *testing.T) {
	env := newTestEnv(t)
	svc := env.progressService()
	ctx := context.Background()

	shape := courseShape{moduleCount: 2, subCount: 2, contentCount: 2}
	course := env.buildGeneratedCourse(t, shape)
	user := env.createUser(t, 101)

	uc, err := svc.Enroll(ctx, user.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	// Per sub-module: contentCount education steps plus contentCount+1
	// question steps; one extra call lands on completed.
	perSub := shape.contentCount + shape.contentCount + 1
	wantSteps := shape.moduleCount*shape.subCount*perSub + 1

	steps := 0
	for steps < wantSteps+5 {
		uc, err = svc.NextStage(ctx, uc.ID)
		if err != nil {
			t.Fatalf("step %d: %v", steps+1, err)
		}
		steps++
		if uc.Stage == types.StageCompleted {
			break
		}
	}
	if steps != wantSteps {
		t.Fatalf("traversal took %d steps, want %d", steps, wantSteps)
	}
}

func TestComputeNext_DoesNotMoveTheCursor(t *testing.T) {
	env := newTestEnv(t)
	svc := env.progressService()
	ctx := context.Background()

	course := env.buildGeneratedCourse(t, courseShape{moduleCount: 1, subCount: 1, contentCount: 2})
	user := env.createUser(t, 102)

	uc, err := svc.Enroll(ctx, user.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	first, err := svc.ComputeNext(ctx, uc)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	second, err := svc.ComputeNext(ctx, uc)
	if err != nil {
		t.Fatalf("compute again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("compute is not repeatable: %+v vs %+v", first, second)
	}

	stored, err := env.userCourses.GetByID(ctx, nil, uc.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Stage != uc.Stage || stored.CurrentOrderNumber != uc.CurrentOrderNumber {
		t.Fatalf("compute mutated the enrollment: %+v", stored)
	}
}

func TestComputeNext_AskQuestionHoldsPosition(t *testing.T) {
	env := newTestEnv(t)
	svc := env.progressService()
	ctx := context.Background()

	course := env.buildGeneratedCourse(t, courseShape{moduleCount: 1, subCount: 1, contentCount: 1})
	user := env.createUser(t, 103)

	uc, err := svc.Enroll(ctx, user.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	uc, err = svc.NextStage(ctx, uc.ID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}

	stage := types.StageAskQuestion
	uc, err = env.userCourses.Patch(ctx, nil, uc.ID, types.UserCoursePatch{Stage: &stage})
	if err != nil {
		t.Fatalf("patch stage: %v", err)
	}

	step, err := svc.ComputeNext(ctx, uc)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if step.Stage != types.StageAskQuestion || step.OrderNumber != uc.CurrentOrderNumber {
		t.Fatalf("ask_question must hold position, got %+v", step)
	}
}

func TestNextStage_RequiresActiveEnrollment(t *testing.T) {
	env := newTestEnv(t)
	svc := env.progressService()
	ctx := context.Background()

	course := env.buildGeneratedCourse(t, courseShape{moduleCount: 1, subCount: 1, contentCount: 1})
	user := env.createUser(t, 104)

	uc, err := svc.Enroll(ctx, user.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := svc.Archive(ctx, uc.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if _, err := svc.NextStage(ctx, uc.ID); !errors.Is(err, perrors.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for inactive enrollment, got %v", err)
	}
}

func TestNextStage_MissingFirstContentIsInvalidState(t *testing.T) {
	env := newTestEnv(t)
	svc := env.progressService()
	ctx := context.Background()

	course := env.buildGeneratedCourse(t, courseShape{moduleCount: 1, subCount: 1, contentCount: 1})

	// A second module whose sub-module has no content slots at all.
	mods, err := env.modules.CreateBatch(ctx, nil, []*types.Module{{
		CourseID:    course.ID,
		Title:       "Broken",
		OrderNumber: 2,
	}})
	if err != nil {
		t.Fatalf("create module: %v", err)
	}
	if _, err := env.subModules.CreateBatch(ctx, nil, []*types.SubModule{{
		ModuleID:    mods[0].ID,
		Title:       "Empty",
		OrderNumber: 1,
	}}); err != nil {
		t.Fatalf("create sub-module: %v", err)
	}

	user := env.createUser(t, 105)
	uc, err := svc.Enroll(ctx, user.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	// education@1, question@1, question@2, then the advance into the empty
	// sub-module must fail.
	for i := 0; i < 3; i++ {
		if uc, err = svc.NextStage(ctx, uc.ID); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
	}
	if _, err := svc.NextStage(ctx, uc.ID); !errors.Is(err, perrors.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for sub-module without content, got %v", err)
	}
}

func TestEnroll_DeactivatesPreviousEnrollment(t *testing.T) {
	env := newTestEnv(t)
	svc := env.progressService()
	ctx := context.Background()

	first := env.buildGeneratedCourse(t, courseShape{moduleCount: 1, subCount: 1, contentCount: 1})
	second := env.buildGeneratedCourse(t, courseShape{moduleCount: 1, subCount: 1, contentCount: 1})
	user := env.createUser(t, 106)

	ucFirst, err := svc.Enroll(ctx, user.ID, first.ID)
	if err != nil {
		t.Fatalf("enroll first: %v", err)
	}
	ucSecond, err := svc.Enroll(ctx, user.ID, second.ID)
	if err != nil {
		t.Fatalf("enroll second: %v", err)
	}
	if !ucSecond.Active {
		t.Fatalf("new enrollment must be active")
	}

	reloaded, err := env.userCourses.GetByID(ctx, nil, ucFirst.ID)
	if err != nil {
		t.Fatalf("reload first: %v", err)
	}
	if reloaded.Active {
		t.Fatalf("previous enrollment must be deactivated")
	}

	active, err := env.userCourses.GetActiveByUser(ctx, nil, user.ID)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active == nil || active.ID != ucSecond.ID {
		t.Fatalf("expected enrollment %d active, got %+v", ucSecond.ID, active)
	}
}

func TestEnroll_NotGeneratedCourseStartsAtNotGenerated(t *testing.T) {
	env := newTestEnv(t)
	svc := env.progressService()
	ctx := context.Background()

	course, err := env.courses.Create(ctx, nil, &types.Course{
		Title:        "Fresh",
		LanguageCode: "en",
		Available:    true,
	})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	user := env.createUser(t, 107)

	uc, err := svc.Enroll(ctx, user.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if uc.Stage != types.StageNotGenerated {
		t.Fatalf("expected %q, got %q", types.StageNotGenerated, uc.Stage)
	}
}

func TestArchive_MarksFinishedAndCountsReplay(t *testing.T) {
	env := newTestEnv(t)
	svc := env.progressService()
	ctx := context.Background()

	course := env.buildGeneratedCourse(t, courseShape{moduleCount: 1, subCount: 1, contentCount: 1})
	user := env.createUser(t, 111)

	uc, err := svc.Enroll(ctx, user.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	uc, err = svc.Archive(ctx, uc.ID)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !uc.Archived || !uc.Finished || uc.Active {
		t.Fatalf("archive must finish and deactivate, got %+v", uc)
	}
	if uc.Stage != types.StageCompleted {
		t.Fatalf("archive must land on completed, got %q", uc.Stage)
	}
	if uc.UsageCount != 1 {
		t.Fatalf("archive must count the pass, got usage count %d", uc.UsageCount)
	}

	unfinished, err := env.userCourses.ListUnfinishedByUser(ctx, nil, user.ID, 1, 10)
	if err != nil {
		t.Fatalf("list unfinished: %v", err)
	}
	if unfinished.TotalRecords != 0 {
		t.Fatalf("archived enrollment must leave the unfinished view, got %d rows", unfinished.TotalRecords)
	}
}

func TestRestart_RewindsCursorAndKeepsReplayCount(t *testing.T) {
	env := newTestEnv(t)
	svc := env.progressService()
	ctx := context.Background()

	course := env.buildGeneratedCourse(t, courseShape{moduleCount: 1, subCount: 1, contentCount: 2})
	user := env.createUser(t, 108)

	uc, err := svc.Enroll(ctx, user.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	for i := 0; i < 3; i++ {
		if uc, err = svc.NextStage(ctx, uc.ID); err != nil {
			t.Fatalf("advance %d: %v", i+1, err)
		}
	}
	if uc, err = svc.Archive(ctx, uc.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	uc, err = svc.Restart(ctx, uc.ID)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if uc.Stage != types.StageGenerated || uc.CurrentOrderNumber != 0 {
		t.Fatalf("restart must rewind to (generated, 0), got (%s, %d)", uc.Stage, uc.CurrentOrderNumber)
	}
	if uc.CurrentModuleID == nil || *uc.CurrentModuleID != *course.StartModuleID {
		t.Fatalf("restart must point at the course start module")
	}
	if uc.UsageCount != 1 {
		t.Fatalf("replay count belongs to archive, expected 1 after restart, got %d", uc.UsageCount)
	}
	if !uc.Active || uc.Archived || uc.Finished || uc.Paused {
		t.Fatalf("restart must reactivate a fresh pass: %+v", uc)
	}
}

func TestPauseAndResume(t *testing.T) {
	env := newTestEnv(t)
	svc := env.progressService()
	ctx := context.Background()

	course := env.buildGeneratedCourse(t, courseShape{moduleCount: 1, subCount: 1, contentCount: 1})
	user := env.createUser(t, 109)

	uc, err := svc.Enroll(ctx, user.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	uc, err = svc.Pause(ctx, uc.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !uc.Paused || uc.Active {
		t.Fatalf("pause must free the active slot, got paused=%v active=%v", uc.Paused, uc.Active)
	}
	active, err := env.userCourses.GetActiveByUser(ctx, nil, user.ID)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active != nil {
		t.Fatalf("paused enrollment must not show up as active, got %+v", active)
	}

	uc, err = svc.Resume(ctx, uc.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if uc.Paused || !uc.Active {
		t.Fatalf("resume must clear paused and reactivate: %+v", uc)
	}

	if _, err := svc.Archive(ctx, uc.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := svc.Resume(ctx, uc.ID); !errors.Is(err, perrors.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState resuming an archived enrollment, got %v", err)
	}
}

func TestRate_ValidatesBounds(t *testing.T) {
	env := newTestEnv(t)
	svc := env.progressService()
	ctx := context.Background()

	course := env.buildGeneratedCourse(t, courseShape{moduleCount: 1, subCount: 1, contentCount: 1})
	user := env.createUser(t, 110)

	uc, err := svc.Enroll(ctx, user.ID, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	for _, bad := range []int{0, -1, 6} {
		if _, err := svc.Rate(ctx, uc.ID, bad); !errors.Is(err, perrors.ErrInvalidArgument) {
			t.Fatalf("rating %d: expected ErrInvalidArgument, got %v", bad, err)
		}
	}

	uc, err = svc.Rate(ctx, uc.ID, 4)
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if uc.Rating == nil || *uc.Rating != 4 {
		t.Fatalf("expected rating 4, got %+v", uc.Rating)
	}
}
