package services

import (
  "context"
  "fmt"
  "gorm.io/gorm"
  "github.com/lumira/lumira-backend/internal/logger"
  perrors "github.com/lumira/lumira-backend/internal/pkg/errors"
  "github.com/lumira/lumira-backend/internal/repos"
  "github.com/lumira/lumira-backend/internal/types"
)

// NextStep is the position computed by the traversal. A Completed step
// carries no cursor.
type NextStep struct {
  Stage       types.Stage `json:"stage"`
  ModuleID    *uint       `json:"module_id,omitempty"`
  SubModuleID *uint       `json:"sub_module_id,omitempty"`
  OrderNumber int         `json:"order_number"`
}

type ProgressService interface {
  // ComputeNext walks the course tree from the enrollment's cursor without
  // mutating anything.
  ComputeNext(ctx context.Context, uc *types.UserCourse) (*NextStep, error)
  // NextStage loads the enrollment, validates it, computes the next step
  // and commits the moved cursor.
  NextStage(ctx context.Context, userCourseID uint) (*types.UserCourse, error)
  Enroll(ctx context.Context, userID, courseID uint) (*types.UserCourse, error)
  Archive(ctx context.Context, userCourseID uint) (*types.UserCourse, error)
  Pause(ctx context.Context, userCourseID uint) (*types.UserCourse, error)
  Resume(ctx context.Context, userCourseID uint) (*types.UserCourse, error)
  Restart(ctx context.Context, userCourseID uint) (*types.UserCourse, error)
  Rate(ctx context.Context, userCourseID uint, rating int) (*types.UserCourse, error)
}

type progressService struct {
  db          *gorm.DB
  log         *logger.Logger
  userCourses repos.UserCourseRepo
  courses     repos.CourseRepo
  modules     repos.ModuleRepo
  subModules  repos.SubModuleRepo
  contents    repos.ContentRepo
  questions   repos.QuestionRepo
}

func NewProgressService(
  db *gorm.DB,
  baseLog *logger.Logger,
  userCourses repos.UserCourseRepo,
  courses repos.CourseRepo,
  modules repos.ModuleRepo,
  subModules repos.SubModuleRepo,
  contents repos.ContentRepo,
  questions repos.QuestionRepo,
) ProgressService {
  svcLog := baseLog.With("service", "ProgressService")
  return &progressService{
    db:          db,
    log:         svcLog,
    userCourses: userCourses,
    courses:     courses,
    modules:     modules,
    subModules:  subModules,
    contents:    contents,
    questions:   questions,
  }
}

func (s *progressService) ComputeNext(ctx context.Context, uc *types.UserCourse) (*NextStep, error) {
  if uc == nil {
    return nil, perrors.ErrNotFound
  }
  if uc.CurrentModuleID == nil || uc.CurrentSubModuleID == nil {
    return nil, fmt.Errorf("%w: enrollment has no cursor", perrors.ErrInvalidState)
  }

  moduleID := *uc.CurrentModuleID
  subModuleID := *uc.CurrentSubModuleID
  orderNumber := uc.CurrentOrderNumber

  // The branch stage never moves the cursor; the caller decides when to
  // return into the education/question cycle.
  if uc.Stage == types.StageAskQuestion {
    return &NextStep{
      Stage:       types.StageAskQuestion,
      ModuleID:    uc.CurrentModuleID,
      SubModuleID: uc.CurrentSubModuleID,
      OrderNumber: orderNumber,
    }, nil
  }

  // A freshly generated course sits at order 0, so the generated stage
  // walks the same path as education and lands on the first slot.
  if uc.Stage == types.StageEducation || uc.Stage == types.StageGenerated {
    next, err := s.contents.GetBySubModuleAndOrder(ctx, nil, subModuleID, types.ContentTypeText, orderNumber+1)
    if err != nil {
      return nil, err
    }
    if next != nil {
      return &NextStep{
        Stage:       types.StageEducation,
        ModuleID:    uc.CurrentModuleID,
        SubModuleID: uc.CurrentSubModuleID,
        OrderNumber: orderNumber + 1,
      }, nil
    }
    // Content exhausted: fall into the question walk from the top.
    orderNumber = 0
  }

  question, err := s.questions.GetBySubModuleAndOrder(ctx, nil, subModuleID, orderNumber+1)
  if err != nil {
    return nil, err
  }
  if question != nil {
    return &NextStep{
      Stage:       types.StageQuestion,
      ModuleID:    uc.CurrentModuleID,
      SubModuleID: uc.CurrentSubModuleID,
      OrderNumber: orderNumber + 1,
    }, nil
  }

  return s.advanceSubModule(ctx, moduleID, subModuleID)
}

// advanceSubModule moves to the next sibling sub-module, or to the next
// module's first sub-module, or to completed.
func (s *progressService) advanceSubModule(ctx context.Context, moduleID, subModuleID uint) (*NextStep, error) {
  current, err := s.subModules.GetByID(ctx, nil, subModuleID)
  if err != nil {
    return nil, err
  }

  sibling, err := s.subModules.GetByModuleAndOrder(ctx, nil, moduleID, current.OrderNumber+1)
  if err != nil {
    return nil, err
  }
  if sibling != nil {
    return s.enterSubModule(ctx, moduleID, sibling)
  }

  return s.advanceModule(ctx, moduleID)
}

func (s *progressService) advanceModule(ctx context.Context, moduleID uint) (*NextStep, error) {
  current, err := s.modules.GetByID(ctx, nil, moduleID)
  if err != nil {
    return nil, err
  }

  sibling, err := s.modules.GetByCourseAndOrder(ctx, nil, current.CourseID, current.OrderNumber+1)
  if err != nil {
    return nil, err
  }
  if sibling == nil {
    return &NextStep{Stage: types.StageCompleted}, nil
  }

  first, err := s.subModules.GetByModuleAndOrder(ctx, nil, sibling.ID, 1)
  if err != nil {
    return nil, err
  }
  if first == nil {
    return nil, fmt.Errorf("%w: module %d has no sub-modules", perrors.ErrInvalidState, sibling.ID)
  }
  return s.enterSubModule(ctx, sibling.ID, first)
}

// enterSubModule lands on the first text slot of the sub-module. A
// sub-module with no first slot is corrupt course data, not a traversal
// boundary.
func (s *progressService) enterSubModule(ctx context.Context, moduleID uint, sub *types.SubModule) (*NextStep, error) {
  first, err := s.contents.GetBySubModuleAndOrder(ctx, nil, sub.ID, types.ContentTypeText, 1)
  if err != nil {
    return nil, err
  }
  if first == nil {
    return nil, fmt.Errorf("%w: sub-module %d has no content", perrors.ErrInvalidState, sub.ID)
  }
  subID := sub.ID
  modID := moduleID
  return &NextStep{
    Stage:       types.StageEducation,
    ModuleID:    &modID,
    SubModuleID: &subID,
    OrderNumber: 1,
  }, nil
}

func (s *progressService) NextStage(ctx context.Context, userCourseID uint) (*types.UserCourse, error) {
  uc, err := s.userCourses.GetByID(ctx, nil, userCourseID)
  if err != nil {
    return nil, err
  }
  if !uc.Active {
    return nil, fmt.Errorf("%w: must be active", perrors.ErrInvalidState)
  }

  step, err := s.ComputeNext(ctx, uc)
  if err != nil {
    return nil, err
  }

  patch := types.UserCoursePatch{Stage: &step.Stage}
  if step.Stage == types.StageCompleted {
    archived := true
    patch.Archived = &archived
    finished := true
    patch.Finished = &finished
    active := false
    patch.Active = &active
    usage := uc.UsageCount + 1
    patch.UsageCount = &usage
  } else {
    patch.CurrentModuleID = step.ModuleID
    patch.CurrentSubModuleID = step.SubModuleID
    patch.CurrentOrderNumber = &step.OrderNumber
  }

  return s.userCourses.Patch(ctx, nil, userCourseID, patch)
}

// Enroll creates the per-user progress record positioned at the course's
// start cursor and deactivates every other enrollment of the user first.
func (s *progressService) Enroll(ctx context.Context, userID, courseID uint) (*types.UserCourse, error) {
  course, err := s.courses.GetByID(ctx, nil, courseID)
  if err != nil {
    return nil, err
  }

  if err := s.userCourses.DeactivateAllForUser(ctx, nil, userID); err != nil {
    return nil, err
  }

  stage := types.StageNotGenerated
  if course.IsGenerated {
    stage = types.StageGenerated
  }

  row := &types.UserCourse{
    UserID:             userID,
    CourseID:           courseID,
    Stage:              stage,
    Active:             true,
    CurrentModuleID:    course.StartModuleID,
    CurrentSubModuleID: course.StartSubModuleID,
    CurrentOrderNumber: 0,
    Plan:               course.DefaultPlan,
  }
  return s.userCourses.Create(ctx, nil, row)
}

// Archive closes out the enrollment: finished + archived, and the replay
// counter counts the completed pass.
func (s *progressService) Archive(ctx context.Context, userCourseID uint) (*types.UserCourse, error) {
  uc, err := s.userCourses.GetByID(ctx, nil, userCourseID)
  if err != nil {
    return nil, err
  }
  stage := types.StageCompleted
  archived := true
  finished := true
  active := false
  usage := uc.UsageCount + 1
  return s.userCourses.Patch(ctx, nil, userCourseID, types.UserCoursePatch{
    Stage:      &stage,
    Archived:   &archived,
    Finished:   &finished,
    Active:     &active,
    UsageCount: &usage,
  })
}

func (s *progressService) Pause(ctx context.Context, userCourseID uint) (*types.UserCourse, error) {
  uc, err := s.userCourses.GetByID(ctx, nil, userCourseID)
  if err != nil {
    return nil, err
  }
  if !uc.Active {
    return nil, fmt.Errorf("%w: must be active", perrors.ErrInvalidState)
  }
  // A paused enrollment leaves the active slot free for another course.
  paused := true
  active := false
  return s.userCourses.Patch(ctx, nil, userCourseID, types.UserCoursePatch{
    Paused: &paused,
    Active: &active,
  })
}

func (s *progressService) Resume(ctx context.Context, userCourseID uint) (*types.UserCourse, error) {
  uc, err := s.userCourses.GetByID(ctx, nil, userCourseID)
  if err != nil {
    return nil, err
  }
  if uc.Archived {
    return nil, fmt.Errorf("%w: archived course cannot resume", perrors.ErrInvalidState)
  }
  paused := false
  active := true
  finished := false
  if err := s.userCourses.DeactivateAllForUser(ctx, nil, uc.UserID); err != nil {
    return nil, err
  }
  return s.userCourses.Patch(ctx, nil, userCourseID, types.UserCoursePatch{
    Paused:   &paused,
    Active:   &active,
    Finished: &finished,
  })
}

// Restart rewinds the cursor to the course start and reactivates the
// enrollment. The replay counter is not touched here; Archive already
// counted the finished pass.
func (s *progressService) Restart(ctx context.Context, userCourseID uint) (*types.UserCourse, error) {
  uc, err := s.userCourses.GetByID(ctx, nil, userCourseID)
  if err != nil {
    return nil, err
  }
  course, err := s.courses.GetByID(ctx, nil, uc.CourseID)
  if err != nil {
    return nil, err
  }
  if !course.IsGenerated {
    return nil, fmt.Errorf("%w: course is not generated", perrors.ErrInvalidState)
  }

  if err := s.userCourses.DeactivateAllForUser(ctx, nil, uc.UserID); err != nil {
    return nil, err
  }

  stage := types.StageGenerated
  active := true
  archived := false
  finished := false
  paused := false
  order := 0
  return s.userCourses.Patch(ctx, nil, userCourseID, types.UserCoursePatch{
    Stage:              &stage,
    Active:             &active,
    Archived:           &archived,
    Finished:           &finished,
    Paused:             &paused,
    CurrentModuleID:    course.StartModuleID,
    CurrentSubModuleID: course.StartSubModuleID,
    CurrentOrderNumber: &order,
    Plan:               &course.DefaultPlan,
  })
}

func (s *progressService) Rate(ctx context.Context, userCourseID uint, rating int) (*types.UserCourse, error) {
  if rating < 1 || rating > 5 {
    return nil, fmt.Errorf("%w: rating must be between 1 and 5", perrors.ErrInvalidArgument)
  }
  return s.userCourses.Patch(ctx, nil, userCourseID, types.UserCoursePatch{Rating: &rating})
}
