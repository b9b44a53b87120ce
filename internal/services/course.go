package services

import (
  "context"
  "encoding/json"
  "fmt"
  "time"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "github.com/lumira/lumira-backend/internal/cache"
  "github.com/lumira/lumira-backend/internal/logger"
  perrors "github.com/lumira/lumira-backend/internal/pkg/errors"
  "github.com/lumira/lumira-backend/internal/repos"
  "github.com/lumira/lumira-backend/internal/store"
  "github.com/lumira/lumira-backend/internal/types"
)

// planWarmTTL keeps a freshly created course hot for three days, long
// enough to cover the generation window and the user's first sessions.
const planWarmTTL = 259200 * time.Second

type CourseService interface {
  // CreatePlan persists the whole course skeleton in one transaction:
  // the course row, its modules and sub-modules, and one empty text slot
  // per planned content position.
  CreatePlan(ctx context.Context, ownerID *uint, plan types.Plan, languageCode string, personalized bool) (*types.Course, error)
  GetByID(ctx context.Context, id uint) (*types.Course, error)
  ListAvailable(ctx context.Context, page, pageSize int) (*store.Paginated[types.Course], error)
  Tree(ctx context.Context, courseID uint) (*CourseTree, error)
}

// CourseTree is the fully joined course hierarchy, served to presentation
// layers in one call.
type CourseTree struct {
  Course     types.Course      `json:"course"`
  Modules    []ModuleTree      `json:"modules"`
}

type ModuleTree struct {
  Module     types.Module    `json:"module"`
  SubModules []SubModuleTree `json:"sub_modules"`
}

type SubModuleTree struct {
  SubModule types.SubModule       `json:"sub_module"`
  Contents  []types.ModuleContent `json:"contents"`
  Questions []types.Question      `json:"questions"`
}

type courseService struct {
  db         *gorm.DB
  kv         cache.Cache
  log        *logger.Logger
  courses    repos.CourseRepo
  modules    repos.ModuleRepo
  subModules repos.SubModuleRepo
  contents   repos.ContentRepo
  questions  repos.QuestionRepo
}

func NewCourseService(
  db *gorm.DB,
  kv cache.Cache,
  baseLog *logger.Logger,
  courses repos.CourseRepo,
  modules repos.ModuleRepo,
  subModules repos.SubModuleRepo,
  contents repos.ContentRepo,
  questions repos.QuestionRepo,
) CourseService {
  svcLog := baseLog.With("service", "CourseService")
  return &courseService{
    db:         db,
    kv:         kv,
    log:        svcLog,
    courses:    courses,
    modules:    modules,
    subModules: subModules,
    contents:   contents,
    questions:  questions,
  }
}

func (s *courseService) CreatePlan(ctx context.Context, ownerID *uint, plan types.Plan, languageCode string, personalized bool) (*types.Course, error) {
  if len(plan.Modules) == 0 {
    return nil, fmt.Errorf("%w: plan has no modules", perrors.ErrInvalidArgument)
  }

  rawPlan, err := json.Marshal(plan)
  if err != nil {
    return nil, fmt.Errorf("marshal plan: %w", err)
  }

  var course *types.Course
  err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    created, cErr := s.courses.Create(ctx, tx, &types.Course{
      Title:          plan.Title,
      Description:    plan.Description,
      LanguageCode:   languageCode,
      Available:      true,
      IsPersonalized: personalized,
      OwnerID:        ownerID,
      DefaultPlan:    datatypes.JSON(rawPlan),
    })
    if cErr != nil {
      return cErr
    }

    var startModuleID, startSubModuleID *uint
    for mi, pm := range plan.Modules {
      moduleRows, mErr := s.modules.CreateBatch(ctx, tx, []*types.Module{{
        CourseID:    created.ID,
        Title:       pm.Title,
        Description: pm.Description,
        OrderNumber: mi + 1,
      }})
      if mErr != nil {
        return mErr
      }
      module := moduleRows[0]
      if mi == 0 {
        startModuleID = &module.ID
      }

      for si, ps := range pm.SubModules {
        subRows, sErr := s.subModules.CreateBatch(ctx, tx, []*types.SubModule{{
          ModuleID:    module.ID,
          Title:       ps.Title,
          Description: ps.Description,
          OrderNumber: si + 1,
        }})
        if sErr != nil {
          return sErr
        }
        sub := subRows[0]
        if mi == 0 && si == 0 {
          startSubModuleID = &sub.ID
        }

        slots := make([]*types.ModuleContent, 0, len(ps.Contents))
        for ci, title := range ps.Contents {
          slots = append(slots, &types.ModuleContent{
            SubModuleID: sub.ID,
            ContentType: types.ContentTypeText,
            Content:     title,
            OrderNumber: ci + 1,
          })
        }
        if _, cErr := s.contents.CreateBatch(ctx, tx, slots); cErr != nil {
          return cErr
        }
      }
    }

    patched, pErr := s.courses.Patch(ctx, tx, created.ID, types.CoursePatch{
      StartModuleID:    startModuleID,
      StartSubModuleID: startSubModuleID,
    })
    if pErr != nil {
      return pErr
    }
    course = patched
    return nil
  })
  if err != nil {
    return nil, err
  }

  // Warm the course entry for the generation window.
  _ = s.kv.Set(ctx, fmt.Sprintf("course:id:%d", course.ID), *course, planWarmTTL)

  s.log.Info("created course plan",
    "course_id", course.ID,
    "modules", len(plan.Modules),
  )
  return course, nil
}

func (s *courseService) GetByID(ctx context.Context, id uint) (*types.Course, error) {
  return s.courses.GetByID(ctx, nil, id)
}

func (s *courseService) ListAvailable(ctx context.Context, page, pageSize int) (*store.Paginated[types.Course], error) {
  return s.courses.ListAvailable(ctx, nil, page, pageSize)
}

func (s *courseService) Tree(ctx context.Context, courseID uint) (*CourseTree, error) {
  course, err := s.courses.GetByID(ctx, nil, courseID)
  if err != nil {
    return nil, err
  }

  modules, err := s.modules.ListByCourse(ctx, nil, courseID)
  if err != nil {
    return nil, err
  }

  tree := &CourseTree{Course: *course}
  for _, m := range modules {
    subs, sErr := s.subModules.ListByModule(ctx, nil, m.ID)
    if sErr != nil {
      return nil, sErr
    }
    mt := ModuleTree{Module: m}
    for _, sub := range subs {
      contents, cErr := s.contents.ListBySubModule(ctx, nil, sub.ID)
      if cErr != nil {
        return nil, cErr
      }
      questions, qErr := s.questions.ListBySubModule(ctx, nil, sub.ID)
      if qErr != nil {
        return nil, qErr
      }
      mt.SubModules = append(mt.SubModules, SubModuleTree{
        SubModule: sub,
        Contents:  contents,
        Questions: questions,
      })
    }
    tree.Modules = append(tree.Modules, mt)
  }
  return tree, nil
}
