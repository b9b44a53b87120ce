package services

import (
  "context"
  "encoding/json"
  "fmt"
  "runtime"
  "strings"
  "sync"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/semaphore"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/lumira/lumira-backend/internal/clients/openai"
  "github.com/lumira/lumira-backend/internal/clients/seaweedfs"
  "github.com/lumira/lumira-backend/internal/logger"
  perrors "github.com/lumira/lumira-backend/internal/pkg/errors"
  "github.com/lumira/lumira-backend/internal/repos"
  "github.com/lumira/lumira-backend/internal/types"
  "github.com/lumira/lumira-backend/internal/utils"
)

// Prompt template names looked up in the store.
const (
  PromptCoursePlan      = "course_plan"
  PromptModuleContent   = "module_content"
  PromptImagePrompt     = "image_prompt"
  PromptMultipleChoice  = "multiple_choice_question"
  PromptOpenQuestion    = "open_question"
  PromptCheckAnswer     = "check_answer"
)

// Answer scores are on a 1..5 scale; 4 and up counts as correct.
const (
  correctAnswerScore = 5
  wrongAnswerScore   = 2
  passingScore       = 4
)

// UsageTotals accumulates spend across generator calls. Add is safe for
// concurrent use.
type UsageTotals struct {
  mu               sync.Mutex
  PromptTokens     int     `json:"prompt_tokens"`
  CompletionTokens int     `json:"completion_tokens"`
  SpentAmount      float64 `json:"spent_amount"`
}

func (u *UsageTotals) Add(inputTokens, outputTokens int, spent float64) {
  u.mu.Lock()
  u.PromptTokens += inputTokens
  u.CompletionTokens += outputTokens
  u.SpentAmount += spent
  u.mu.Unlock()
}

type GenerationService interface {
  // GeneratePlan asks the model for a course blueprint on the topic.
  GeneratePlan(ctx context.Context, topic, languageCode string, totals *UsageTotals) (*types.Plan, error)
  // Enqueue records a queued run for the worker to pick up.
  Enqueue(ctx context.Context, userID, courseID, userCourseID uint, languageCode string) (*types.CourseGenerationRun, error)
  // Generate populates every sub-module of the course. Exported for the
  // worker and for synchronous callers (tests).
  Generate(ctx context.Context, run *types.CourseGenerationRun) (*UsageTotals, error)
  // CheckAnswer grades a reply to an open question and stores it.
  CheckAnswer(ctx context.Context, userID, questionID uint, answer string) (*types.UserAnswer, error)
  // StartWorker runs the claim loop until ctx is cancelled.
  StartWorker(ctx context.Context)
}

type generationService struct {
  db          *gorm.DB
  log         *logger.Logger
  generator   openai.Client
  blobs       seaweedfs.Client
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

  modelName    string
  withImages   bool
  maxAttempts  int
  pollInterval time.Duration
  retryDelay   time.Duration
  staleRunning time.Duration
}

func NewGenerationService(
  db *gorm.DB,
  baseLog *logger.Logger,
  generator openai.Client,
  blobs seaweedfs.Client,
  courses repos.CourseRepo,
  modules repos.ModuleRepo,
  subModules repos.SubModuleRepo,
  contents repos.ContentRepo,
  questions repos.QuestionRepo,
  userCourses repos.UserCourseRepo,
  answers repos.AnswerRepo,
  prompts repos.PromptRepo,
  gptModels repos.GPTModelRepo,
  runs repos.GenerationRunRepo,
) GenerationService {
  svcLog := baseLog.With("service", "GenerationService")
  return &generationService{
    db:          db,
    log:         svcLog,
    generator:   generator,
    blobs:       blobs,
    courses:     courses,
    modules:     modules,
    subModules:  subModules,
    contents:    contents,
    questions:   questions,
    userCourses: userCourses,
    answers:     answers,
    prompts:     prompts,
    gptModels:   gptModels,
    runs:        runs,

    modelName:    utils.GetEnv("OPENAI_MODEL", "gpt-4o", svcLog),
    withImages:   utils.GetEnv("GENERATION_WITH_IMAGES", "true", svcLog) == "true",
    maxAttempts:  utils.GetEnvAsInt("GENERATION_MAX_ATTEMPTS", 3, svcLog),
    pollInterval: time.Duration(utils.GetEnvAsInt("GENERATION_POLL_SECONDS", 5, svcLog)) * time.Second,
    retryDelay:   time.Duration(utils.GetEnvAsInt("GENERATION_RETRY_SECONDS", 60, svcLog)) * time.Second,
    staleRunning: time.Duration(utils.GetEnvAsInt("GENERATION_STALE_SECONDS", 300, svcLog)) * time.Second,
  }
}

func (s *generationService) generateJSON(ctx context.Context, promptName string, vars map[string]string, totals *UsageTotals) (map[string]any, error) {
  prompt, err := s.prompts.GetByName(ctx, nil, promptName)
  if err != nil {
    return nil, fmt.Errorf("load prompt %q: %w", promptName, err)
  }
  model, err := s.gptModels.GetByName(ctx, nil, s.modelName)
  if err != nil {
    return nil, fmt.Errorf("load model %q: %w", s.modelName, err)
  }

  result, err := s.generator.GenerateJSON(ctx, prompt, model, vars)
  if err != nil {
    return nil, fmt.Errorf("%w: %s: %v", perrors.ErrGenerationFailure, promptName, err)
  }
  if totals != nil {
    totals.Add(result.InputTokens, result.OutputTokens, result.SpentAmount)
  }
  return result.Content, nil
}

func (s *generationService) GeneratePlan(ctx context.Context, topic, languageCode string, totals *UsageTotals) (*types.Plan, error) {
  content, err := s.generateJSON(ctx, PromptCoursePlan, map[string]string{
    "topic":    topic,
    "language": languageCode,
  }, totals)
  if err != nil {
    return nil, err
  }

  raw, err := json.Marshal(content)
  if err != nil {
    return nil, err
  }
  var plan types.Plan
  if err := json.Unmarshal(raw, &plan); err != nil {
    return nil, fmt.Errorf("%w: plan has unexpected shape: %v", perrors.ErrGenerationFailure, err)
  }
  if plan.Title == "" || len(plan.Modules) == 0 {
    return nil, fmt.Errorf("%w: plan is empty", perrors.ErrGenerationFailure)
  }
  return &plan, nil
}

func (s *generationService) Enqueue(ctx context.Context, userID, courseID, userCourseID uint, languageCode string) (*types.CourseGenerationRun, error) {
  course, err := s.courses.GetByID(ctx, nil, courseID)
  if err != nil {
    return nil, err
  }
  if course.IsGenerated {
    return nil, fmt.Errorf("%w: course is already generated", perrors.ErrInvalidState)
  }

  created, err := s.runs.Create(ctx, nil, []*types.CourseGenerationRun{{
    ID:           uuid.New(),
    UserID:       userID,
    CourseID:     courseID,
    UserCourseID: userCourseID,
    LanguageCode: languageCode,
    Status:       types.RunStatusQueued,
  }})
  if err != nil {
    return nil, err
  }

  stage := types.StageGenerating
  if _, err := s.userCourses.Patch(ctx, nil, userCourseID, types.UserCoursePatch{Stage: &stage}); err != nil {
    return nil, err
  }
  return created[0], nil
}

// Generate fans out one task per sub-module bounded by available
// parallelism. Content inside a sub-module is sequential; completed
// sub-modules stay persisted even when a sibling fails.
func (s *generationService) Generate(ctx context.Context, run *types.CourseGenerationRun) (*UsageTotals, error) {
  course, err := s.courses.GetByID(ctx, nil, run.CourseID)
  if err != nil {
    return nil, err
  }
  if course.IsGenerated {
    return nil, fmt.Errorf("%w: course is already generated", perrors.ErrInvalidState)
  }

  unavailable := false
  if _, err := s.courses.Patch(ctx, nil, course.ID, types.CoursePatch{Available: &unavailable}); err != nil {
    return nil, err
  }

  modules, err := s.modules.ListByCourse(ctx, nil, course.ID)
  if err != nil {
    return nil, err
  }

  type task struct {
    module types.Module
    sub    types.SubModule
  }
  var tasks []task
  for _, m := range modules {
    subs, sErr := s.subModules.ListByModule(ctx, nil, m.ID)
    if sErr != nil {
      return nil, sErr
    }
    for _, sub := range subs {
      tasks = append(tasks, task{module: m, sub: sub})
    }
  }

  totals := &UsageTotals{}
  sem := semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))
  var wg sync.WaitGroup
  var mu sync.Mutex
  var failures []error

  for i, t := range tasks {
    if err := sem.Acquire(ctx, 1); err != nil {
      return nil, err
    }
    wg.Add(1)
    firstInCourse := i == 0
    t := t
    go func() {
      defer wg.Done()
      defer sem.Release(1)
      if gErr := s.generateSubModule(ctx, course, t.sub, firstInCourse, totals); gErr != nil {
        s.log.Error("sub-module generation failed",
          "course_id", course.ID,
          "sub_module_id", t.sub.ID,
          "error", gErr,
        )
        mu.Lock()
        failures = append(failures, gErr)
        mu.Unlock()
      }
    }()
  }
  wg.Wait()

  if len(failures) > 0 {
    // Leave the course unavailable; a retry of the run resumes from the
    // durable partial state.
    return totals, fmt.Errorf("%w: %d of %d sub-modules failed: %v",
      perrors.ErrGenerationFailure, len(failures), len(tasks), failures[0])
  }

  generated := true
  available := true
  if _, err := s.courses.Patch(ctx, nil, course.ID, types.CoursePatch{
    IsGenerated: &generated,
    Available:   &available,
  }); err != nil {
    return totals, err
  }

  uc, err := s.userCourses.GetByID(ctx, nil, run.UserCourseID)
  if err != nil {
    return totals, err
  }
  stage := types.StageGenerated
  promptTokens := uc.PromptTokens + totals.PromptTokens
  completionTokens := uc.CompletionTokens + totals.CompletionTokens
  spent := uc.SpentAmount + totals.SpentAmount
  if _, err := s.userCourses.Patch(ctx, nil, run.UserCourseID, types.UserCoursePatch{
    Stage:              &stage,
    CurrentModuleID:    course.StartModuleID,
    CurrentSubModuleID: course.StartSubModuleID,
    PromptTokens:       &promptTokens,
    CompletionTokens:   &completionTokens,
    SpentAmount:        &spent,
  }); err != nil {
    return totals, err
  }
  if err := s.userCourses.InvalidateUserViews(ctx, run.UserID); err != nil {
    s.log.Warn("failed to invalidate user views after generation", "user_id", run.UserID, "error", err)
  }

  s.log.Info("course generated",
    "course_id", course.ID,
    "sub_modules", len(tasks),
    "prompt_tokens", totals.PromptTokens,
    "completion_tokens", totals.CompletionTokens,
    "spent_amount", totals.SpentAmount,
  )
  return totals, nil
}

func (s *generationService) generateSubModule(ctx context.Context, course *types.Course, sub types.SubModule, firstInCourse bool, totals *UsageTotals) error {
  done, err := s.resetOrSkipSubModule(ctx, sub)
  if err != nil {
    return err
  }
  if done {
    s.log.Debug("sub-module already generated", "sub_module_id", sub.ID)
    return nil
  }

  slots, err := s.contents.ListBySubModule(ctx, nil, sub.ID)
  if err != nil {
    return err
  }

  var textSlots []types.ModuleContent
  for _, slot := range slots {
    if slot.ContentType == types.ContentTypeText {
      textSlots = append(textSlots, slot)
    }
  }

  var previousTitles []string
  var generated []string
  for i, slot := range textSlots {
    greeting := "false"
    if firstInCourse && i == 0 {
      greeting = "true"
    }

    content, gErr := s.generateJSON(ctx, PromptModuleContent, map[string]string{
      "course_title":     course.Title,
      "sub_module_title": sub.Title,
      "slot_title":       slot.Content,
      "previous_slots":   strings.Join(previousTitles, "; "),
      "greeting":         greeting,
      "language":         course.LanguageCode,
    }, totals)
    if gErr != nil {
      return gErr
    }

    body, _ := content["content"].(string)
    if body == "" {
      return fmt.Errorf("%w: empty content for slot %d", perrors.ErrGenerationFailure, slot.OrderNumber)
    }
    if _, pErr := s.contents.Patch(ctx, nil, slot.ID, sub.ID, types.ContentTypeText, slot.OrderNumber, types.ModuleContentPatch{
      Content: &body,
    }); pErr != nil {
      return pErr
    }
    previousTitles = append(previousTitles, slot.Content)
    generated = append(generated, body)

    if s.withImages {
      if iErr := s.generateImageFor(ctx, sub, slot.OrderNumber, body, totals); iErr != nil {
        return iErr
      }
    }
  }

  return s.generateQuestions(ctx, course, sub, generated, totals)
}

// resetOrSkipSubModule decides what a rerun does with a sub-module. The
// closing open question is the last row a successful pass writes, so its
// presence means the sub-module is complete and must not be generated
// again; anything less is a leftover of a failed attempt and is cleared so
// the rerun cannot stack a second question onto an occupied order number.
func (s *generationService) resetOrSkipSubModule(ctx context.Context, sub types.SubModule) (bool, error) {
  existing, err := s.questions.ListBySubModule(ctx, nil, sub.ID)
  if err != nil {
    return false, err
  }
  for _, q := range existing {
    if q.QuestionType == types.QuestionTypeOpen {
      return true, nil
    }
  }
  if len(existing) > 0 {
    if err := s.questions.DeleteBySubModule(ctx, nil, sub.ID); err != nil {
      return false, err
    }
  }
  if s.withImages {
    if err := s.contents.DeleteBySubModuleAndType(ctx, nil, sub.ID, types.ContentTypeImage); err != nil {
      return false, err
    }
  }
  return false, nil
}

func (s *generationService) generateImageFor(ctx context.Context, sub types.SubModule, orderNumber int, body string, totals *UsageTotals) error {
  promptContent, err := s.generateJSON(ctx, PromptImagePrompt, map[string]string{
    "content": body,
  }, totals)
  if err != nil {
    return err
  }
  imagePrompt, _ := promptContent["prompt"].(string)
  if imagePrompt == "" {
    return fmt.Errorf("%w: empty image prompt", perrors.ErrGenerationFailure)
  }

  image, err := s.generator.GenerateImage(ctx, imagePrompt)
  if err != nil {
    return fmt.Errorf("%w: image: %v", perrors.ErrGenerationFailure, err)
  }
  totals.Add(0, 0, image.SpentAmount)

  raw, err := s.blobs.Download(ctx, image.URL)
  if err != nil {
    return fmt.Errorf("%w: download image: %v", perrors.ErrGenerationFailure, err)
  }
  fid, err := s.blobs.Upload(ctx, raw)
  if err != nil {
    return fmt.Errorf("%w: store image: %v", perrors.ErrGenerationFailure, err)
  }

  _, err = s.contents.CreateBatch(ctx, nil, []*types.ModuleContent{{
    SubModuleID: sub.ID,
    ContentType: types.ContentTypeImage,
    ImageURL:    fid,
    OrderNumber: orderNumber,
  }})
  return err
}

// generateQuestions writes one multiple-choice question per text slot and a
// closing open question at position N+1.
func (s *generationService) generateQuestions(ctx context.Context, course *types.Course, sub types.SubModule, bodies []string, totals *UsageTotals) error {
  for i, body := range bodies {
    content, err := s.generateJSON(ctx, PromptMultipleChoice, map[string]string{
      "course_title": course.Title,
      "content":      body,
      "language":     course.LanguageCode,
    }, totals)
    if err != nil {
      return err
    }

    question, err := questionFromContent(content, types.QuestionTypeMultipleChoice, sub.ID, i+1)
    if err != nil {
      return err
    }
    if _, err := s.questions.CreateBatch(ctx, nil, []*types.Question{question}); err != nil {
      return err
    }
  }

  content, err := s.generateJSON(ctx, PromptOpenQuestion, map[string]string{
    "course_title": course.Title,
    "content":      strings.Join(bodies, "\n\n"),
    "language":     course.LanguageCode,
  }, totals)
  if err != nil {
    return err
  }

  question, err := questionFromContent(content, types.QuestionTypeOpen, sub.ID, len(bodies)+1)
  if err != nil {
    return err
  }
  _, err = s.questions.CreateBatch(ctx, nil, []*types.Question{question})
  return err
}

func questionFromContent(content map[string]any, kind types.QuestionType, subModuleID uint, orderNumber int) (*types.Question, error) {
  text, _ := content["question"].(string)
  if text == "" {
    return nil, fmt.Errorf("%w: empty question text", perrors.ErrGenerationFailure)
  }
  correct, _ := content["correct_answer"].(string)
  explanation, _ := content["explanation"].(string)

  question := &types.Question{
    SubModuleID:   subModuleID,
    QuestionType:  kind,
    QuestionText:  text,
    CorrectAnswer: correct,
    Explanation:   explanation,
    OrderNumber:   orderNumber,
  }

  if kind == types.QuestionTypeMultipleChoice {
    rawOptions, ok := content["options"]
    if !ok {
      return nil, fmt.Errorf("%w: multiple choice question without options", perrors.ErrGenerationFailure)
    }
    encoded, err := json.Marshal(rawOptions)
    if err != nil {
      return nil, err
    }
    question.Options = datatypes.JSON(encoded)
  }
  return question, nil
}

func (s *generationService) CheckAnswer(ctx context.Context, userID, questionID uint, answer string) (*types.UserAnswer, error) {
  question, err := s.questions.GetByID(ctx, nil, questionID)
  if err != nil {
    return nil, err
  }

  var score int
  var feedback string

  if question.QuestionType == types.QuestionTypeMultipleChoice {
    // Graded locally on the 1..5 scale: full marks for the right
    // option, a low passing mark otherwise.
    if strings.TrimSpace(strings.ToLower(answer)) == strings.TrimSpace(strings.ToLower(question.CorrectAnswer)) {
      score = correctAnswerScore
    } else {
      score = wrongAnswerScore
    }
    feedback = question.Explanation
  } else {
    content, gErr := s.generateJSON(ctx, PromptCheckAnswer, map[string]string{
      "question":       question.QuestionText,
      "correct_answer": question.CorrectAnswer,
      "answer":         answer,
    }, nil)
    if gErr != nil {
      return nil, gErr
    }
    raw, _ := content["score"].(float64)
    score = int(raw)
    feedback, _ = content["feedback"].(string)
  }

  return s.answers.Create(ctx, nil, &types.UserAnswer{
    UserID:     userID,
    QuestionID: questionID,
    Answer:     answer,
    Score:      score,
    IsCorrect:  score >= passingScore,
    Feedback:   feedback,
  })
}

// StartWorker polls for runnable runs and supervises each claimed run with
// a heartbeat until it finishes.
func (s *generationService) StartWorker(ctx context.Context) {
  ticker := time.NewTicker(s.pollInterval)
  defer ticker.Stop()

  s.log.Info("generation worker started", "poll_interval", s.pollInterval.String())
  for {
    select {
    case <-ctx.Done():
      s.log.Info("generation worker stopped")
      return
    case <-ticker.C:
      run, err := s.runs.ClaimNextRunnable(ctx, nil, s.maxAttempts, s.retryDelay, s.staleRunning)
      if err != nil {
        s.log.Error("failed to claim generation run", "error", err)
        continue
      }
      if run == nil {
        continue
      }
      s.runClaimed(ctx, run)
    }
  }
}

func (s *generationService) runClaimed(ctx context.Context, run *types.CourseGenerationRun) {
  s.log.Info("claimed generation run", "run_id", run.ID, "course_id", run.CourseID, "attempts", run.Attempts)

  hbCtx, stopHeartbeat := context.WithCancel(ctx)
  go func() {
    hb := time.NewTicker(30 * time.Second)
    defer hb.Stop()
    for {
      select {
      case <-hbCtx.Done():
        return
      case <-hb.C:
        if err := s.runs.Heartbeat(hbCtx, nil, run.ID); err != nil {
          s.log.Warn("heartbeat failed", "run_id", run.ID, "error", err)
        }
      }
    }
  }()
  defer stopHeartbeat()

  totals, err := s.Generate(ctx, run)
  if err != nil {
    now := time.Now()
    _ = s.runs.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
      "status":        types.RunStatusFailed,
      "error":         err.Error(),
      "last_error_at": now,
    })
    return
  }

  metadata, _ := json.Marshal(map[string]any{
    "prompt_tokens":     totals.PromptTokens,
    "completion_tokens": totals.CompletionTokens,
    "spent_amount":      totals.SpentAmount,
  })
  _ = s.runs.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
    "status":   types.RunStatusSucceeded,
    "metadata": datatypes.JSON(metadata),
  })
}
