package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/gradebook/internal/core/grading"
	"github.com/example/gradebook/internal/ports/primary"
	"github.com/example/gradebook/internal/ports/secondary"
	"github.com/example/gradebook/internal/validation"
)

// gradingGuardError turns a rejected grading guard into a validation error.
func gradingGuardError(field string, r grading.GuardResult) error {
	if r.Allowed {
		return nil
	}
	return validation.Invalid(field, r.Reason)
}

// ============================================================================
// Grade items
// ============================================================================

// GradeItemServiceImpl implements the GradeItemService interface.
type GradeItemServiceImpl struct {
	itemRepo    secondary.GradeItemRepository
	subjectRepo secondary.SubjectRepository
	validator   *validation.Validator
}

// NewGradeItemService creates a new GradeItemService with injected dependencies.
func NewGradeItemService(
	itemRepo secondary.GradeItemRepository,
	subjectRepo secondary.SubjectRepository,
	validator *validation.Validator,
) *GradeItemServiceImpl {
	return &GradeItemServiceImpl{
		itemRepo:    itemRepo,
		subjectRepo: subjectRepo,
		validator:   validator,
	}
}

// CreateGradeItem creates a new assessment.
func (s *GradeItemServiceImpl) CreateGradeItem(ctx context.Context, req primary.GradeItemRequest) (*primary.GradeItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if err := s.check(ctx, req, 0); err != nil {
		return nil, err
	}

	record := &secondary.GradeItemRecord{ID: newID()}
	applyGradeItemRequest(record, req)
	if err := s.itemRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create grade item: %w", err)
	}
	return s.GetGradeItem(ctx, record.ID)
}

// UpdateGradeItem replaces an assessment's fields. The maximum score may not
// drop below a score already recorded against it.
func (s *GradeItemServiceImpl) UpdateGradeItem(ctx context.Context, itemID string, req primary.GradeItemRequest) (*primary.GradeItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	record, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	highest, err := s.itemRepo.HighestScore(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to read recorded scores: %w", err)
	}
	if err := s.check(ctx, req, highest); err != nil {
		return nil, err
	}

	applyGradeItemRequest(record, req)
	if err := s.itemRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update grade item: %w", err)
	}
	return s.GetGradeItem(ctx, itemID)
}

// DeleteGradeItem deletes an assessment and its scores.
func (s *GradeItemServiceImpl) DeleteGradeItem(ctx context.Context, itemID string) error {
	return s.itemRepo.Delete(ctx, itemID)
}

// GetGradeItem retrieves an assessment by ID.
func (s *GradeItemServiceImpl) GetGradeItem(ctx context.Context, itemID string) (*primary.GradeItem, error) {
	record, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return recordToGradeItem(record), nil
}

// ListGradeItems retrieves assessments matching filters.
func (s *GradeItemServiceImpl) ListGradeItems(ctx context.Context, filters primary.GradeItemFilters) ([]*primary.GradeItem, error) {
	records, err := s.itemRepo.List(ctx, secondary.GradeItemFilters{
		SubjectID: filters.SubjectID,
		SectionID: filters.SectionID,
		Quarter:   filters.Quarter,
		Category:  strings.ToUpper(filters.Category),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list grade items: %w", err)
	}

	items := make([]*primary.GradeItem, len(records))
	for i, r := range records {
		items[i] = recordToGradeItem(r)
	}
	return items, nil
}

func (s *GradeItemServiceImpl) check(ctx context.Context, req primary.GradeItemRequest, highest float64) error {
	_, err := s.subjectRepo.GetByID(ctx, req.SubjectID)
	subjectExists, err := found(err)
	if err != nil {
		return fmt.Errorf("failed to get subject: %w", err)
	}

	result := grading.CanSaveGradeItem(grading.GradeItemContext{
		SubjectID:            req.SubjectID,
		SubjectExists:        subjectExists,
		Category:             grading.Category(req.Category),
		Quarter:              req.Quarter,
		MaxScore:             req.MaxScore,
		HighestRecordedScore: highest,
	})
	field := "max_score"
	if !subjectExists {
		field = "subject_id"
	}
	return gradingGuardError(field, result)
}

func applyGradeItemRequest(r *secondary.GradeItemRecord, req primary.GradeItemRequest) {
	r.SubjectID = req.SubjectID
	r.SectionID = req.SectionID
	r.Category = req.Category
	r.Quarter = req.Quarter
	r.Title = strings.TrimSpace(req.Title)
	r.MaxScore = req.MaxScore
	r.ItemDate = req.ItemDate
}

func recordToGradeItem(r *secondary.GradeItemRecord) *primary.GradeItem {
	return &primary.GradeItem{
		ID:        r.ID,
		SubjectID: r.SubjectID,
		SectionID: r.SectionID,
		Category:  r.Category,
		Quarter:   r.Quarter,
		Title:     r.Title,
		MaxScore:  r.MaxScore,
		ItemDate:  r.ItemDate,
		Synced:    r.Synced,
		CreatedAt: formatTime(r.CreatedAt),
		UpdatedAt: formatTime(r.UpdatedAt),
	}
}

var _ primary.GradeItemService = (*GradeItemServiceImpl)(nil)

// ============================================================================
// Scores
// ============================================================================

// ScoreServiceImpl implements the ScoreService interface.
type ScoreServiceImpl struct {
	scoreRepo   secondary.ScoreRepository
	studentRepo secondary.StudentRepository
	itemRepo    secondary.GradeItemRepository
	validator   *validation.Validator
	logger      *zap.Logger
}

// NewScoreService creates a new ScoreService with injected dependencies.
func NewScoreService(
	scoreRepo secondary.ScoreRepository,
	studentRepo secondary.StudentRepository,
	itemRepo secondary.GradeItemRepository,
	validator *validation.Validator,
	logger *zap.Logger,
) *ScoreServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreServiceImpl{
		scoreRepo:   scoreRepo,
		studentRepo: studentRepo,
		itemRepo:    itemRepo,
		validator:   validator,
		logger:      logger,
	}
}

// SaveScore records a score, replacing any earlier score for the pair.
func (s *ScoreServiceImpl) SaveScore(ctx context.Context, req primary.SaveScoreRequest) (*primary.Score, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	guardCtx := grading.SaveScoreContext{
		StudentID:   req.StudentID,
		GradeItemID: req.GradeItemID,
		Score:       req.Score,
	}
	_, err := s.studentRepo.GetByID(ctx, req.StudentID)
	if guardCtx.StudentExists, err = found(err); err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	item, err := s.itemRepo.GetByID(ctx, req.GradeItemID)
	if guardCtx.ItemExists, err = found(err); err != nil {
		return nil, fmt.Errorf("failed to get grade item: %w", err)
	}
	if guardCtx.ItemExists {
		guardCtx.MaxScore = item.MaxScore
	}

	field := "score"
	switch {
	case !guardCtx.StudentExists:
		field = "student_id"
	case !guardCtx.ItemExists:
		field = "grade_item_id"
	}
	if err := gradingGuardError(field, grading.CanSaveScore(guardCtx)); err != nil {
		return nil, err
	}

	record := &secondary.ScoreRecord{
		ID:          newID(),
		StudentID:   req.StudentID,
		GradeItemID: req.GradeItemID,
		Score:       req.Score,
		Remarks:     strings.TrimSpace(req.Remarks),
	}
	op, err := s.scoreRepo.Save(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to save score: %w", err)
	}
	s.logger.Debug("score saved",
		zap.String("student_id", req.StudentID),
		zap.String("grade_item_id", req.GradeItemID),
		zap.String("operation", op),
	)

	saved, err := s.scoreRepo.Get(ctx, req.StudentID, req.GradeItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch saved score: %w", err)
	}
	return recordToScore(saved), nil
}

// DeleteScore deletes a score.
func (s *ScoreServiceImpl) DeleteScore(ctx context.Context, scoreID string) error {
	return s.scoreRepo.Delete(ctx, scoreID)
}

// GetScore retrieves a student's score on an item; nil when unscored.
func (s *ScoreServiceImpl) GetScore(ctx context.Context, studentID, gradeItemID string) (*primary.Score, error) {
	record, err := s.scoreRepo.Get(ctx, studentID, gradeItemID)
	exists, err := found(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	if !exists {
		return nil, nil
	}
	return recordToScore(record), nil
}

// ListItemScores retrieves every score recorded against an item.
func (s *ScoreServiceImpl) ListItemScores(ctx context.Context, gradeItemID string) ([]*primary.Score, error) {
	records, err := s.scoreRepo.ListForItem(ctx, gradeItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}

	scores := make([]*primary.Score, len(records))
	for i, r := range records {
		scores[i] = recordToScore(r)
	}
	return scores, nil
}

func recordToScore(r *secondary.ScoreRecord) *primary.Score {
	return &primary.Score{
		ID:          r.ID,
		StudentID:   r.StudentID,
		GradeItemID: r.GradeItemID,
		Score:       r.Score,
		Remarks:     r.Remarks,
		Synced:      r.Synced,
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
}

var _ primary.ScoreService = (*ScoreServiceImpl)(nil)

// ============================================================================
// Quarterly grades
// ============================================================================

// GradeServiceImpl implements the GradeService interface.
type GradeServiceImpl struct {
	itemRepo    secondary.GradeItemRepository
	scoreRepo   secondary.ScoreRepository
	gradeRepo   secondary.QuarterlyGradeRepository
	studentRepo secondary.StudentRepository
	subjectRepo secondary.SubjectRepository
	engine      *grading.Engine
	validator   *validation.Validator
}

// NewGradeService creates a new GradeService with injected dependencies.
func NewGradeService(
	itemRepo secondary.GradeItemRepository,
	scoreRepo secondary.ScoreRepository,
	gradeRepo secondary.QuarterlyGradeRepository,
	studentRepo secondary.StudentRepository,
	subjectRepo secondary.SubjectRepository,
	engine *grading.Engine,
	validator *validation.Validator,
) *GradeServiceImpl {
	if engine == nil {
		engine = grading.DefaultEngine()
	}
	return &GradeServiceImpl{
		itemRepo:    itemRepo,
		scoreRepo:   scoreRepo,
		gradeRepo:   gradeRepo,
		studentRepo: studentRepo,
		subjectRepo: subjectRepo,
		engine:      engine,
		validator:   validator,
	}
}

// CalculateQuarterlyGrade computes and persists a quarterly grade.
// Recomputing an unchanged key yields the same values.
func (s *GradeServiceImpl) CalculateQuarterlyGrade(ctx context.Context, req primary.CalculateGradeRequest) (*primary.QuarterlyGrade, error) {
	record, err := s.compute(ctx, req)
	if err != nil {
		return nil, err
	}

	if _, err := s.gradeRepo.Upsert(ctx, record.QuarterlyGradeRecord); err != nil {
		return nil, fmt.Errorf("failed to save quarterly grade: %w", err)
	}

	saved, err := s.gradeRepo.Get(ctx, req.StudentID, req.SubjectID, req.Quarter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quarterly grade: %w", err)
	}
	grade := recordToQuarterlyGrade(saved)
	grade.WrittenWorks, grade.PerformanceTasks, grade.QuarterlyAssessment = breakdownFrom(record)
	return grade, nil
}

// PreviewQuarterlyGrade computes a quarterly grade without persisting it.
func (s *GradeServiceImpl) PreviewQuarterlyGrade(ctx context.Context, req primary.CalculateGradeRequest) (*primary.QuarterlyGrade, error) {
	record, err := s.compute(ctx, req)
	if err != nil {
		return nil, err
	}
	grade := recordToQuarterlyGrade(record.QuarterlyGradeRecord)
	grade.ID = ""
	grade.WrittenWorks, grade.PerformanceTasks, grade.QuarterlyAssessment = breakdownFrom(record)
	return grade, nil
}

// GetQuarterlyGrade retrieves a stored grade; nil when never computed.
func (s *GradeServiceImpl) GetQuarterlyGrade(ctx context.Context, req primary.CalculateGradeRequest) (*primary.QuarterlyGrade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	record, err := s.gradeRepo.Get(ctx, req.StudentID, req.SubjectID, req.Quarter)
	exists, err := found(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get quarterly grade: %w", err)
	}
	if !exists {
		return nil, nil
	}
	return recordToQuarterlyGrade(record), nil
}

// ListQuarterlyGrades retrieves stored grades matching filters.
func (s *GradeServiceImpl) ListQuarterlyGrades(ctx context.Context, filters primary.QuarterlyGradeFilters) ([]*primary.QuarterlyGrade, error) {
	records, err := s.gradeRepo.List(ctx, secondary.QuarterlyGradeFilters{
		StudentID: filters.StudentID,
		SubjectID: filters.SubjectID,
		Quarter:   filters.Quarter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list quarterly grades: %w", err)
	}

	grades := make([]*primary.QuarterlyGrade, len(records))
	for i, r := range records {
		grades[i] = recordToQuarterlyGrade(r)
	}
	return grades, nil
}

// Transmute converts an initial grade with the configured table.
func (s *GradeServiceImpl) Transmute(initialGrade float64) int {
	return s.engine.Transmute(initialGrade)
}

// computedGrade is a grade record together with the raw category sums that
// the stored row does not keep.
type computedGrade struct {
	*secondary.QuarterlyGradeRecord
	result grading.Result
}

// compute loads the items of (subject, quarter) that apply to the student
// and the student's scores on them, then runs the engine. Items scoped to a
// section the student is not enrolled in are left out. Unscored items count
// as zero achieved.
func (s *GradeServiceImpl) compute(ctx context.Context, req primary.CalculateGradeRequest) (*computedGrade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if err := s.check(ctx, req); err != nil {
		return nil, err
	}

	items, err := s.itemRepo.List(ctx, secondary.GradeItemFilters{
		SubjectID:         req.SubjectID,
		Quarter:           req.Quarter,
		EnrolledStudentID: req.StudentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list grade items: %w", err)
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	scores, err := s.scoreRepo.ListForStudent(ctx, req.StudentID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	achieved := make(map[string]float64, len(scores))
	for _, sc := range scores {
		achieved[sc.GradeItemID] = sc.Score
	}

	entries := make([]grading.Entry, len(items))
	for i, item := range items {
		entries[i] = grading.Entry{
			Category: grading.Category(item.Category),
			Achieved: achieved[item.ID],
			Possible: item.MaxScore,
		}
	}
	result := s.engine.Compute(entries)

	return &computedGrade{
		QuarterlyGradeRecord: &secondary.QuarterlyGradeRecord{
			ID:             newID(),
			StudentID:      req.StudentID,
			SubjectID:      req.SubjectID,
			Quarter:        req.Quarter,
			WWPercentage:   result.WrittenWorks.Percentage,
			WWWeighted:     result.WrittenWorks.Weighted,
			PTPercentage:   result.PerformanceTasks.Percentage,
			PTWeighted:     result.PerformanceTasks.Weighted,
			QAPercentage:   result.QuarterlyAssessment.Percentage,
			QAWeighted:     result.QuarterlyAssessment.Weighted,
			InitialGrade:   result.InitialGrade,
			QuarterlyGrade: result.QuarterlyGrade,
		},
		result: result,
	}, nil
}

// check rejects grades for a student or subject that does not exist.
func (s *GradeServiceImpl) check(ctx context.Context, req primary.CalculateGradeRequest) error {
	guardCtx := grading.CalculateGradeContext{StudentID: req.StudentID, SubjectID: req.SubjectID}

	_, err := s.studentRepo.GetByID(ctx, req.StudentID)
	if guardCtx.StudentExists, err = found(err); err != nil {
		return fmt.Errorf("failed to get student: %w", err)
	}
	_, err = s.subjectRepo.GetByID(ctx, req.SubjectID)
	if guardCtx.SubjectExists, err = found(err); err != nil {
		return fmt.Errorf("failed to get subject: %w", err)
	}

	field := "subject_id"
	if !guardCtx.StudentExists {
		field = "student_id"
	}
	return gradingGuardError(field, grading.CanCalculateGrade(guardCtx))
}

func breakdownFrom(g *computedGrade) (ww, pt, qa primary.CategoryBreakdown) {
	conv := func(c grading.CategoryResult) primary.CategoryBreakdown {
		return primary.CategoryBreakdown{
			Achieved:   c.Achieved,
			Possible:   c.Possible,
			Percentage: c.Percentage,
			Weighted:   c.Weighted,
		}
	}
	return conv(g.result.WrittenWorks), conv(g.result.PerformanceTasks), conv(g.result.QuarterlyAssessment)
}

func recordToQuarterlyGrade(r *secondary.QuarterlyGradeRecord) *primary.QuarterlyGrade {
	return &primary.QuarterlyGrade{
		ID:                  r.ID,
		StudentID:           r.StudentID,
		SubjectID:           r.SubjectID,
		Quarter:             r.Quarter,
		WrittenWorks:        primary.CategoryBreakdown{Percentage: r.WWPercentage, Weighted: r.WWWeighted},
		PerformanceTasks:    primary.CategoryBreakdown{Percentage: r.PTPercentage, Weighted: r.PTWeighted},
		QuarterlyAssessment: primary.CategoryBreakdown{Percentage: r.QAPercentage, Weighted: r.QAWeighted},
		InitialGrade:        r.InitialGrade,
		QuarterlyGrade:      r.QuarterlyGrade,
		Synced:              r.Synced,
		UpdatedAt:           formatTime(r.UpdatedAt),
	}
}

var _ primary.GradeService = (*GradeServiceImpl)(nil)
