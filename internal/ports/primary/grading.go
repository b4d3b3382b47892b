package primary

import "context"

// GradeItemService defines the primary port for assessment definitions.
type GradeItemService interface {
	CreateGradeItem(ctx context.Context, req GradeItemRequest) (*GradeItem, error)
	UpdateGradeItem(ctx context.Context, itemID string, req GradeItemRequest) (*GradeItem, error)
	// DeleteGradeItem removes the item with its scores.
	DeleteGradeItem(ctx context.Context, itemID string) error
	GetGradeItem(ctx context.Context, itemID string) (*GradeItem, error)
	ListGradeItems(ctx context.Context, filters GradeItemFilters) ([]*GradeItem, error)
}

// GradeItemRequest contains the editable fields of a grade item.
type GradeItemRequest struct {
	SubjectID string  `json:"subject_id" validate:"required"`
	SectionID string  `json:"section_id"`
	Category  string  `json:"category" validate:"required,oneof=WW PT QA"`
	Quarter   int     `json:"quarter" validate:"min=1,max=4"`
	Title     string  `json:"title" validate:"notblank"`
	MaxScore  float64 `json:"max_score" validate:"gt=0"`
	ItemDate  string  `json:"item_date" validate:"omitempty,datetime=2006-01-02"`
}

// GradeItemFilters contains filter options for listing grade items.
type GradeItemFilters struct {
	SubjectID string `json:"subject_id"`
	SectionID string `json:"section_id"`
	Quarter   int    `json:"quarter"`
	Category  string `json:"category"`
}

// GradeItem represents an assessment at the port boundary.
type GradeItem struct {
	ID        string  `json:"id"`
	SubjectID string  `json:"subject_id"`
	SectionID string  `json:"section_id,omitempty"`
	Category  string  `json:"category"`
	Quarter   int     `json:"quarter"`
	Title     string  `json:"title"`
	MaxScore  float64 `json:"max_score"`
	ItemDate  string  `json:"item_date,omitempty"`
	Synced    bool    `json:"synced"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// ScoreService defines the primary port for student scores.
type ScoreService interface {
	// SaveScore records the student's score on an item, replacing any
	// previous score for the same pair.
	SaveScore(ctx context.Context, req SaveScoreRequest) (*Score, error)
	DeleteScore(ctx context.Context, scoreID string) error
	// GetScore returns nil when the student has no score on the item.
	GetScore(ctx context.Context, studentID, gradeItemID string) (*Score, error)
	ListItemScores(ctx context.Context, gradeItemID string) ([]*Score, error)
}

// SaveScoreRequest contains parameters for saving a score.
type SaveScoreRequest struct {
	StudentID   string  `json:"student_id" validate:"required"`
	GradeItemID string  `json:"grade_item_id" validate:"required"`
	Score       float64 `json:"score" validate:"gte=0"`
	Remarks     string  `json:"remarks" validate:"max=255"`
}

// Score represents one student's score on one grade item.
type Score struct {
	ID          string  `json:"id"`
	StudentID   string  `json:"student_id"`
	GradeItemID string  `json:"grade_item_id"`
	Score       float64 `json:"score"`
	Remarks     string  `json:"remarks,omitempty"`
	Synced      bool    `json:"synced"`
	UpdatedAt   string  `json:"updated_at"`
}

// GradeService defines the primary port for quarterly grade computation.
type GradeService interface {
	// CalculateQuarterlyGrade computes the grade from the stored scores and
	// persists it, replacing any previous value for the same key.
	CalculateQuarterlyGrade(ctx context.Context, req CalculateGradeRequest) (*QuarterlyGrade, error)

	// PreviewQuarterlyGrade computes without persisting.
	PreviewQuarterlyGrade(ctx context.Context, req CalculateGradeRequest) (*QuarterlyGrade, error)

	// GetQuarterlyGrade returns nil when the grade was never computed.
	GetQuarterlyGrade(ctx context.Context, req CalculateGradeRequest) (*QuarterlyGrade, error)

	ListQuarterlyGrades(ctx context.Context, filters QuarterlyGradeFilters) ([]*QuarterlyGrade, error)

	// Transmute converts an initial grade with the configured table.
	Transmute(initialGrade float64) int
}

// CalculateGradeRequest names one (student, subject, quarter) key.
type CalculateGradeRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	Quarter   int    `json:"quarter" validate:"min=1,max=4"`
}

// QuarterlyGradeFilters contains filter options for listing grades.
type QuarterlyGradeFilters struct {
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
	Quarter   int    `json:"quarter"`
}

// CategoryBreakdown is one category's share of a quarterly grade.
type CategoryBreakdown struct {
	Achieved   float64 `json:"achieved"`
	Possible   float64 `json:"possible"`
	Percentage float64 `json:"percentage"`
	Weighted   float64 `json:"weighted"`
}

// QuarterlyGrade represents a computed grade at the port boundary.
type QuarterlyGrade struct {
	ID                  string            `json:"id,omitempty"`
	StudentID           string            `json:"student_id"`
	SubjectID           string            `json:"subject_id"`
	Quarter             int               `json:"quarter"`
	WrittenWorks        CategoryBreakdown `json:"written_works"`
	PerformanceTasks    CategoryBreakdown `json:"performance_tasks"`
	QuarterlyAssessment CategoryBreakdown `json:"quarterly_assessment"`
	InitialGrade        float64           `json:"initial_grade"`
	QuarterlyGrade      int               `json:"quarterly_grade"`
	Synced              bool              `json:"synced"`
	UpdatedAt           string            `json:"updated_at,omitempty"`
}
