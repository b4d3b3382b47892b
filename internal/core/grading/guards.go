package grading

import "fmt"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// SaveScoreContext provides context for score save guards.
type SaveScoreContext struct {
	StudentID     string
	StudentExists bool
	GradeItemID   string
	ItemExists    bool
	MaxScore      float64
	Score         float64
}

// CanSaveScore evaluates whether a score may be stored.
// Rules:
// - Student must exist
// - Grade item must exist
// - Score must be within [0, max_score]
func CanSaveScore(ctx SaveScoreContext) GuardResult {
	if !ctx.StudentExists {
		return GuardResult{Reason: fmt.Sprintf("student %s not found", ctx.StudentID)}
	}
	if !ctx.ItemExists {
		return GuardResult{Reason: fmt.Sprintf("grade item %s not found", ctx.GradeItemID)}
	}
	if ctx.Score < 0 || ctx.Score > ctx.MaxScore {
		return GuardResult{Reason: fmt.Sprintf("score %.2f is outside [0, %.2f]", ctx.Score, ctx.MaxScore)}
	}
	return GuardResult{Allowed: true}
}

// GradeItemContext provides context for grade item guards.
type GradeItemContext struct {
	SubjectID     string
	SubjectExists bool
	Category      Category
	Quarter       int
	MaxScore      float64
	// HighestRecordedScore is the highest score already recorded against the
	// item; a new max_score may not drop below it. Zero when unscored.
	HighestRecordedScore float64
}

// CanSaveGradeItem evaluates whether a grade item definition may be stored.
// Rules:
// - Subject must exist
// - Category must be WW, PT or QA
// - Quarter must be 1-4
// - max_score must be positive and not below an already recorded score
func CanSaveGradeItem(ctx GradeItemContext) GuardResult {
	if !ctx.SubjectExists {
		return GuardResult{Reason: fmt.Sprintf("subject %s not found", ctx.SubjectID)}
	}
	if !ctx.Category.Valid() {
		return GuardResult{Reason: fmt.Sprintf("unknown category %q", ctx.Category)}
	}
	if !ValidQuarter(ctx.Quarter) {
		return GuardResult{Reason: fmt.Sprintf("quarter %d is outside 1-4", ctx.Quarter)}
	}
	if ctx.MaxScore <= 0 {
		return GuardResult{Reason: "max score must be positive"}
	}
	if ctx.HighestRecordedScore > ctx.MaxScore {
		return GuardResult{Reason: fmt.Sprintf("max score %.2f is below an already recorded score %.2f", ctx.MaxScore, ctx.HighestRecordedScore)}
	}
	return GuardResult{Allowed: true}
}

// CalculateGradeContext provides context for quarterly grade guards.
type CalculateGradeContext struct {
	StudentID     string
	StudentExists bool
	SubjectID     string
	SubjectExists bool
}

// CanCalculateGrade evaluates whether a quarterly grade may be computed.
// Rules:
// - Student must exist
// - Subject must exist
func CanCalculateGrade(ctx CalculateGradeContext) GuardResult {
	if !ctx.StudentExists {
		return GuardResult{Reason: fmt.Sprintf("student %s not found", ctx.StudentID)}
	}
	if !ctx.SubjectExists {
		return GuardResult{Reason: fmt.Sprintf("subject %s not found", ctx.SubjectID)}
	}
	return GuardResult{Allowed: true}
}

// ValidQuarter reports whether q names one of the four grading periods.
func ValidQuarter(q int) bool {
	return q >= 1 && q <= 4
}
