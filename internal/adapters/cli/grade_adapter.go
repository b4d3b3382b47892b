package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/example/gradebook/internal/ports/primary"
)

// GradeAdapter translates CLI operations to grade item, score and grade
// service calls.
type GradeAdapter struct {
	items  primary.GradeItemService
	scores primary.ScoreService
	grades primary.GradeService
	out    io.Writer
}

// NewGradeAdapter creates a new GradeAdapter.
func NewGradeAdapter(items primary.GradeItemService, scores primary.ScoreService, grades primary.GradeService, out io.Writer) *GradeAdapter {
	return &GradeAdapter{items: items, scores: scores, grades: grades, out: out}
}

// CreateItem creates a grade item.
func (a *GradeAdapter) CreateItem(ctx context.Context, req primary.GradeItemRequest) error {
	item, err := a.items.CreateGradeItem(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Created %s item %s: %s (max %g)\n", okMark(), item.Category, item.ID, item.Title, item.MaxScore)
	return nil
}

// DeleteItem deletes a grade item with its scores.
func (a *GradeAdapter) DeleteItem(ctx context.Context, itemID string) error {
	if err := a.items.DeleteGradeItem(ctx, itemID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Deleted grade item %s\n", okMark(), itemID)
	return nil
}

// ListItems lists grade items.
func (a *GradeAdapter) ListItems(ctx context.Context, filters primary.GradeItemFilters) error {
	items, err := a.items.ListGradeItems(ctx, filters)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No grade items found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-38s %-3s %-2s %-24s %8s %s\n", "ID", "CAT", "Q", "TITLE", "MAX", "STATE")
	fmt.Fprintln(a.out, rule)
	for _, it := range items {
		fmt.Fprintf(a.out, "%-38s %-3s %-2d %-24s %8g %s\n", it.ID, it.Category, it.Quarter, it.Title, it.MaxScore, syncedMark(it.Synced))
	}
	fmt.Fprintln(a.out)
	return nil
}

// SaveScore records a score.
func (a *GradeAdapter) SaveScore(ctx context.Context, req primary.SaveScoreRequest) error {
	score, err := a.scores.SaveScore(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Saved score %g for student %s on item %s\n", okMark(), score.Score, score.StudentID, score.GradeItemID)
	return nil
}

// ListScores lists the scores recorded on an item.
func (a *GradeAdapter) ListScores(ctx context.Context, itemID string) error {
	scores, err := a.scores.ListItemScores(ctx, itemID)
	if err != nil {
		return err
	}
	if len(scores) == 0 {
		fmt.Fprintln(a.out, "No scores recorded")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-38s %8s %s\n", "STUDENT", "SCORE", "STATE")
	fmt.Fprintln(a.out, rule)
	for _, s := range scores {
		fmt.Fprintf(a.out, "%-38s %8g %s\n", s.StudentID, s.Score, syncedMark(s.Synced))
	}
	fmt.Fprintln(a.out)
	return nil
}

// Calculate computes and stores a quarterly grade, or only previews it.
func (a *GradeAdapter) Calculate(ctx context.Context, req primary.CalculateGradeRequest, preview bool) error {
	var (
		grade *primary.QuarterlyGrade
		err   error
	)
	if preview {
		grade, err = a.grades.PreviewQuarterlyGrade(ctx, req)
	} else {
		grade, err = a.grades.CalculateQuarterlyGrade(ctx, req)
	}
	if err != nil {
		return err
	}

	a.printGrade(grade)
	if preview {
		fmt.Fprintf(a.out, "%s Preview only, nothing stored\n", warnMark())
	} else {
		fmt.Fprintf(a.out, "%s Quarterly grade stored\n", okMark())
	}
	return nil
}

// ListGrades lists stored quarterly grades.
func (a *GradeAdapter) ListGrades(ctx context.Context, filters primary.QuarterlyGradeFilters) error {
	grades, err := a.grades.ListQuarterlyGrades(ctx, filters)
	if err != nil {
		return err
	}
	if len(grades) == 0 {
		fmt.Fprintln(a.out, "No quarterly grades found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-38s %-38s %-2s %8s %5s %s\n", "STUDENT", "SUBJECT", "Q", "INITIAL", "GRADE", "STATE")
	fmt.Fprintln(a.out, rule)
	for _, g := range grades {
		fmt.Fprintf(a.out, "%-38s %-38s %-2d %8.2f %5d %s\n", g.StudentID, g.SubjectID, g.Quarter, g.InitialGrade, g.QuarterlyGrade, syncedMark(g.Synced))
	}
	fmt.Fprintln(a.out)
	return nil
}

// Transmute prints the quarterly grade for an initial grade.
func (a *GradeAdapter) Transmute(initialGrade float64) {
	fmt.Fprintf(a.out, "%.2f → %d\n", initialGrade, a.grades.Transmute(initialGrade))
}

func (a *GradeAdapter) printGrade(g *primary.QuarterlyGrade) {
	fmt.Fprintf(a.out, "\nStudent %s, subject %s, quarter %d\n", g.StudentID, g.SubjectID, g.Quarter)
	fmt.Fprintf(a.out, "%-22s %9s %9s %8s %9s\n", "CATEGORY", "ACHIEVED", "POSSIBLE", "PERCENT", "WEIGHTED")
	fmt.Fprintln(a.out, rule)
	for _, row := range []struct {
		name string
		b    primary.CategoryBreakdown
	}{
		{"Written works", g.WrittenWorks},
		{"Performance tasks", g.PerformanceTasks},
		{"Quarterly assessment", g.QuarterlyAssessment},
	} {
		fmt.Fprintf(a.out, "%-22s %9g %9g %8.2f %9.2f\n", row.name, row.b.Achieved, row.b.Possible, row.b.Percentage, row.b.Weighted)
	}
	fmt.Fprintf(a.out, "Initial grade:   %.2f\n", g.InitialGrade)
	fmt.Fprintf(a.out, "Quarterly grade: %d\n", g.QuarterlyGrade)
}
