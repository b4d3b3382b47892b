// Package grading computes quarterly grades: a weighted aggregate of the
// three assessment categories followed by a fixed transmutation table.
// Everything here is deterministic and free of I/O.
package grading

import (
	"fmt"
	"math"
)

// Category is an assessment category.
type Category string

const (
	WrittenWorks        Category = "WW"
	PerformanceTasks    Category = "PT"
	QuarterlyAssessment Category = "QA"
)

// Categories lists every category in reporting order.
var Categories = []Category{WrittenWorks, PerformanceTasks, QuarterlyAssessment}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case WrittenWorks, PerformanceTasks, QuarterlyAssessment:
		return true
	}
	return false
}

// Weights holds the per-category weights. They must sum to 1.
type Weights struct {
	WrittenWorks        float64 `yaml:"ww" mapstructure:"ww"`
	PerformanceTasks    float64 `yaml:"pt" mapstructure:"pt"`
	QuarterlyAssessment float64 `yaml:"qa" mapstructure:"qa"`
}

// DefaultWeights returns 30% written works, 50% performance tasks,
// 20% quarterly assessment.
func DefaultWeights() Weights {
	return Weights{WrittenWorks: 0.30, PerformanceTasks: 0.50, QuarterlyAssessment: 0.20}
}

// For returns the weight of c.
func (w Weights) For(c Category) float64 {
	switch c {
	case WrittenWorks:
		return w.WrittenWorks
	case PerformanceTasks:
		return w.PerformanceTasks
	case QuarterlyAssessment:
		return w.QuarterlyAssessment
	}
	return 0
}

// Validate checks weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	for _, c := range Categories {
		if w.For(c) < 0 {
			return fmt.Errorf("weight for %s is negative", c)
		}
	}
	sum := w.WrittenWorks + w.PerformanceTasks + w.QuarterlyAssessment
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("weights sum to %.4f, expected 1", sum)
	}
	return nil
}

// Config is the injectable grading configuration.
type Config struct {
	Weights Weights
	Table   Table
}

// DefaultConfig returns the documented default weights and table.
func DefaultConfig() Config {
	return Config{Weights: DefaultWeights(), Table: DefaultTable()}
}

// Entry is one assessment as seen by the engine: its category, the maximum
// possible score, and what the student achieved (0 when unscored).
type Entry struct {
	Category Category
	Achieved float64
	Possible float64
}

// CategoryResult is the aggregate of one category.
type CategoryResult struct {
	Category   Category
	Achieved   float64
	Possible   float64
	Percentage float64
	Weighted   float64
}

// Result is a computed quarterly grade with its breakdown.
type Result struct {
	WrittenWorks        CategoryResult
	PerformanceTasks    CategoryResult
	QuarterlyAssessment CategoryResult
	InitialGrade        float64
	QuarterlyGrade      int
}

// Category returns the breakdown for c.
func (r Result) Category(c Category) CategoryResult {
	switch c {
	case WrittenWorks:
		return r.WrittenWorks
	case PerformanceTasks:
		return r.PerformanceTasks
	default:
		return r.QuarterlyAssessment
	}
}

// Engine computes quarterly grades with a fixed configuration.
type Engine struct {
	weights Weights
	table   Table
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grading weights: %w", err)
	}
	if err := cfg.Table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transmutation table: %w", err)
	}
	return &Engine{weights: cfg.Weights, table: cfg.Table}, nil
}

// DefaultEngine returns an engine with the documented defaults.
func DefaultEngine() *Engine {
	return &Engine{weights: DefaultWeights(), table: DefaultTable()}
}

// Compute aggregates entries into a quarterly grade.
//
// Per category: percentage = achieved/possible*100 (0 when nothing is
// possible), weighted = percentage*weight. The initial grade is the sum of
// weighted values rounded to two decimals, then transmuted.
func (e *Engine) Compute(entries []Entry) Result {
	sums := make(map[Category]*CategoryResult, len(Categories))
	for _, c := range Categories {
		sums[c] = &CategoryResult{Category: c}
	}
	for _, entry := range entries {
		cr, ok := sums[entry.Category]
		if !ok {
			continue
		}
		cr.Achieved += entry.Achieved
		cr.Possible += entry.Possible
	}

	var initial float64
	for _, c := range Categories {
		cr := sums[c]
		if cr.Possible > 0 {
			cr.Percentage = cr.Achieved / cr.Possible * 100
		}
		cr.Weighted = cr.Percentage * e.weights.For(c)
		initial += cr.Weighted
	}
	initial = Round2(initial)

	return Result{
		WrittenWorks:        *sums[WrittenWorks],
		PerformanceTasks:    *sums[PerformanceTasks],
		QuarterlyAssessment: *sums[QuarterlyAssessment],
		InitialGrade:        initial,
		QuarterlyGrade:      e.table.Transmute(initial),
	}
}

// Transmute converts an initial grade with the engine's table.
func (e *Engine) Transmute(initialGrade float64) int {
	return e.table.Transmute(initialGrade)
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
