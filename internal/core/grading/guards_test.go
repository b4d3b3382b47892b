package grading

import "testing"

func TestCanSaveScore(t *testing.T) {
	tests := []struct {
		name        string
		ctx         SaveScoreContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "score within range",
			ctx:         SaveScoreContext{StudentID: "s1", StudentExists: true, GradeItemID: "g1", ItemExists: true, MaxScore: 20, Score: 18},
			wantAllowed: true,
		},
		{
			name:        "zero and max are inclusive",
			ctx:         SaveScoreContext{StudentID: "s1", StudentExists: true, GradeItemID: "g1", ItemExists: true, MaxScore: 20, Score: 20},
			wantAllowed: true,
		},
		{
			name:       "student missing",
			ctx:        SaveScoreContext{StudentID: "s9", GradeItemID: "g1", ItemExists: true, MaxScore: 20},
			wantReason: "student s9 not found",
		},
		{
			name:       "grade item missing",
			ctx:        SaveScoreContext{StudentID: "s1", StudentExists: true, GradeItemID: "g9", MaxScore: 20},
			wantReason: "grade item g9 not found",
		},
		{
			name:       "score above max",
			ctx:        SaveScoreContext{StudentID: "s1", StudentExists: true, GradeItemID: "g1", ItemExists: true, MaxScore: 20, Score: 21},
			wantReason: "score 21.00 is outside [0, 20.00]",
		},
		{
			name:       "negative score",
			ctx:        SaveScoreContext{StudentID: "s1", StudentExists: true, GradeItemID: "g1", ItemExists: true, MaxScore: 20, Score: -1},
			wantReason: "score -1.00 is outside [0, 20.00]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanSaveScore(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if !tt.wantAllowed && result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
			if tt.wantAllowed && result.Error() != nil {
				t.Errorf("expected nil error, got %v", result.Error())
			}
		})
	}
}

func TestCanSaveGradeItem(t *testing.T) {
	base := GradeItemContext{SubjectID: "math", SubjectExists: true, Category: WrittenWorks, Quarter: 1, MaxScore: 20}

	tests := []struct {
		name        string
		mutate      func(*GradeItemContext)
		wantAllowed bool
	}{
		{"valid", func(*GradeItemContext) {}, true},
		{"missing subject", func(c *GradeItemContext) { c.SubjectExists = false }, false},
		{"bad category", func(c *GradeItemContext) { c.Category = "EX" }, false},
		{"quarter zero", func(c *GradeItemContext) { c.Quarter = 0 }, false},
		{"quarter five", func(c *GradeItemContext) { c.Quarter = 5 }, false},
		{"zero max", func(c *GradeItemContext) { c.MaxScore = 0 }, false},
		{"max below recorded score", func(c *GradeItemContext) { c.HighestRecordedScore = 25 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := base
			tt.mutate(&ctx)
			if got := CanSaveGradeItem(ctx).Allowed; got != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", got, tt.wantAllowed)
			}
		})
	}
}

func TestCanCalculateGrade(t *testing.T) {
	tests := []struct {
		name        string
		ctx         CalculateGradeContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "both exist",
			ctx:         CalculateGradeContext{StudentID: "s1", StudentExists: true, SubjectID: "m1", SubjectExists: true},
			wantAllowed: true,
		},
		{
			name:       "student missing",
			ctx:        CalculateGradeContext{StudentID: "s9", SubjectID: "m1", SubjectExists: true},
			wantReason: "student s9 not found",
		},
		{
			name:       "subject missing",
			ctx:        CalculateGradeContext{StudentID: "s1", StudentExists: true, SubjectID: "m9"},
			wantReason: "subject m9 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanCalculateGrade(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if !tt.wantAllowed && result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}
