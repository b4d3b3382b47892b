package grading

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Breakpoint maps every initial grade >= Min (and below the next higher
// breakpoint) to Grade.
type Breakpoint struct {
	Min   float64 `yaml:"min"`
	Grade int     `yaml:"grade"`
}

// Table is a monotonic step function from initial grade to quarterly grade.
// Breakpoints are ordered by Min descending; anything below the last one
// transmutes to Floor.
type Table struct {
	Breakpoints []Breakpoint `yaml:"breakpoints"`
	Floor       int          `yaml:"floor"`
}

// defaultBreakpoints is the official table, literal values.
var defaultBreakpoints = []Breakpoint{
	{100.00, 100},
	{98.40, 99},
	{96.80, 98},
	{95.20, 97},
	{93.60, 96},
	{92.00, 95},
	{90.40, 94},
	{88.80, 93},
	{87.20, 92},
	{85.60, 91},
	{84.00, 90},
	{82.40, 89},
	{80.80, 88},
	{79.20, 87},
	{77.60, 86},
	{76.00, 85},
	{74.40, 84},
	{72.80, 83},
	{71.20, 82},
	{69.60, 81},
	{68.00, 80},
	{66.40, 79},
	{64.80, 78},
	{63.20, 77},
	{61.60, 76},
	{60.00, 76},
	// coarser band below 60
	{56.00, 74},
	{52.00, 73},
	{48.00, 72},
	{44.00, 71},
	{40.00, 70},
	{36.00, 69},
	{32.00, 68},
	{28.00, 67},
	{24.00, 66},
	{20.00, 65},
	{16.00, 64},
	{12.00, 63},
	{8.00, 62},
	{4.00, 61},
}

// DefaultFloor is the lowest reportable quarterly grade.
const DefaultFloor = 60

// DefaultTable returns a copy of the official transmutation table.
func DefaultTable() Table {
	bps := make([]Breakpoint, len(defaultBreakpoints))
	copy(bps, defaultBreakpoints)
	return Table{Breakpoints: bps, Floor: DefaultFloor}
}

// Transmute converts an initial grade with the default table.
func Transmute(initialGrade float64) int {
	return transmute(defaultBreakpoints, DefaultFloor, initialGrade)
}

// Transmute converts an initial grade to a quarterly grade.
func (t Table) Transmute(initialGrade float64) int {
	return transmute(t.Breakpoints, t.Floor, initialGrade)
}

func transmute(bps []Breakpoint, floor int, x float64) int {
	for _, bp := range bps {
		if x >= bp.Min {
			return bp.Grade
		}
	}
	return floor
}

// Validate checks the table is a well-formed monotonic step function.
func (t Table) Validate() error {
	if len(t.Breakpoints) == 0 {
		return fmt.Errorf("transmutation table has no breakpoints")
	}
	for i := 1; i < len(t.Breakpoints); i++ {
		prev, cur := t.Breakpoints[i-1], t.Breakpoints[i]
		if cur.Min >= prev.Min {
			return fmt.Errorf("breakpoint %d (min %.2f) must be lower than breakpoint %d (min %.2f)", i, cur.Min, i-1, prev.Min)
		}
		if cur.Grade > prev.Grade {
			return fmt.Errorf("breakpoint %d (grade %d) exceeds the grade of a higher band (%d)", i, cur.Grade, prev.Grade)
		}
	}
	last := t.Breakpoints[len(t.Breakpoints)-1]
	if t.Floor > last.Grade {
		return fmt.Errorf("floor %d exceeds the lowest band grade %d", t.Floor, last.Grade)
	}
	return nil
}

// LoadTableFile reads a transmutation table from a YAML file:
//
//	floor: 60
//	breakpoints:
//	  - {min: 100, grade: 100}
//	  - {min: 98.4, grade: 99}
//
// Breakpoints may be listed in any order.
func LoadTableFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read transmutation table: %w", err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return Table{}, fmt.Errorf("failed to parse transmutation table: %w", err)
	}
	sort.SliceStable(table.Breakpoints, func(i, j int) bool {
		return table.Breakpoints[i].Min > table.Breakpoints[j].Min
	})
	if table.Floor == 0 {
		table.Floor = DefaultFloor
	}
	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}
