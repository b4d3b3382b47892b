package version

import "testing"

func TestString(t *testing.T) {
	oldCommit, oldBuilt := Commit, BuildTime
	t.Cleanup(func() { Commit, BuildTime = oldCommit, oldBuilt })

	Commit = "0123456789abcdef"
	BuildTime = "2024-06-03T08:00:00Z"

	want := "gradebook dev (commit: 0123456, built: 2024-06-03T08:00:00Z)"
	if got := String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	Commit = "abc"
	if got := ShortCommit(); got != "abc" {
		t.Errorf("short commits are kept whole, got %q", got)
	}
}
