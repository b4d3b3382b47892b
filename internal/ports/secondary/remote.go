package secondary

import (
	"context"
	"encoding/json"
)

// RemoteAPI defines the secondary port for the authoritative server's REST contract.
type RemoteAPI interface {
	// Replay sends one queued mutation to the endpoint for its table.
	// A nil error means the server confirmed it.
	Replay(ctx context.Context, table, operation, recordID string, payload json.RawMessage) error

	// FetchSections lists every class section visible to the caller.
	FetchSections(ctx context.Context) ([]*SectionRecord, error)

	// FetchSubjects lists every subject.
	FetchSubjects(ctx context.Context) ([]*SubjectRecord, error)

	// FetchSectionStudents lists the students enrolled in a section.
	FetchSectionStudents(ctx context.Context, sectionID string) ([]*StudentRecord, error)

	// FetchSubjectAssignments lists which subjects are taught to which sections.
	FetchSubjectAssignments(ctx context.Context) ([]*AssignmentRecord, error)
}

// RemoteFactory builds a RemoteAPI for a base URL and bearer token.
type RemoteFactory func(baseURL, token string) RemoteAPI
