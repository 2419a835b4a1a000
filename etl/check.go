package etl

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrCheckFailed is returned when a run violates a consistency check.
var ErrCheckFailed = errors.New("consistency check failed")

// Expectations pin the counts of a known input corpus. Zero fields are not
// checked.
type Expectations struct {
	Files            int
	FlatStatements   int
	MergedStatements int
	Contexts         int
}

// Check verifies that one context was created per contributing file and
// that the configured expectations hold. Every failed check is listed.
func (r *Result) Check(expect Expectations) error {
	var failures []string
	fail := func(what string, expected, actual int) {
		failures = append(failures, fmt.Sprintf("%s: expected %d, got %d", what, expected, actual))
	}

	contexts := len(r.Dataset.Contexts())
	if contexts != r.Contributing {
		fail("contexts (one per contributing file)", r.Contributing, contexts)
	}
	if expect.Files > 0 && len(r.Files) != expect.Files {
		fail("files processed", expect.Files, len(r.Files))
	}
	if expect.FlatStatements > 0 && r.Flat.Len() != expect.FlatStatements {
		fail("flat statements", expect.FlatStatements, r.Flat.Len())
	}
	if expect.MergedStatements > 0 && r.Dataset.Len() != expect.MergedStatements {
		fail("merged statements", expect.MergedStatements, r.Dataset.Len())
	}
	if expect.Contexts > 0 && contexts != expect.Contexts {
		fail("contexts", expect.Contexts, contexts)
	}

	if len(failures) > 0 {
		return errors.Wrap(ErrCheckFailed, strings.Join(failures, "; "))
	}
	return nil
}
