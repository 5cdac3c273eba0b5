// Package crew runs fixed, sequential multi-agent pipelines. A crew is a set
// of roles and an ordered list of tasks; each task is executed by one role
// through a tool-calling loop against the crew's provider.
package crew

import (
	"fmt"
	"path/filepath"
	"strings"

	cerrors "github.com/adalundhe/crews/core/errors"
	"github.com/adalundhe/crews/core/knowledge"
	"github.com/adalundhe/crews/core/providers"
	"github.com/adalundhe/crews/core/skills"
)

// Role is a persona that executes tasks.
type Role struct {
	Name      string
	Goal      string
	Backstory string

	// Skills are offered to the model as callable tools.
	Skills []*skills.Skill

	// Knowledge, when set, contributes retrieved reference chunks to the
	// role's system prompt.
	Knowledge *knowledge.Set

	Provider providers.Provider
}

// Task is one unit of work assigned to a role.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string

	// OutputFile is the sink path relative to the runner's output root.
	OutputFile string

	// Role names the role that executes the task.
	Role string

	// Context lists earlier tasks whose outputs are handed to this task.
	Context []string
}

// Crew is an ordered pipeline of tasks.
type Crew struct {
	Kind  string
	Roles []*Role
	Tasks []Task
}

// Role returns the role with the given name.
func (c *Crew) Role(name string) (*Role, bool) {
	for _, r := range c.Roles {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Validate checks that every task names a known role, every context entry
// names an earlier task and every sink stays under the output root.
func (c *Crew) Validate() error {
	if len(c.Tasks) == 0 {
		return cerrors.Newf(cerrors.KindInvalidInput, "crew %s has no tasks", c.Kind)
	}

	roles := make(map[string]bool, len(c.Roles))
	for _, r := range c.Roles {
		if r == nil || r.Name == "" {
			return cerrors.Newf(cerrors.KindInvalidInput, "crew %s has an unnamed role", c.Kind)
		}
		if roles[r.Name] {
			return cerrors.Newf(cerrors.KindInvalidInput, "crew %s: duplicate role %q", c.Kind, r.Name)
		}
		if r.Provider == nil {
			return cerrors.Newf(cerrors.KindInvalidInput, "crew %s: role %q has no provider", c.Kind, r.Name)
		}
		roles[r.Name] = true
	}

	seen := make(map[string]bool, len(c.Tasks))
	for _, t := range c.Tasks {
		if t.Name == "" {
			return cerrors.Newf(cerrors.KindInvalidInput, "crew %s has an unnamed task", c.Kind)
		}
		if seen[t.Name] {
			return cerrors.Newf(cerrors.KindInvalidInput, "crew %s: duplicate task %q", c.Kind, t.Name)
		}
		if !roles[t.Role] {
			return cerrors.Newf(cerrors.KindInvalidInput, "task %s: unknown role %q", t.Name, t.Role)
		}
		for _, dep := range t.Context {
			if !seen[dep] {
				return cerrors.Newf(cerrors.KindInvalidInput, "task %s: context %q is not an earlier task", t.Name, dep)
			}
		}
		if err := validateSink(t.OutputFile); err != nil {
			return cerrors.Wrap(cerrors.KindInvalidInput, fmt.Sprintf("task %s", t.Name), err)
		}
		seen[t.Name] = true
	}
	return nil
}

func validateSink(path string) error {
	if path == "" {
		return nil
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("output file %q must be relative", path)
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output file %q escapes the output root", path)
	}
	return nil
}
