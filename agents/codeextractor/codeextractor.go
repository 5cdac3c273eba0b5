// Package codeextractor defines the crew that derives requirement statements
// from uploaded C source: parse, control flow, data flow, synthesize and
// validate.
package codeextractor

import (
	"fmt"
	"strings"

	"github.com/adalundhe/crews/core/crew"
	cerrors "github.com/adalundhe/crews/core/errors"
	"github.com/adalundhe/crews/core/selection"
)

const Kind = selection.CrewCodeExtractor

// Roles binds the personas to the provider. The parser's goal carries the
// uploaded code; the requirement roles consult the knowledge set.
func Roles(deps crew.Deps, code string) []*crew.Role {
	roles := make([]*crew.Role, 0, len(personas))
	for _, p := range personas {
		r := &crew.Role{
			Name:      p.name,
			Goal:      p.goal,
			Backstory: p.backstory,
			Provider:  deps.Provider,
		}
		if p.name == CodeParser {
			r.Goal = parserGoal + code
		}
		if p.knowledge {
			r.Knowledge = deps.Knowledge
		}
		roles = append(roles, r)
	}
	return roles
}

func Tasks(prompt string) []crew.Task {
	tasks := make([]crew.Task, 0, len(steps))
	for _, s := range steps {
		tasks = append(tasks, crew.Task{
			Name:           s.name,
			Description:    "User Input: " + prompt + "\n" + s.description,
			ExpectedOutput: s.expected,
			OutputFile:     s.outputFile,
			Role:           s.role,
			Context:        append([]string(nil), s.context...),
		})
	}
	return tasks
}

// FormatCode renders an uploaded file for the parser's goal.
func FormatCode(name, code string) string {
	code = strings.TrimRight(code, "\n")
	if name == "" {
		return code
	}
	return fmt.Sprintf("// File: %s\n%s", name, code)
}

func New(deps crew.Deps, in crew.Input) (*crew.Crew, error) {
	if strings.TrimSpace(in.Code) == "" {
		return nil, cerrors.New(cerrors.KindInvalidInput, "code extractor requires an uploaded source file")
	}

	c := &crew.Crew{
		Kind:  Kind.String(),
		Roles: Roles(deps, FormatCode(in.CodeFileName, in.Code)),
		Tasks: Tasks(in.Prompt),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
