// Package designthinking defines the six-stage design-thinking crew:
// empathize, define, ideate, prototype, test and a closing reflection.
package designthinking

import (
	"github.com/adalundhe/crews/core/crew"
	"github.com/adalundhe/crews/core/selection"
)

const Kind = selection.CrewDesignThinking

// Roles binds every persona to the provider. Only the user insight
// specialist gets the answer skill.
func Roles(deps crew.Deps) []*crew.Role {
	roles := make([]*crew.Role, 0, len(personas))
	for _, p := range personas {
		r := &crew.Role{
			Name:      p.name,
			Goal:      p.goal,
			Backstory: p.backstory,
			Provider:  deps.Provider,
		}
		if p.answer {
			r.Skills = deps.AnswerSkills()
		}
		roles = append(roles, r)
	}
	return roles
}

// Tasks returns the stages in order. Each stage consumes the one before it;
// the reflection consumes all five.
func Tasks(prompt string) []crew.Task {
	tasks := make([]crew.Task, 0, len(stages))
	var earlier []string
	for i, s := range stages {
		t := crew.Task{
			Name:           s.name,
			Description:    s.description,
			ExpectedOutput: s.expected,
			OutputFile:     s.outputFile,
			Role:           s.role,
		}
		if !s.promptless {
			t.Description = "User Input: " + prompt + "\n" + s.description
		}

		switch {
		case s.name == TaskReflect:
			t.Context = append([]string(nil), earlier...)
		case i > 0:
			t.Context = []string{stages[i-1].name}
		}

		tasks = append(tasks, t)
		earlier = append(earlier, s.name)
	}
	return tasks
}

func New(deps crew.Deps, in crew.Input) (*crew.Crew, error) {
	c := &crew.Crew{
		Kind:  Kind.String(),
		Roles: Roles(deps),
		Tasks: Tasks(in.Prompt),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
