// Package researcher defines the single-role research crew.
package researcher

import (
	"github.com/adalundhe/crews/core/crew"
	"github.com/adalundhe/crews/core/selection"
)

const Kind = selection.CrewResearchAssistant

func Roles(deps crew.Deps) []*crew.Role {
	return []*crew.Role{{
		Name:      RoleName,
		Goal:      Goal,
		Backstory: Backstory,
		Skills:    deps.AnswerSkills(),
		Provider:  deps.Provider,
	}}
}

// Tasks returns the research task. The prompt is the task description.
func Tasks(prompt string) []crew.Task {
	return []crew.Task{{
		Name:           TaskName,
		Description:    prompt,
		ExpectedOutput: ExpectedOutput,
		OutputFile:     OutputFile,
		Role:           RoleName,
	}}
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
