package crew

import (
	"github.com/adalundhe/crews/core/knowledge"
	"github.com/adalundhe/crews/core/providers"
	"github.com/adalundhe/crews/core/skills"
)

// Deps are the runtime resources a crew definition binds its roles to.
type Deps struct {
	Provider providers.Provider

	// Answer is the web answer skill. Nil disables web lookups.
	Answer *skills.Skill

	// Knowledge is attached to roles that consult reference documents.
	Knowledge *knowledge.Set
}

// AnswerSkills returns the answer skill as a role skill list.
func (d Deps) AnswerSkills() []*skills.Skill {
	if d.Answer == nil {
		return nil
	}
	return []*skills.Skill{d.Answer}
}

// Input is the user-supplied material a crew works on.
type Input struct {
	Prompt       string
	Code         string
	CodeFileName string
}
