// Package agents dispatches crew kinds to their definitions.
package agents

import (
	"github.com/adalundhe/crews/agents/codeextractor"
	"github.com/adalundhe/crews/agents/designthinking"
	"github.com/adalundhe/crews/agents/researcher"
	"github.com/adalundhe/crews/core/crew"
	cerrors "github.com/adalundhe/crews/core/errors"
	"github.com/adalundhe/crews/core/selection"
)

// Builder constructs a crew from its dependencies and user input.
type Builder func(deps crew.Deps, in crew.Input) (*crew.Crew, error)

var builders = map[selection.CrewKind]Builder{
	researcher.Kind:     researcher.New,
	designthinking.Kind: designthinking.New,
	codeextractor.Kind:  codeextractor.New,
}

// Build returns the crew for kind bound to deps.
func Build(kind selection.CrewKind, deps crew.Deps, in crew.Input) (*crew.Crew, error) {
	build, ok := builders[kind]
	if !ok {
		return nil, cerrors.Newf(cerrors.KindInvalidInput, "unknown crew %q", kind)
	}
	if deps.Provider == nil {
		return nil, cerrors.New(cerrors.KindInvalidInput, "crew requires a provider")
	}
	return build(deps, in)
}
