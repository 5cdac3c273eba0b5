package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// =============================================================================
// Skills
// =============================================================================
//
// A skill is a capability a role may invoke through the provider's tool-calling
// interface. Each skill carries a name and description for the model, a JSON
// Schema for its input and a handler that runs when the model calls it.

// Skill represents a model-invocable capability
type Skill struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	InputSchema *InputSchema `json:"input_schema"`
	Handler     Handler      `json:"-"`

	InvokeCount int64 `json:"invoke_count"`
}

// InputSchema defines the JSON Schema for skill inputs
type InputSchema struct {
	Type       string               `json:"type"` // Always "object"
	Properties map[string]*Property `json:"properties,omitempty"`
	Required   []string             `json:"required,omitempty"`
}

// Property defines a single input property
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Handler executes a skill with the given input and returns text for the model.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Result is the outcome of a skill invocation.
type Result struct {
	SkillName string `json:"skill_name"`
	Success   bool   `json:"success"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`

	// Err keeps the handler error so callers can inspect its kind.
	Err error `json:"-"`
}

// =============================================================================
// Skill Builder
// =============================================================================

// Builder provides a fluent API for building skills
type Builder struct {
	skill *Skill
}

// NewSkill creates a new skill builder
func NewSkill(name string) *Builder {
	return &Builder{
		skill: &Skill{
			Name: name,
			InputSchema: &InputSchema{
				Type:       "object",
				Properties: make(map[string]*Property),
			},
		},
	}
}

func (b *Builder) Description(desc string) *Builder {
	b.skill.Description = desc
	return b
}

// StringParam adds a string parameter
func (b *Builder) StringParam(name, description string, required bool) *Builder {
	return b.param(name, &Property{Type: "string", Description: description}, required)
}

// EnumParam adds a string parameter restricted to values
func (b *Builder) EnumParam(name, description string, values []string, required bool) *Builder {
	return b.param(name, &Property{Type: "string", Description: description, Enum: values}, required)
}

// IntParam adds an integer parameter
func (b *Builder) IntParam(name, description string, required bool) *Builder {
	return b.param(name, &Property{Type: "integer", Description: description}, required)
}

func (b *Builder) param(name string, p *Property, required bool) *Builder {
	b.skill.InputSchema.Properties[name] = p
	if required {
		b.skill.InputSchema.Required = append(b.skill.InputSchema.Required, name)
	}
	return b
}

func (b *Builder) Handler(h Handler) *Builder {
	b.skill.Handler = h
	return b
}

// Build returns the constructed skill
func (b *Builder) Build() *Skill {
	return b.skill
}

// Parameters renders the input schema as a generic JSON Schema map.
func (s *Skill) Parameters() map[string]any {
	props := make(map[string]any, len(s.InputSchema.Properties))
	for name, p := range s.InputSchema.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			enum := make([]any, len(p.Enum))
			for i, v := range p.Enum {
				enum[i] = v
			}
			prop["enum"] = enum
		}
		props[name] = prop
	}

	required := make([]any, len(s.InputSchema.Required))
	for i, r := range s.InputSchema.Required {
		required[i] = r
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// =============================================================================
// Skill Registry
// =============================================================================

// Registry manages the skills available to one role
type Registry struct {
	mu     sync.RWMutex
	skills map[string]*Skill
}

// NewRegistry creates a registry holding the given skills.
func NewRegistry(skills ...*Skill) (*Registry, error) {
	r := &Registry{skills: make(map[string]*Skill)}
	for _, s := range skills {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a skill to the registry
func (r *Registry) Register(skill *Skill) error {
	if skill == nil || skill.Name == "" {
		return fmt.Errorf("skill name is required")
	}
	if skill.Handler == nil {
		return fmt.Errorf("skill handler is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.skills[skill.Name]; exists {
		return fmt.Errorf("skill %q already registered", skill.Name)
	}
	r.skills[skill.Name] = skill
	return nil
}

// Get returns a skill by name
func (r *Registry) Get(name string) *Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skills[name]
}

// All returns every registered skill ordered by name.
func (r *Registry) All() []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Skill, 0, len(r.skills))
	for _, skill := range r.skills {
		result = append(result, skill)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// Invoke executes a skill by name
func (r *Registry) Invoke(ctx context.Context, name string, input json.RawMessage) *Result {
	r.mu.RLock()
	skill := r.skills[name]
	r.mu.RUnlock()

	if skill == nil {
		err := fmt.Errorf("skill not found: %s", name)
		return &Result{SkillName: name, Error: err.Error(), Err: err}
	}

	output, err := skill.Handler(ctx, input)

	r.mu.Lock()
	skill.InvokeCount++
	r.mu.Unlock()

	if err != nil {
		return &Result{SkillName: name, Error: err.Error(), Err: err}
	}

	return &Result{SkillName: name, Success: true, Output: output}
}
