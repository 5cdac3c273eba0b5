package crew

import (
	"fmt"
	"strings"
)

// systemPrompt renders a role's persona. knowledge is the retrieved
// reference material and may be empty.
func systemPrompt(r *Role, knowledge string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n%s\n\nYour personal goal is: %s\n", r.Name, r.Backstory, r.Goal)
	if len(r.Skills) > 0 {
		b.WriteString("\nYou can call the tools you have been given when you need facts you do not have. ")
		b.WriteString("Once you have what you need, reply with your final answer and no tool calls.\n")
	}
	if knowledge != "" {
		b.WriteString("\nReference material relevant to your work:\n")
		b.WriteString(knowledge)
		b.WriteString("\n")
	}
	return b.String()
}

// taskPrompt renders the user turn for t with the outputs of its context
// tasks inlined.
func taskPrompt(t Task, prior []TaskOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Task: %s\n", t.Description)

	if len(prior) > 0 {
		b.WriteString("\nThis is the context you're working with:\n")
		for _, c := range prior {
			fmt.Fprintf(&b, "\n## %s (%s)\n%s\n", c.Task, c.Role, strings.TrimSpace(c.Output))
		}
	}

	if t.ExpectedOutput != "" {
		fmt.Fprintf(&b, "\nThis is the expected criteria for your final answer: %s\n", t.ExpectedOutput)
	}
	b.WriteString("You MUST return the actual complete content as the final answer, not a summary.\n")
	return b.String()
}

// knowledgeQuery is the retrieval query for a task.
func knowledgeQuery(r *Role, t Task) string {
	return strings.TrimSpace(r.Goal + " " + t.Description + " " + t.ExpectedOutput)
}
