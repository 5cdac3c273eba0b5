package selection

import (
	"strings"

	cerrors "github.com/adalundhe/crews/core/errors"
)

// CrewKind names one of the fixed crews.
type CrewKind string

const (
	CrewResearchAssistant CrewKind = "research_assistant"
	CrewDesignThinking    CrewKind = "design_thinking"
	CrewCodeExtractor     CrewKind = "code_extractor"
)

type crewInfo struct {
	label         string
	defaultPrompt string
	downloadName  string
	answerTool    bool
	needsCode     bool
}

var crewInfos = map[CrewKind]crewInfo{
	CrewResearchAssistant: {
		label:         "Research Assistant",
		defaultPrompt: "Research the latest AI Agent news in February 2025 and summarize each.",
		downloadName:  "research_report.md",
		answerTool:    true,
	},
	CrewDesignThinking: {
		label:         "Design Thinking",
		defaultPrompt: "How can we improve the experience of using AI tools?",
		downloadName:  "research_report.md",
		answerTool:    true,
	},
	CrewCodeExtractor: {
		label:         "Code Extractor",
		defaultPrompt: "The attached code is for a Battery Management System (BMS) for an electric vehicle. It includes features such as cell balancing, temperature monitoring, and state-of-charge estimation.",
		downloadName:  "code_requirements.md",
		needsCode:     true,
	},
}

// Crews lists every crew in display order.
func Crews() []CrewKind {
	return []CrewKind{CrewResearchAssistant, CrewDesignThinking, CrewCodeExtractor}
}

func (c CrewKind) String() string {
	return string(c)
}

func (c CrewKind) Label() string {
	return crewInfos[c].label
}

// DefaultPrompt is used when the user submits an empty prompt.
func (c CrewKind) DefaultPrompt() string {
	return crewInfos[c].defaultPrompt
}

// DownloadName is the file name offered for the final artifact.
func (c CrewKind) DownloadName() string {
	return crewInfos[c].downloadName
}

// UsesAnswerTool reports whether any role in the crew carries the web answer tool.
func (c CrewKind) UsesAnswerTool() bool {
	return crewInfos[c].answerTool
}

// NeedsCode reports whether the crew requires an uploaded source file.
func (c CrewKind) NeedsCode() bool {
	return crewInfos[c].needsCode
}

// ParseCrew accepts a crew name or display label, case-insensitively.
func ParseCrew(s string) (CrewKind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Crews() {
		if v == string(c) || v == strings.ToLower(c.Label()) {
			return c, nil
		}
	}
	return "", cerrors.Newf(cerrors.KindInvalidInput, "unknown crew %q", s)
}
