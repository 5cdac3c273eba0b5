package codeextractor

// Role names.
const (
	CodeParser             = "Code Parser"
	ControlFlowAnalyzer    = "Control Flow Analyzer Agent"
	DataFlowAnalyzer       = "Data Flow Analyzer Agent"
	RequirementSynthesizer = "Requirement Synthesizer Agent"
	RequirementValidator   = "Requirement Validator Agent"
)

// Task names, in execution order.
const (
	TaskParse       = "parse"
	TaskControlFlow = "control_flow"
	TaskDataFlow    = "data_flow"
	TaskSynthesize  = "synthesize"
	TaskValidate    = "validate"
)

// KnowledgeName names the reference set shared by the requirement roles.
const KnowledgeName = "requirements_best_practices"

// DefaultKnowledgeFile is the reference PDF looked up under the knowledge directory.
const DefaultKnowledgeFile = "37_Requirements_10_Best_Practices.pdf"

// parserGoal is completed with the uploaded source.
const parserGoal = "Parse and extract structural information from C code files.\nCode:\n"

type persona struct {
	name      string
	goal      string
	backstory string
	knowledge bool
}

var personas = []persona{
	{
		name: CodeParser,
		goal: parserGoal,
		backstory: `You are a meticulous code parser, expert in dissecting C code and extracting key structural elements.
You have an eagle eye for detail and can identify even the most subtle nuances in code syntax and
organization.`,
	},
	{
		name: ControlFlowAnalyzer,
		goal: "Analyze the control flow within the C code.",
		backstory: `You are a seasoned control flow expert, capable of tracing the execution paths of complex C code.
You have a deep understanding of program behavior and can identify potential issues and predict outcomes.`,
	},
	{
		name: DataFlowAnalyzer,
		goal: "Track the flow of data through the C code.",
		backstory: `You are a master of data flow analysis, able to track how information moves through C code.
You can identify dependencies, transformations, and potential bottlenecks in the data flow.`,
	},
	{
		name: RequirementSynthesizer,
		goal: "Generate requirement statements based on the analysis from other agents.",
		backstory: `You are a skilled requirement engineer, adept at translating technical details into clear, concise,
and testable requirements. You can synthesize information from various sources to create a
comprehensive set of requirements. You are known for your ability to bridge the gap between code and
documentation. You understand the difference between functional and non-functional requirements and
can capture them accurately. You are familiar with requirements engineering best practices.`,
		knowledge: true,
	},
	{
		name: RequirementValidator,
		goal: "Verify the generated requirements against the original C code.",
		backstory: `You are a rigorous quality assurance expert, dedicated to ensuring the accuracy and
completeness of requirements. You have a keen eye for inconsistencies and can identify gaps between code
and documentation.`,
		knowledge: true,
	},
}

const requirementFormat = `
- Requirement ID: A unique identifier for the requirement.
- Requirement Statement: A clear and concise description of the requirement.
- Priority: The importance or urgency of the requirement (e.g., high, medium, low).
- Type: The type of requirement (e.g., functional, non-functional).
- Source: The analysis or code element that the requirement is derived from.`

type step struct {
	name        string
	role        string
	description string
	expected    string
	outputFile  string
	context     []string
}

var steps = []step{
	{
		name: TaskParse,
		role: CodeParser,
		description: `Parse all of the C code files in the directory and extract the Abstract Syntax Tree (AST).
The AST should capture the structure and relationships between different elements in the code.`,
		expected:   "A JSON representation of the AST.",
		outputFile: "code_extractor/ast.json",
	},
	{
		name: TaskControlFlow,
		role: ControlFlowAnalyzer,
		description: `Analyze the control flow of the code using the AST. Identify loops, conditionals, and
function calls. Determine the possible execution paths.`,
		expected:   "A description of the control flow paths and dependencies.",
		outputFile: "code_extractor/control_flow_analysis.md",
		context:    []string{TaskParse},
	},
	{
		name: TaskDataFlow,
		role: DataFlowAnalyzer,
		description: `Analyze the data flow of the code using the AST. Identify variable assignments,
data dependencies, and data transformations.`,
		expected:   "A description of the data flow through the code, including variable assignments, data dependencies and data transformations.",
		outputFile: "code_extractor/data_flow_analysis.md",
		context:    []string{TaskParse},
	},
	{
		name: TaskSynthesize,
		role: RequirementSynthesizer,
		description: `Using the control and data flow analysis, generate a set of initial requirement statements.
Requirements should be clear,concise, and testable. Include both functional and non-functional
requirements. Use requirements engineering best practices.`,
		expected:   "A set of requirement statements. Each requirement should be formatted as follows:" + requirementFormat,
		outputFile: "code_extractor/code_requirements.md",
		context:    []string{TaskControlFlow, TaskDataFlow},
	},
	{
		name: TaskValidate,
		role: RequirementValidator,
		description: `Validate the generated requirement statements against the original code. Ensure that each
requirement is traceable to a specific code element and accurately reflects the intended behavior.
Identify any discrepancies or missing requirements.`,
		expected:   "A set of validated requirement statements. Each requirement should be formatted as follows:" + requirementFormat,
		outputFile: "code_extractor/validated_requirements.md",
		context:    []string{TaskSynthesize, TaskParse},
	},
}
