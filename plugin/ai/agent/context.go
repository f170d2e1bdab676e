package agent

// Turn is one prior message of the conversation replayed to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// KnowledgeDoc is a reference document injected into the system context.
type KnowledgeDoc struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// StepResult records the outcome of one plan step.
type StepResult struct {
	Step    int     `json:"step"`
	Agent   string  `json:"agent"`
	Result  *Result `json:"result,omitempty"`
	Error   string  `json:"error,omitempty"`
	Success bool    `json:"success"`
}

// ExecutionContext is the shared state of one orchestration call. The plan
// executor mutates it in place as steps run; later steps and the response
// formatter read it.
type ExecutionContext struct {
	// Results maps agent name to that agent's last output. Last write wins.
	Results map[string]*Result
	// StepResults records every step in execution order.
	StepResults []StepResult
	// History carries prior conversation turns, oldest first.
	History []Turn
	// Knowledge carries reference documents for the system context.
	Knowledge []KnowledgeDoc
}

// NewExecutionContext creates an empty execution context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{Results: map[string]*Result{}}
}

// ExecutionResult is the plan executor's terminal output.
type ExecutionResult struct {
	Success     bool               `json:"success"`
	FinalResult *Result            `json:"final_result,omitempty"`
	AllResults  map[string]*Result `json:"all_results,omitempty"`
	StepResults []StepResult       `json:"step_results"`
	Error       string             `json:"error,omitempty"`
}
