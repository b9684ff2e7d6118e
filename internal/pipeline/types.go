package pipeline

// Stage is one program instance within a pipeline.
type Stage struct {
	Index  int
	Tokens []string // program name followed by its arguments
}

// Name returns the program name of the stage.
func (s Stage) Name() string { return s.Tokens[0] }

// Args returns the arguments that follow the program name.
func (s Stage) Args() []string { return s.Tokens[1:] }

// Pipeline is a segmented token stream. Stage i's stdout feeds stage
// i+1's stdin.
type Pipeline struct {
	Stages []Stage
}

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.Stages) }

// Argv returns each stage's full argument vector in stage order.
func (p *Pipeline) Argv() [][]string {
	out := make([][]string, len(p.Stages))
	for i, s := range p.Stages {
		out[i] = s.Tokens
	}
	return out
}
