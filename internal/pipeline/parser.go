package pipeline

import "errors"

// ErrEmptyPipeline is returned when there is nothing to run.
var ErrEmptyPipeline = errors.New("empty pipeline")

// Parse splits a flat token stream into stages. The first token always
// starts stage 0; every later token starts a new stage iff c classifies
// it as a command, otherwise it is an argument of the current stage.
//
// Stage tokens are sub-slices of tokens, so callers must not mutate the
// stream afterwards.
func Parse(tokens []string, c Classifier) (*Pipeline, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyPipeline
	}

	p := &Pipeline{}
	start := 0
	for i := 1; i < len(tokens); i++ {
		if !c.IsCommand(tokens[i]) {
			continue
		}
		p.Stages = append(p.Stages, Stage{
			Index:  len(p.Stages),
			Tokens: tokens[start:i:i],
		})
		start = i
	}
	p.Stages = append(p.Stages, Stage{
		Index:  len(p.Stages),
		Tokens: tokens[start:len(tokens):len(tokens)],
	})
	return p, nil
}
