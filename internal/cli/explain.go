package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/marcelocantos/pipe/internal/config"
	"github.com/marcelocantos/pipe/internal/lookup"
	"github.com/marcelocantos/pipe/internal/pipeline"
)

var (
	stageColor = color.New(color.FgCyan, color.Bold)
	nameColor  = color.New(color.FgGreen)
	noteColor  = color.New(color.Faint)
)

// RunExplain prints how tokens would be segmented without running
// anything.
func RunExplain(w io.Writer, cfg *config.Config, logger *zap.Logger, tokens []string) int {
	cls, err := newClassifier(cfg, lookup.FromEnv(cfg.SearchPath), logger)
	if err != nil {
		fmt.Fprintf(w, "pipe: %v\n", err)
		return ExitConfig
	}
	p, err := pipeline.Parse(tokens, cls)
	if err != nil {
		fmt.Fprintf(w, "pipe: %v\n", err)
		return ExitUsage
	}
	writeExplain(w, p)
	return 0
}

func writeExplain(w io.Writer, p *pipeline.Pipeline) {
	for _, s := range p.Stages {
		fmt.Fprintf(w, "%s  %s", stageColor.Sprintf("stage %d", s.Index), nameColor.Sprint(quote(s.Name())))
		for _, arg := range s.Args() {
			fmt.Fprintf(w, " %s", quote(arg))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, noteColor.Sprintf("%s, %s", plural(p.Len(), "stage"), plural(p.Len()-1, "pipe")))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func quote(tok string) string {
	if tok == "" || strings.ContainsAny(tok, " \t\n'\"\\$`|&;<>*?") {
		return strconv.Quote(tok)
	}
	return tok
}
