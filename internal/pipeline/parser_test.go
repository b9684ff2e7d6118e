package pipeline

import (
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

// known is a Prober backed by a fixed set of program names.
type known map[string]bool

func (k known) Executable(name string) bool { return k[name] }

func newTestClassifier() Classifier {
	progs := known{
		"sort": true, "uniq": true, "head": true, "grep": true,
		"cat": true, "tr": true, "wc": true, "1": true, "-x": true,
		"/usr/bin/env": true,
	}
	return Chain{Syntactic, Probe(progs)}
}

func names(p *Pipeline) [][]string {
	return p.Argv()
}

func TestParseSortUniq(t *testing.T) {
	p, err := Parse([]string{"sort", "uniq", "-c"}, newTestClassifier())
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"sort"}, {"uniq", "-c"}}
	if got := names(p); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseSingleToken(t *testing.T) {
	p, err := Parse([]string{"whatever"}, newTestClassifier())
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 stage, got %d", p.Len())
	}
	if p.Stages[0].Name() != "whatever" || len(p.Stages[0].Args()) != 0 {
		t.Errorf("unexpected stage: %+v", p.Stages[0])
	}
}

func TestParseFirstTokenAlwaysStarts(t *testing.T) {
	// "-x" would be rejected anywhere else.
	p, err := Parse([]string{"-x", "sort"}, newTestClassifier())
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"-x"}, {"sort"}}
	if got := names(p); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseLongPipeline(t *testing.T) {
	args := strings.Fields("grep -r TODO src/ sort uniq -c head -20 tr a-z A-Z")
	p, err := Parse(args, newTestClassifier())
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"grep", "-r", "TODO", "src/"},
		{"sort"},
		{"uniq", "-c"},
		{"head", "-20"},
		{"tr", "a-z", "A-Z"},
	}
	if got := names(p); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	for i, s := range p.Stages {
		if s.Index != i {
			t.Errorf("stage %d has index %d", i, s.Index)
		}
	}
}

func TestParseSyntacticRejects(t *testing.T) {
	// "1" and "-x" are "installed" but never start a stage after the first.
	args := []string{"head", "-x", "1", "", "a", "/usr/bin/env", "cat"}
	p, err := Parse(args, newTestClassifier())
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"head", "-x", "1", "", "a"}, {"/usr/bin/env"}, {"cat"}}
	if got := names(p); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseMisclassifiesArgumentNamedLikeProgram(t *testing.T) {
	// grep for the word "sort": the argument looks like a program.
	p, err := Parse([]string{"grep", "sort"}, newTestClassifier())
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 2 {
		t.Errorf("expected the known ambiguity to split into 2 stages, got %d", p.Len())
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(nil, newTestClassifier())
	if !errors.Is(err, ErrEmptyPipeline) {
		t.Errorf("expected ErrEmptyPipeline, got %v", err)
	}
}

func TestParsePartition(t *testing.T) {
	vocab := []string{"sort", "uniq", "-c", "-n", "42", "x", "file.txt", "cat", "", "head"}
	c := newTestClassifier()
	rng := rand.New(rand.NewSource(1))

	for iter := 0; iter < 500; iter++ {
		tokens := make([]string, 1+rng.Intn(12))
		for i := range tokens {
			tokens[i] = vocab[rng.Intn(len(vocab))]
		}
		p, err := Parse(tokens, c)
		if err != nil {
			t.Fatal(err)
		}

		var joined []string
		for i, s := range p.Stages {
			if len(s.Tokens) == 0 {
				t.Fatalf("%q: stage %d is empty", tokens, i)
			}
			if i > 0 && !c.IsCommand(s.Name()) {
				t.Fatalf("%q: stage %d starts with an argument %q", tokens, i, s.Name())
			}
			for _, arg := range s.Args() {
				if c.IsCommand(arg) {
					t.Fatalf("%q: command %q left inside stage %d", tokens, arg, i)
				}
			}
			joined = append(joined, s.Tokens...)
		}
		if !reflect.DeepEqual(joined, tokens) {
			t.Fatalf("partition lost order or tokens: %q -> %q", tokens, joined)
		}
	}
}

func TestParseStagesDoNotAlias(t *testing.T) {
	tokens := []string{"sort", "uniq", "-c"}
	p, err := Parse(tokens, newTestClassifier())
	if err != nil {
		t.Fatal(err)
	}
	// Appending to one stage must not clobber the next.
	_ = append(p.Stages[0].Tokens, "clobber")
	if tokens[1] != "uniq" {
		t.Errorf("stage tokens alias the following stage")
	}
}

func TestChainOrder(t *testing.T) {
	accept := RuleFunc(func(string) Verdict { return Accept })
	reject := RuleFunc(func(string) Verdict { return Reject })
	abstain := RuleFunc(func(string) Verdict { return Abstain })

	tests := []struct {
		name  string
		chain Chain
		want  bool
	}{
		{"empty", Chain{}, false},
		{"all abstain", Chain{abstain, abstain}, false},
		{"accept first", Chain{accept, reject}, true},
		{"reject first", Chain{abstain, reject, accept}, false},
		{"syntactic veto", Chain{Syntactic, accept}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.chain.IsCommand("-n"); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSyntactic(t *testing.T) {
	for _, tok := range []string{"", "a", "-", "-c", "--long", "0", "123"} {
		if v := Syntactic.Judge(tok); v != Reject {
			t.Errorf("%q: expected reject, got %v", tok, v)
		}
	}
	for _, tok := range []string{"ls", "1a", "a1", "./x", "12-3"} {
		if v := Syntactic.Judge(tok); v != Abstain {
			t.Errorf("%q: expected abstain, got %v", tok, v)
		}
	}
}
