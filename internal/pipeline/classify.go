package pipeline

// Classifier decides whether a token starts a new stage.
type Classifier interface {
	IsCommand(token string) bool
}

// Verdict is a rule's opinion about a token.
type Verdict int

const (
	Abstain Verdict = iota // no opinion, defer to the next rule
	Accept                 // token names a program
	Reject                 // token is an argument
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "abstain"
	}
}

// Rule is one step of a classification chain.
type Rule interface {
	Judge(token string) Verdict
}

// RuleFunc adapts a function to a Rule.
type RuleFunc func(token string) Verdict

func (f RuleFunc) Judge(token string) Verdict { return f(token) }

// Chain is a Classifier that asks each rule in order and stops at the
// first one that does not abstain. A token no rule accepts is an argument.
type Chain []Rule

func (c Chain) IsCommand(token string) bool {
	for _, r := range c {
		switch r.Judge(token) {
		case Accept:
			return true
		case Reject:
			return false
		}
	}
	return false
}

// Syntactic rejects tokens that are almost never program names: empty or
// one-character tokens, option flags and purely numeric tokens.
var Syntactic RuleFunc = func(token string) Verdict {
	if len(token) <= 1 || token[0] == '-' || isNumeric(token) {
		return Reject
	}
	return Abstain
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Prober reports whether a name resolves to an executable program.
type Prober interface {
	Executable(name string) bool
}

// Probe turns a Prober into a rule that never abstains.
func Probe(p Prober) Rule {
	return RuleFunc(func(token string) Verdict {
		if p.Executable(token) {
			return Accept
		}
		return Reject
	})
}
