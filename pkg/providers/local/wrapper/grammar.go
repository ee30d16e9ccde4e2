package wrapper

import (
	"strconv"
	"strings"

	"github.com/germanamz/huddle/pkg/tools/toolbox"
)

// jsonGrammar is the GBNF tail shared by every function-call grammar.
const jsonGrammar = `object ::= "{" ws ( string ":" ws value ( "," ws string ":" ws value )* )? "}" ws
value ::= object | array | string | number | ("true" | "false" | "null") ws
array ::= "[" ws ( value ( "," ws value )* )? "]" ws
string ::= "\"" ( [^"\\] | "\\" (["\\/bfnrt] | "u" [0-9a-fA-F] [0-9a-fA-F] [0-9a-fA-F] [0-9a-fA-F]) )* "\"" ws
number ::= "-"? ([0-9] | [1-9] [0-9]*) ("." [0-9]+)? ([eE] [-+]? [0-9]+)? ws
ws ::= ([ \t\n] ws)?
`

// grammarWrapper constrains a wrapper's output to the function-call JSON
// shape, with the function name limited to the declared tools.
type grammarWrapper struct {
	Wrapper
}

func (g *grammarWrapper) Name() string { return g.Wrapper.Name() + GrammarSuffix }

func (g *grammarWrapper) Grammar(tools []toolbox.Tool) string {
	return BuildGrammar(functionNames(tools))
}

// BuildGrammar returns a GBNF grammar accepting one function-call object
// whose "function" is one of names. Without names any string is accepted.
func BuildGrammar(names []string) string {
	var b strings.Builder

	b.WriteString(`root ::= "{" ws "\"function\":" ws function-name "," ws "\"params\":" ws object "}" ws`)
	b.WriteString("\n")

	b.WriteString("function-name ::= ")
	if len(names) == 0 {
		b.WriteString("string")
	} else {
		for i, n := range names {
			if i > 0 {
				b.WriteString(" | ")
			}
			// GBNF literal for the JSON string "n".
			b.WriteString(strconv.Quote(strconv.Quote(n)))
		}
		b.WriteString(" ws")
	}
	b.WriteString("\n")

	b.WriteString(jsonGrammar)
	return b.String()
}
