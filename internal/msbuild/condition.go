package msbuild

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrConditionSyntax is wrapped by every condition parse failure.
var ErrConditionSyntax = errors.New("invalid condition")

// tokValue covers unquoted $(..), @(..), %(..), numbers and bare words;
// tokIdent is a word directly followed by '(' (a function name).
type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokString
	tokValue
	tokIdent
	tokLParen
	tokRParen
	tokComma
	tokCompare
	tokNot
	tokAnd
	tokOr
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated string at %d", ErrConditionSyntax, i)
			}
			toks = append(toks, token{tokString, s[i+1 : i+1+end], i})
			i += end + 2
		case (c == '$' || c == '@' || c == '%') && i+1 < len(s) && s[i+1] == '(':
			end := matchParen(s, i+1)
			if end < 0 {
				return nil, fmt.Errorf("%w: unbalanced %c( at %d", ErrConditionSyntax, c, i)
			}
			toks = append(toks, token{tokValue, s[i : end+1], i})
			i = end + 1
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '=' || c == '!' || c == '<' || c == '>':
			if i+1 < len(s) && s[i+1] == '=' {
				toks = append(toks, token{tokCompare, s[i : i+2], i})
				i += 2
				continue
			}
			switch c {
			case '!':
				toks = append(toks, token{tokNot, "!", i})
			case '=':
				return nil, fmt.Errorf("%w: single '=' at %d", ErrConditionSyntax, i)
			default:
				toks = append(toks, token{tokCompare, string(c), i})
			}
			i++
		case isWordChar(c):
			start := i
			for i < len(s) && isWordChar(s[i]) {
				i++
			}
			word := s[start:i]
			switch strings.ToLower(word) {
			case "and":
				toks = append(toks, token{tokAnd, word, start})
			case "or":
				toks = append(toks, token{tokOr, word, start})
			default:
				kind := tokValue
				if next := skipSpaces(s, i); next < len(s) && s[next] == '(' {
					kind = tokIdent
				}
				toks = append(toks, token{kind, word, start})
			}
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrConditionSyntax, c, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(s)}), nil
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '.' || c == '-' || c == '+'
}

func skipSpaces(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// condNode is one node of a parsed condition.
type condNode interface {
	isCond()
}

type orNode struct{ left, right condNode }
type andNode struct{ left, right condNode }
type notNode struct{ operand condNode }
type compareNode struct {
	op          string
	left, right *valueNode
}
type callNode struct {
	name string
	args []*valueNode
}
type valueNode struct {
	raw    string
	quoted bool
}

func (orNode) isCond()      {}
func (andNode) isCond()     {}
func (notNode) isCond()     {}
func (compareNode) isCond() {}
func (callNode) isCond()    {}
func (valueNode) isCond()   {}

// Condition is a parsed MSBuild condition expression.
type Condition struct {
	text string
	root condNode
}

// ParseCondition parses s. An empty or blank condition is always true.
func ParseCondition(s string) (*Condition, error) {
	if strings.TrimSpace(s) == "" {
		return &Condition{text: s}, nil
	}
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	p := &condParser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrConditionSyntax, t.text, t.pos)
	}
	return &Condition{text: s, root: root}, nil
}

func (c *Condition) String() string { return c.text }

type condParser struct {
	toks []token
	pos  int
}

func (p *condParser) peek() token { return p.toks[p.pos] }

func (p *condParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *condParser) parseOr() (condNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orNode{left, right}
	}
	return left, nil
}

func (p *condParser) parseAnd() (condNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &andNode{left, right}
	}
	return left, nil
}

func (p *condParser) parseUnary() (condNode, error) {
	if p.peek().kind == tokNot {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{operand}, nil
	}
	return p.parseCompare()
}

func (p *condParser) parseCompare() (condNode, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokCompare {
		return left, nil
	}
	op := p.next()
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	lv, lok := left.(*valueNode)
	rv, rok := right.(*valueNode)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: operator %s needs value operands at %d", ErrConditionSyntax, op.text, op.pos)
	}
	return &compareNode{op: op.text, left: lv, right: rv}, nil
}

func (p *condParser) parsePrimary() (condNode, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("%w: expected ')' at %d", ErrConditionSyntax, closing.pos)
		}
		return inner, nil
	case tokString:
		return &valueNode{raw: t.text, quoted: true}, nil
	case tokValue:
		return &valueNode{raw: t.text}, nil
	case tokIdent:
		return p.parseCall(t)
	case tokEOF:
		return nil, fmt.Errorf("%w: unexpected end of condition", ErrConditionSyntax)
	default:
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrConditionSyntax, t.text, t.pos)
	}
}

func (p *condParser) parseCall(name token) (condNode, error) {
	p.next() // '('
	call := &callNode{name: name.text}
	if p.peek().kind == tokRParen {
		p.next()
		return call, nil
	}
	for {
		arg := p.next()
		switch arg.kind {
		case tokString:
			call.args = append(call.args, &valueNode{raw: arg.text, quoted: true})
		case tokValue:
			call.args = append(call.args, &valueNode{raw: arg.text})
		default:
			return nil, fmt.Errorf("%w: bad argument to %s at %d", ErrConditionSyntax, name.text, arg.pos)
		}
		switch sep := p.next(); sep.kind {
		case tokComma:
			continue
		case tokRParen:
			return call, nil
		default:
			return nil, fmt.Errorf("%w: expected ',' or ')' at %d", ErrConditionSyntax, sep.pos)
		}
	}
}

// conditionEnv is what evaluation needs from the evaluator.
type conditionEnv interface {
	expand(raw string) string
	exists(path string) bool
}

// Eval evaluates the condition. Errors are reported for values that cannot be
// coerced to booleans and for ordering comparisons between non-numbers.
func (c *Condition) Eval(env conditionEnv) (bool, error) {
	if c.root == nil {
		return true, nil
	}
	return evalNode(c.root, env)
}

func evalNode(n condNode, env conditionEnv) (bool, error) {
	switch n := n.(type) {
	case *orNode:
		l, err := evalNode(n.left, env)
		if err != nil || l {
			return l, err
		}
		return evalNode(n.right, env)
	case *andNode:
		l, err := evalNode(n.left, env)
		if err != nil || !l {
			return false, err
		}
		return evalNode(n.right, env)
	case *notNode:
		v, err := evalNode(n.operand, env)
		return !v, err
	case *compareNode:
		return compareValues(n.op, n.left.value(env), n.right.value(env))
	case *callNode:
		return evalCall(n, env)
	case *valueNode:
		v := n.value(env)
		b, ok := parseBoolLiteral(v)
		if !ok {
			return false, fmt.Errorf("%w: %q does not evaluate to a boolean", ErrConditionSyntax, v)
		}
		return b, nil
	}
	return false, fmt.Errorf("%w: unknown node", ErrConditionSyntax)
}

func (v *valueNode) value(env conditionEnv) string {
	return unescapeValue(env.expand(v.raw))
}

func evalCall(n *callNode, env conditionEnv) (bool, error) {
	if len(n.args) != 1 {
		return false, fmt.Errorf("%w: %s expects one argument", ErrConditionSyntax, n.name)
	}
	arg := strings.TrimSpace(n.args[0].value(env))
	switch strings.ToLower(n.name) {
	case "exists":
		if arg == "" {
			return false, nil
		}
		return env.exists(arg), nil
	case "hastrailingslash":
		return strings.HasSuffix(arg, "/") || strings.HasSuffix(arg, `\`), nil
	}
	return false, fmt.Errorf("%w: unknown function %s", ErrConditionSyntax, n.name)
}

func compareValues(op, left, right string) (bool, error) {
	ln, lok := parseNumber(left)
	rn, rok := parseNumber(right)
	if lok && rok {
		switch op {
		case "==":
			return ln == rn, nil
		case "!=":
			return ln != rn, nil
		case "<":
			return ln < rn, nil
		case "<=":
			return ln <= rn, nil
		case ">":
			return ln > rn, nil
		case ">=":
			return ln >= rn, nil
		}
	}
	switch op {
	case "==":
		return strings.EqualFold(left, right), nil
	case "!=":
		return !strings.EqualFold(left, right), nil
	}
	return false, fmt.Errorf("%w: %q %s %q compares non-numeric values", ErrConditionSyntax, left, op, right)
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 64)
		return float64(v), err == nil
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func parseBoolLiteral(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "yes", "!false", "!off", "!no":
		return true, true
	case "false", "off", "no", "!true", "!on", "!yes":
		return false, true
	}
	return false, false
}

// Comparison is one equality test found in a condition, with raw operands.
type Comparison struct {
	Op    string
	Left  string
	Right string
}

// Comparisons returns every == / != test in the condition in source order.
func (c *Condition) Comparisons() []Comparison {
	var out []Comparison
	var walk func(condNode)
	walk = func(n condNode) {
		switch n := n.(type) {
		case *orNode:
			walk(n.left)
			walk(n.right)
		case *andNode:
			walk(n.left)
			walk(n.right)
		case *notNode:
			walk(n.operand)
		case *compareNode:
			if n.op == "==" || n.op == "!=" {
				out = append(out, Comparison{Op: n.op, Left: n.left.raw, Right: n.right.raw})
			}
		}
	}
	if c.root != nil {
		walk(c.root)
	}
	return out
}
