package engine

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Scope — снимок данных, против которого вычисляется условие запуска.
//
// Scope строится один раз перед вычислением и не ссылается на живое
// изменяемое состояние: scheduler кладёт сюда копии outputs зависимостей.
type Scope struct {
	// Inputs — входные параметры run.
	Inputs map[string]string

	// Jobs — терминальные результаты upstream jobs (имя → JobScope).
	Jobs map[string]*JobScope
}

// JobScope — видимый из условия результат одного job.
type JobScope struct {
	// Outputs — outputs job (копия).
	Outputs map[string]string

	// ExitCode — итоговый код выхода.
	ExitCode int

	// Status — терминальный статус: "SUCCESS", "FAILURE", "SKIPPED".
	Status string
}

// NewScope создаёт пустой Scope с входными параметрами.
func NewScope(inputs map[string]string) *Scope {
	if inputs == nil {
		inputs = make(map[string]string)
	}
	return &Scope{
		Inputs: inputs,
		Jobs:   make(map[string]*JobScope),
	}
}

// AddResult добавляет результат job в Scope.
// Outputs копируются: условия никогда не читают разделяемое состояние.
func (s *Scope) AddResult(res *domain.RunResult) {
	s.Jobs[res.JobName] = &JobScope{
		Outputs:  res.CopyOutputs(),
		ExitCode: res.ExitCode,
		Status:   string(res.Status),
	}
}

// value — результат вычисления подвыражения.
//
// Ссылка на несуществующий output даёт kindAbsent — специальное
// значение, с которым любое сравнение ложно. Это не ошибка:
// опциональные upstream-данные могут отсутствовать.
type value struct {
	kind valueKind
	str  string
	num  float64
	b    bool
}

type valueKind int

const (
	kindAbsent valueKind = iota
	kindString
	kindNumber
	kindBool
)

func stringValue(s string) value  { return value{kind: kindString, str: s} }
func numberValue(n float64) value { return value{kind: kindNumber, num: n} }
func boolValue(b bool) value      { return value{kind: kindBool, b: b} }

var absent = value{kind: kindAbsent}

// truthy приводит значение к bool для использования в && и ||.
// Absent всегда false; строка истинна, только если равна "true".
func (v value) truthy() bool {
	switch v.kind {
	case kindBool:
		return v.b
	case kindNumber:
		return v.num != 0
	case kindString:
		return v.str == "true"
	default:
		return false
	}
}

// equals сравнивает два значения. Absent не равен ничему —
// и не "не равен": сравнение с absent всегда ложно.
func (v value) equals(other value) (bool, bool) {
	if v.kind == kindAbsent || other.kind == kindAbsent {
		return false, false
	}
	// Числа сравниваем численно, даже если одно пришло строкой.
	if n1, ok1 := v.asNumber(); ok1 {
		if n2, ok2 := other.asNumber(); ok2 {
			return n1 == n2, true
		}
	}
	return v.asString() == other.asString(), true
}

func (v value) asNumber() (float64, bool) {
	switch v.kind {
	case kindNumber:
		return v.num, true
	case kindString:
		n, err := strconv.ParseFloat(v.str, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func (v value) asString() string {
	switch v.kind {
	case kindString:
		return v.str
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// expr — запечатанное дерево выражения условия.
// Варианты: literal, reference, comparison, logical (And/Or).
type expr interface {
	eval(s *Scope) value
}

// literalExpr — литерал: строка, число или bool.
type literalExpr struct {
	val value
}

func (e *literalExpr) eval(_ *Scope) value { return e.val }

// refExpr — ссылка на данные scope:
//
//	inputs.<key>
//	jobs.<name>.outputs.<key>
//	jobs.<name>.exit_code
//	jobs.<name>.status
type refExpr struct {
	path []string
}

func (e *refExpr) eval(s *Scope) value {
	switch e.path[0] {
	case "inputs":
		if len(e.path) != 2 {
			return absent
		}
		v, ok := s.Inputs[e.path[1]]
		if !ok {
			return absent
		}
		return stringValue(v)

	case "jobs":
		if len(e.path) < 3 {
			return absent
		}
		job, ok := s.Jobs[e.path[1]]
		if !ok {
			return absent
		}
		switch e.path[2] {
		case "exit_code":
			return numberValue(float64(job.ExitCode))
		case "status":
			return stringValue(job.Status)
		case "outputs":
			if len(e.path) != 4 {
				return absent
			}
			v, ok := job.Outputs[e.path[3]]
			if !ok {
				return absent
			}
			return stringValue(v)
		}
	}
	return absent
}

// comparisonExpr — сравнение == или !=.
type comparisonExpr struct {
	op    string // "==" или "!="
	left  expr
	right expr
}

func (e *comparisonExpr) eval(s *Scope) value {
	eq, ok := e.left.eval(s).equals(e.right.eval(s))
	if !ok {
		// Одна из сторон absent: сравнение ложно независимо от оператора.
		return boolValue(false)
	}
	if e.op == "!=" {
		return boolValue(!eq)
	}
	return boolValue(eq)
}

// logicalExpr — логическое И / ИЛИ.
type logicalExpr struct {
	op    string // "&&" или "||"
	left  expr
	right expr
}

func (e *logicalExpr) eval(s *Scope) value {
	l := e.left.eval(s).truthy()
	if e.op == "&&" {
		return boolValue(l && e.right.eval(s).truthy())
	}
	return boolValue(l || e.right.eval(s).truthy())
}

// Condition — скомпилированное условие запуска.
type Condition struct {
	src  string
	root expr
}

// Source возвращает исходный текст условия.
func (c Condition) Source() string { return c.src }

// Eval вычисляет условие против снимка upstream-результатов.
// Никогда не возвращает ошибку: все синтаксические проблемы
// отлавливаются в ParseCondition на этапе построения плана.
func (c Condition) Eval(s *Scope) bool {
	if c.root == nil {
		return true
	}
	return c.root.eval(s).truthy()
}

// ParseCondition разбирает выражение условия в дерево.
//
// Грамматика:
//
//	or   := and ( "||" and )*
//	and  := cmp ( "&&" cmp )*
//	cmp  := term ( ("==" | "!=") term )?
//	term := literal | reference | "(" or ")"
//
// Пустая строка — валидное условие, всегда истинное.
// Синтаксическая ошибка заворачивается в ErrConditionSyntax.
func ParseCondition(src string) (Condition, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return Condition{src: src}, nil
	}

	tokens, err := lexCondition(trimmed)
	if err != nil {
		return Condition{}, fmt.Errorf("%w: %v", ErrConditionSyntax, err)
	}

	p := &condParser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return Condition{}, fmt.Errorf("%w: %v", ErrConditionSyntax, err)
	}
	if !p.eof() {
		return Condition{}, fmt.Errorf("%w: unexpected token %q", ErrConditionSyntax, p.peek().text)
	}

	return Condition{src: src, root: root}, nil
}

// EvalCondition — парсинг и вычисление за один вызов.
func EvalCondition(src string, s *Scope) (bool, error) {
	cond, err := ParseCondition(src)
	if err != nil {
		return false, err
	}
	return cond.Eval(s), nil
}

// --- Лексер ---

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokOp // == != && || ( )
)

type token struct {
	kind tokenKind
	text string
}

func lexCondition(src string) ([]token, error) {
	tokens := make([]token, 0)
	i := 0
	for i < len(src) {
		c := src[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++

		case c == '(' || c == ')':
			tokens = append(tokens, token{tokOp, string(c)})
			i++

		case c == '=' || c == '!' || c == '&' || c == '|':
			if i+1 >= len(src) {
				return nil, fmt.Errorf("unexpected end after %q", string(c))
			}
			op := src[i : i+2]
			switch op {
			case "==", "!=", "&&", "||":
				tokens = append(tokens, token{tokOp, op})
				i += 2
			default:
				return nil, fmt.Errorf("unknown operator %q", op)
			}

		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(src) && src[j] != quote {
				j++
			}
			if j >= len(src) {
				return nil, fmt.Errorf("unterminated string")
			}
			tokens = append(tokens, token{tokString, src[i+1 : j]})
			i = j + 1

		case c >= '0' && c <= '9' || c == '-':
			j := i + 1
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, src[i:j]})
			i = j

		case unicode.IsLetter(rune(c)) || c == '_':
			j := i
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) ||
				src[j] == '_' || src[j] == '-' || src[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokIdent, src[i:j]})
			i = j

		default:
			return nil, fmt.Errorf("unexpected character %q", string(c))
		}
	}
	return tokens, nil
}

// --- Парсер (рекурсивный спуск) ---

type condParser struct {
	tokens []token
	pos    int
}

func (p *condParser) eof() bool { return p.pos >= len(p.tokens) }

func (p *condParser) peek() token {
	if p.eof() {
		return token{}
	}
	return p.tokens[p.pos]
}

func (p *condParser) acceptOp(text string) bool {
	if !p.eof() && p.tokens[p.pos].kind == tokOp && p.tokens[p.pos].text == text {
		p.pos++
		return true
	}
	return false
}

func (p *condParser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicalExpr{op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *condParser) parseAnd() (expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.acceptOp("&&") {
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &logicalExpr{op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *condParser) parseComparison() (expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for _, op := range []string{"==", "!="} {
		if p.acceptOp(op) {
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			return &comparisonExpr{op: op, left: left, right: right}, nil
		}
	}
	return left, nil
}

func (p *condParser) parseTerm() (expr, error) {
	if p.eof() {
		return nil, fmt.Errorf("unexpected end of expression")
	}

	if p.acceptOp("(") {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.acceptOp(")") {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil
	}

	tok := p.tokens[p.pos]
	switch tok.kind {
	case tokString:
		p.pos++
		return &literalExpr{val: stringValue(tok.text)}, nil

	case tokNumber:
		p.pos++
		n, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", tok.text)
		}
		return &literalExpr{val: numberValue(n)}, nil

	case tokIdent:
		p.pos++
		switch tok.text {
		case "true":
			return &literalExpr{val: boolValue(true)}, nil
		case "false":
			return &literalExpr{val: boolValue(false)}, nil
		}
		path := strings.Split(tok.text, ".")
		if path[0] != "inputs" && path[0] != "jobs" {
			return nil, fmt.Errorf("unknown reference root %q", path[0])
		}
		return &refExpr{path: path}, nil

	default:
		return nil, fmt.Errorf("unexpected token %q", tok.text)
	}
}
