package ilasm

import (
	"fmt"
	"strconv"
	"strings"
)

// typeExpr is a parsed, unresolved type name.
type typeExpr struct {
	// param is the position of a generic parameter, or -1.
	param       int
	methodParam bool

	scope string
	name  string
	args  []*typeExpr
	ranks []int
}

// methodExpr is a parsed, unresolved method reference:
// "[instance] Ret Decl::Name[<Args>](Params)".
type methodExpr struct {
	hasThis bool
	ret     *typeExpr
	decl    *typeExpr
	name    string
	args    []*typeExpr
	generic bool
	params  []*typeExpr
}

// fieldExpr is a parsed, unresolved field reference: "Type Decl::Name".
type fieldExpr struct {
	typ  *typeExpr
	decl *typeExpr
	name string
}

type parser struct {
	src string
	pos int
}

func parseType(s string) (*typeExpr, error) {
	p := &parser{src: s}

	t, err := p.typeExpr()
	if err != nil {
		return nil, err
	}

	return t, p.end()
}

func parseMethod(s string) (*methodExpr, error) {
	p := &parser{src: s}

	m, err := p.methodExpr()
	if err != nil {
		return nil, err
	}

	return m, p.end()
}

func parseField(s string) (*fieldExpr, error) {
	p := &parser{src: s}

	typ, err := p.typeExpr()
	if err != nil {
		return nil, err
	}

	decl, err := p.typeExpr()
	if err != nil {
		return nil, err
	}

	if err := p.expect("::"); err != nil {
		return nil, err
	}

	name := p.ident()
	if name == "" {
		return nil, p.errorf("missing field name")
	}

	return &fieldExpr{typ: typ, decl: decl, name: name}, p.end()
}

func (p *parser) methodExpr() (*methodExpr, error) {
	m := &methodExpr{}

	p.skipSpace()

	if strings.HasPrefix(p.src[p.pos:], "instance ") {
		m.hasThis = true
		p.pos += len("instance ")
	}

	var err error

	if m.ret, err = p.typeExpr(); err != nil {
		return nil, err
	}

	if m.decl, err = p.typeExpr(); err != nil {
		return nil, err
	}

	if err := p.expect("::"); err != nil {
		return nil, err
	}

	m.name = p.memberName()
	if m.name == "" {
		return nil, p.errorf("missing method name")
	}

	if p.peek() == '<' {
		p.pos++
		m.generic = true

		if m.args, err = p.typeList('>'); err != nil {
			return nil, err
		}
	}

	if err := p.expect("("); err != nil {
		return nil, err
	}

	if m.params, err = p.typeList(')'); err != nil {
		return nil, err
	}

	return m, nil
}

func (p *parser) typeExpr() (*typeExpr, error) {
	p.skipSpace()

	t := &typeExpr{param: -1}

	switch {
	case strings.HasPrefix(p.src[p.pos:], "!!"):
		p.pos += 2
		t.methodParam = true

		return p.paramIndex(t)

	case p.peek() == '!':
		p.pos++

		return p.paramIndex(t)
	}

	if p.peek() == '[' {
		end := strings.IndexByte(p.src[p.pos:], ']')
		if end < 0 {
			return nil, p.errorf("unterminated scope")
		}

		t.scope = p.src[p.pos+1 : p.pos+end]
		p.pos += end + 1
	}

	t.name = p.ident()
	if t.name == "" {
		return nil, p.errorf("missing type name")
	}

	if p.peek() == '<' {
		p.pos++

		args, err := p.typeList('>')
		if err != nil {
			return nil, err
		}

		t.args = args
	}

	return p.arraySuffix(t)
}

func (p *parser) paramIndex(t *typeExpr) (*typeExpr, error) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}

	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return nil, p.errorf("bad generic parameter index")
	}

	t.param = n

	return p.arraySuffix(t)
}

func (p *parser) arraySuffix(t *typeExpr) (*typeExpr, error) {
	for p.peek() == '[' {
		rank := 1
		p.pos++

		for p.peek() == ',' {
			rank++
			p.pos++
		}

		if err := p.expect("]"); err != nil {
			return nil, err
		}

		t.ranks = append(t.ranks, rank)
	}

	return t, nil
}

// typeList parses comma separated types up to and including closing.
func (p *parser) typeList(closing byte) ([]*typeExpr, error) {
	var out []*typeExpr

	p.skipSpace()

	if p.peek() == closing {
		p.pos++
		return out, nil
	}

	for {
		t, err := p.typeExpr()
		if err != nil {
			return nil, err
		}

		out = append(out, t)

		p.skipSpace()

		switch p.peek() {
		case ',':
			p.pos++
		case closing:
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or %q", closing)
		}
	}
}

// ident reads a type name: everything up to a delimiter.
func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune(" <>[](),:", rune(p.src[p.pos])) {
		p.pos++
	}

	return p.src[start:p.pos]
}

// memberName reads a method or field name, which may start with a dot.
func (p *parser) memberName() string {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune(" <>()", rune(p.src[p.pos])) {
		p.pos++
	}

	return p.src[start:p.pos]
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}

	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for p.peek() == ' ' || p.peek() == '\t' {
		p.pos++
	}
}

func (p *parser) expect(s string) error {
	p.skipSpace()

	if !strings.HasPrefix(p.src[p.pos:], s) {
		return p.errorf("expected %q", s)
	}

	p.pos += len(s)

	return nil
}

func (p *parser) end() error {
	p.skipSpace()

	if p.pos < len(p.src) {
		return p.errorf("unexpected trailing text %q", p.src[p.pos:])
	}

	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%s at %d in %q", fmt.Sprintf(format, args...), p.pos, p.src)
}
