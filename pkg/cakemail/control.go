package cakemail

import (
	"fmt"
	"strings"
	"time"
)

// Node is an element of a parsed template.
type Node interface {
	render(ctx *renderContext, b *strings.Builder)
	String() string
}

// renderContext holds everything a single Render call reads.
type renderContext struct {
	data       Data
	culture    *culture
	now        func() time.Time
	dateFormat string
	logger     *Logger
}

// TextNode represents literal content
type TextNode struct {
	Text string
}

func (n *TextNode) String() string {
	return fmt.Sprintf("Text(%q)", n.Text)
}

func (n *TextNode) render(_ *renderContext, b *strings.Builder) {
	b.WriteString(n.Text)
}

// MergeFieldNode represents [name], [name,fallback], [name|format] and
// [name,fallback|format].
type MergeFieldNode struct {
	Name     string
	Fallback string
	Format   string
}

func (n *MergeFieldNode) String() string {
	return fmt.Sprintf("Field(%s, fallback=%q, format=%q)", n.Name, n.Fallback, n.Format)
}

func (n *MergeFieldNode) render(ctx *renderContext, b *strings.Builder) {
	value, ok := ctx.data.lookup(n.Name)
	if !ok {
		b.WriteString(n.Fallback)
		return
	}

	switch {
	case value.kind == KindTime:
		format := n.Format
		if format == "" {
			format = ctx.dateFormat
		}
		b.WriteString(formatDate(value.t, format, ctx.culture))
	case value.IsNumeric():
		b.WriteString(formatNumber(value, n.Format, ctx.culture))
	default:
		b.WriteString(value.text(ctx.culture))
	}
}

// parseMergeField splits bracket contents into name, fallback and format. The
// format follows the first '|'; the name and fallback are separated by the
// first ','.
func parseMergeField(content string) *MergeFieldNode {
	head, format, _ := strings.Cut(content, "|")
	name, fallback, _ := strings.Cut(head, ",")
	return &MergeFieldNode{
		Name:     strings.TrimSpace(name),
		Fallback: strings.TrimSpace(fallback),
		Format:   strings.TrimSpace(format),
	}
}

// CurrentDateNode represents [NOW], [TODAY] and [DATE] with an optional format.
type CurrentDateNode struct {
	Keyword string
	Format  string
}

func (n *CurrentDateNode) String() string {
	return fmt.Sprintf("Date(%s, format=%q)", n.Keyword, n.Format)
}

func (n *CurrentDateNode) render(ctx *renderContext, b *strings.Builder) {
	b.WriteString(formatDate(ctx.now().UTC(), n.Format, ctx.culture))
}

func parseCurrentDate(content string) *CurrentDateNode {
	keyword, format, _ := strings.Cut(content, "|")
	return &CurrentDateNode{
		Keyword: strings.TrimSpace(keyword),
		Format:  strings.TrimSpace(format),
	}
}

// IfNode represents an IF block
type IfNode struct {
	Condition Condition
	ThenBody  []Node
	ElseIfs   []*ElseIfNode
	ElseBody  []Node
}

func (n *IfNode) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("If(%s)", n.Condition.String()))
	for _, elseIf := range n.ElseIfs {
		parts = append(parts, elseIf.String())
	}
	if len(n.ElseBody) > 0 {
		parts = append(parts, "Else")
	}
	return strings.Join(parts, " ")
}

func (n *IfNode) render(ctx *renderContext, b *strings.Builder) {
	if n.Condition.evaluate(ctx) {
		renderNodes(n.ThenBody, ctx, b)
		return
	}

	for _, elseIf := range n.ElseIfs {
		if elseIf.Condition.evaluate(ctx) {
			renderNodes(elseIf.Body, ctx, b)
			return
		}
	}

	renderNodes(n.ElseBody, ctx, b)
}

// ElseIfNode represents an ELSEIF clause
type ElseIfNode struct {
	Condition Condition
	Body      []Node
}

func (n *ElseIfNode) String() string {
	return fmt.Sprintf("ElseIf(%s)", n.Condition.String())
}

func renderNodes(nodes []Node, ctx *renderContext, b *strings.Builder) {
	for _, node := range nodes {
		node.render(ctx, b)
	}
}

// controlParser builds the node tree from a token stream.
type controlParser struct {
	tokens    []Token
	pos       int
	mergeOnly bool
	logger    *Logger
	// unresolved is set once an ENDIF shows up before any IF it could close.
	// From there on every bracket renders as a merge field.
	unresolved bool
}

func newControlParser(tokens []Token, mergeOnly bool, logger *Logger) *controlParser {
	return &controlParser{
		tokens:    tokens,
		mergeOnly: mergeOnly,
		logger:    logger,
	}
}

// checkBalance fails when the numbers of IF and ENDIF markers differ.
func checkBalance(tokens []Token) error {
	var ifs, endIfs []Token
	for _, tok := range tokens {
		switch tok.Type {
		case TokenIf:
			ifs = append(ifs, tok)
		case TokenEndIf:
			endIfs = append(endIfs, tok)
		}
	}
	if len(ifs) == len(endIfs) {
		return nil
	}

	// Report the first marker that cannot be paired.
	depth := 0
	var open []Token
	for _, tok := range tokens {
		switch tok.Type {
		case TokenIf:
			open = append(open, tok)
			depth++
		case TokenEndIf:
			if depth == 0 {
				if len(endIfs) > len(ifs) {
					return NewTemplateError("ENDIF without a matching IF", tok.Raw, tok.Pos)
				}
				continue
			}
			open = open[:len(open)-1]
			depth--
		}
	}
	if len(open) > 0 {
		tok := open[0]
		return NewTemplateError("a variant is missing its matching ENDIF", tok.Raw, tok.Pos)
	}
	tok := ifs[0]
	return NewTemplateError("a variant is missing its matching ENDIF", tok.Raw, tok.Pos)
}

// Parse builds the node list for the whole token stream.
func (p *controlParser) Parse() ([]Node, error) {
	if !p.mergeOnly {
		if err := checkBalance(p.tokens); err != nil {
			return nil, err
		}
	}
	return p.parseBody(0), nil
}

// parseBody collects nodes until a branch marker that belongs to an enclosing
// block (depth > 0) or the end of input. ELSE and ELSEIF at depth 0 have no
// block to belong to and are dropped. An ENDIF at depth 0 stops conditional
// resolution for the rest of the stream.
func (p *controlParser) parseBody(depth int) []Node {
	var nodes []Node
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]

		if p.mergeOnly || p.unresolved {
			nodes = append(nodes, p.mergeOnlyNode(tok))
			p.pos++
			continue
		}

		switch tok.Type {
		case TokenText:
			nodes = append(nodes, &TextNode{Text: tok.Value})
			p.pos++
		case TokenMergeField:
			nodes = append(nodes, parseMergeField(tok.Value))
			p.pos++
		case TokenCurrentDate:
			nodes = append(nodes, parseCurrentDate(tok.Value))
			p.pos++
		case TokenIf:
			start := p.pos
			p.pos++
			if node := p.parseIf(tok, depth+1); node != nil {
				nodes = append(nodes, node)
				continue
			}
			// No ENDIF before the end of input: leave this IF and
			// everything after it unresolved.
			p.logger.Debug("IF at position %d has no matching ENDIF, leaving the rest unresolved", tok.Pos)
			p.unresolved = true
			p.pos = start
		case TokenEndIf:
			if depth > 0 {
				return nodes
			}
			p.logger.Debug("ENDIF at position %d precedes its IF, leaving the rest unresolved", tok.Pos)
			p.unresolved = true
		case TokenElseIf, TokenElse:
			if depth > 0 {
				return nodes
			}
			p.logger.Debug("Dropping %s at position %d outside of an IF block", tok.Type, tok.Pos)
			p.pos++
		}
	}
	return nodes
}

// parseIf parses the branches following an IF token. It returns nil when the
// input ends before the matching ENDIF.
func (p *controlParser) parseIf(tok Token, depth int) *IfNode {
	node := &IfNode{Condition: ParseCondition(tok.Value)}
	node.ThenBody = p.parseBody(depth)

	elseSeen := false
	for p.pos < len(p.tokens) {
		branch := p.tokens[p.pos]
		p.pos++

		switch branch.Type {
		case TokenEndIf:
			return node
		case TokenElseIf:
			body := p.parseBody(depth)
			if elseSeen {
				p.logger.Debug("ELSEIF at position %d follows ELSE, merging into ELSE body", branch.Pos)
				node.ElseBody = append(node.ElseBody, body...)
				continue
			}
			node.ElseIfs = append(node.ElseIfs, &ElseIfNode{
				Condition: ParseCondition(branch.Value),
				Body:      body,
			})
		case TokenElse:
			body := p.parseBody(depth)
			if elseSeen {
				p.logger.Debug("ELSE at position %d follows ELSE, merging into ELSE body", branch.Pos)
			}
			elseSeen = true
			node.ElseBody = append(node.ElseBody, body...)
		}
	}
	return nil
}

// mergeOnlyNode converts a token for the merge-field-only renderer: dates are
// kept and every other bracket is a merge field.
func (p *controlParser) mergeOnlyNode(tok Token) Node {
	switch tok.Type {
	case TokenText:
		return &TextNode{Text: tok.Value}
	case TokenCurrentDate:
		return parseCurrentDate(tok.Value)
	default:
		return parseMergeField(tok.Raw[1 : len(tok.Raw)-1])
	}
}
