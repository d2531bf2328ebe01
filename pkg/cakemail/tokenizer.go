package cakemail

import (
	"strings"
	"unicode"
)

// TokenType represents the type of a template token
type TokenType int

const (
	TokenText TokenType = iota
	TokenMergeField
	TokenCurrentDate
	TokenIf
	TokenElseIf
	TokenElse
	TokenEndIf
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "Text"
	case TokenMergeField:
		return "MergeField"
	case TokenCurrentDate:
		return "CurrentDate"
	case TokenIf:
		return "If"
	case TokenElseIf:
		return "ElseIf"
	case TokenElse:
		return "Else"
	case TokenEndIf:
		return "EndIf"
	default:
		return "Unknown"
	}
}

// Token represents a parsed template token. Value holds the condition for
// IF/ELSEIF tokens, the bracket contents for merge fields and dates, and the
// literal text for text tokens. Raw is the exact source text.
type Token struct {
	Type  TokenType
	Value string
	Raw   string
	Pos   int
}

// Tokenize splits content into text and bracket tokens. A bracket runs from
// '[' to the first ']' on the same line; a '[' without one is plain text.
func Tokenize(input string) []Token {
	var tokens []Token
	textStart := 0

	logger := GetLogger()

	for i := 0; i < len(input); {
		open := strings.IndexByte(input[i:], '[')
		if open < 0 {
			break
		}
		open += i
		end := closingBracket(input, open+1)
		if end < 0 {
			i = open + 1
			continue
		}
		if open > textStart {
			tokens = append(tokens, Token{Type: TokenText, Value: input[textStart:open], Raw: input[textStart:open], Pos: textStart})
		}
		tok := classifyBracket(input[open+1 : end])
		tok.Raw = input[open : end+1]
		tok.Pos = open
		tokens = append(tokens, tok)
		textStart = end + 1
		i = end + 1
	}

	if textStart < len(input) {
		tokens = append(tokens, Token{Type: TokenText, Value: input[textStart:], Raw: input[textStart:], Pos: textStart})
	}

	if logger.IsDebugMode() {
		logger.WithFields(LogFields{
			"input_length": len(input),
			"token_count":  len(tokens),
		}).Debug("Tokenization complete")
	}

	return tokens
}

// closingBracket returns the index of the first ']' at or after from, or -1
// if a newline comes first.
func closingBracket(input string, from int) int {
	for j := from; j < len(input); j++ {
		switch input[j] {
		case ']':
			return j
		case '\n':
			return -1
		}
	}
	return -1
}

// classifyBracket determines the token type from the text between brackets
func classifyBracket(content string) Token {
	trimmed := strings.TrimSpace(content)

	if cond, ok := keywordArgument(trimmed, "IF"); ok {
		return Token{Type: TokenIf, Value: cond}
	}
	if cond, ok := keywordArgument(trimmed, "ELSEIF"); ok {
		return Token{Type: TokenElseIf, Value: cond}
	}
	switch trimmed {
	case "ELSE":
		return Token{Type: TokenElse}
	case "ENDIF":
		return Token{Type: TokenEndIf}
	}

	name, _, _ := strings.Cut(content, "|")
	switch strings.TrimSpace(name) {
	case "NOW", "TODAY", "DATE":
		return Token{Type: TokenCurrentDate, Value: content}
	}

	return Token{Type: TokenMergeField, Value: content}
}

// keywordArgument matches "KEYWORD <argument>" and returns the trimmed argument.
func keywordArgument(s, keyword string) (string, bool) {
	if !strings.HasPrefix(s, keyword) || len(s) <= len(keyword) {
		return "", false
	}
	rest := s[len(keyword):]
	if !unicode.IsSpace(rune(rest[0])) {
		return "", false
	}
	arg := strings.TrimSpace(rest)
	return arg, arg != ""
}

// FindPlaceholders returns the raw text of every bracket token in input.
// This is a utility function for debugging and analysis
func FindPlaceholders(input string) []string {
	placeholders := []string{}
	for _, tok := range Tokenize(input) {
		if tok.Type != TokenText {
			placeholders = append(placeholders, tok.Raw)
		}
	}
	return placeholders
}
