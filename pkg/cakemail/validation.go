package cakemail

import "fmt"

// IssueSeverity indicates validation issue severity.
type IssueSeverity string

const (
	IssueSeverityError   IssueSeverity = "error"
	IssueSeverityWarning IssueSeverity = "warning"
)

// IssueCode identifies the kind of a validation issue.
type IssueCode string

const (
	IssueCodeBlockMismatch     IssueCode = "CONTROL_BLOCK_MISMATCH"
	IssueCodeStrayBranch       IssueCode = "STRAY_BRANCH"
	IssueCodeUnreachableBranch IssueCode = "UNREACHABLE_BRANCH"
	IssueCodeInvalidCondition  IssueCode = "INVALID_CONDITION"
	IssueCodeEmptyFieldName    IssueCode = "EMPTY_FIELD_NAME"
)

// ValidationIssue is a problem found in template markup.
type ValidationIssue struct {
	Severity IssueSeverity `json:"severity" yaml:"severity"`
	Code     IssueCode     `json:"code" yaml:"code"`
	Message  string        `json:"message" yaml:"message"`
	Token    string        `json:"token" yaml:"token"`
	Position int           `json:"position" yaml:"position"`
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%s at position %d near '%s': %s [%s]", i.Severity, i.Position, i.Token, i.Message, i.Code)
}

// ValidationResult contains the outcome of Validate.
type ValidationResult struct {
	// Valid is false when the template would fail to render.
	Valid  bool              `json:"valid" yaml:"valid"`
	Issues []ValidationIssue `json:"issues" yaml:"issues"`
}

// Err returns the issues as a *ValidationError, or nil when there are none.
func (r *ValidationResult) Err() error {
	if len(r.Issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: r.Issues}
}

// ErrorCount returns the number of error-severity issues.
func (r *ValidationResult) ErrorCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == IssueSeverityError {
			count++
		}
	}
	return count
}

type validationFrame struct {
	token   Token
	sawElse bool
}

// Validate checks template markup without rendering it. An IF/ENDIF count
// mismatch is an error; markup that renders but is probably not what the
// author meant is reported as a warning.
func Validate(content string) *ValidationResult {
	tokens := Tokenize(content)
	issues := make([]ValidationIssue, 0)

	blockSeverity := IssueSeverityWarning
	if checkBalance(tokens) != nil {
		blockSeverity = IssueSeverityError
	}

	appendIssue := func(severity IssueSeverity, code IssueCode, message string, tok Token) {
		issues = append(issues, ValidationIssue{
			Severity: severity,
			Code:     code,
			Message:  message,
			Token:    tok.Raw,
			Position: tok.Pos,
		})
	}

	checkCondition := func(tok Token) {
		walkComparisons(ParseCondition(tok.Value), func(c Condition) {
			if invalid, ok := c.(*InvalidCondition); ok {
				err := NewParseError("condition matches neither the string nor the numeric grammar and is always false", invalid.Raw, tok.Pos)
				appendIssue(IssueSeverityWarning, IssueCodeInvalidCondition, err.Error(), tok)
			}
		})
	}

	var stack []validationFrame
	for _, tok := range tokens {
		switch tok.Type {
		case TokenMergeField:
			if parseMergeField(tok.Value).Name == "" {
				appendIssue(IssueSeverityWarning, IssueCodeEmptyFieldName, "merge field has no name and always renders its fallback", tok)
			}
		case TokenIf:
			checkCondition(tok)
			stack = append(stack, validationFrame{token: tok})
		case TokenElseIf:
			checkCondition(tok)
			if len(stack) == 0 {
				appendIssue(IssueSeverityWarning, IssueCodeStrayBranch, "ELSEIF outside of an IF block is ignored", tok)
			} else if stack[len(stack)-1].sawElse {
				appendIssue(IssueSeverityWarning, IssueCodeUnreachableBranch, "ELSEIF after ELSE is never evaluated", tok)
			}
		case TokenElse:
			if len(stack) == 0 {
				appendIssue(IssueSeverityWarning, IssueCodeStrayBranch, "ELSE outside of an IF block is ignored", tok)
				continue
			}
			top := &stack[len(stack)-1]
			if top.sawElse {
				appendIssue(IssueSeverityWarning, IssueCodeUnreachableBranch, "ELSE can only appear once in an IF block", tok)
			}
			top.sawElse = true
		case TokenEndIf:
			if len(stack) == 0 {
				message := "ENDIF has no matching IF"
				if blockSeverity == IssueSeverityWarning {
					message += "; conditional markup after it is left unresolved"
				}
				appendIssue(blockSeverity, IssueCodeBlockMismatch, message, tok)
				continue
			}
			stack = stack[:len(stack)-1]
		}
	}

	for _, frame := range stack {
		appendIssue(blockSeverity, IssueCodeBlockMismatch, "IF is missing its matching ENDIF", frame.token)
	}

	result := &ValidationResult{Issues: issues}
	result.Valid = result.ErrorCount() == 0
	return result
}

// Fields returns the distinct field names referenced by merge fields and
// conditions in content, in order of first appearance.
func Fields(content string) []string {
	fields := make([]string, 0)
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		fields = append(fields, name)
	}

	for _, tok := range Tokenize(content) {
		switch tok.Type {
		case TokenMergeField:
			add(parseMergeField(tok.Value).Name)
		case TokenIf, TokenElseIf:
			walkComparisons(ParseCondition(tok.Value), func(c Condition) {
				if cmp, ok := c.(*Comparison); ok {
					add(cmp.Field)
				}
			})
		}
	}
	return fields
}
