package cakemail

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	standardNumberFormat = regexp.MustCompile(`^([A-Za-z])(\d{0,9})$`)

	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)

	numberSectionCache sync.Map // string -> *numberSection
)

// formatNumber applies a .NET numeric format string ("N2", "#,#", "0.00", ...)
// to a numeric value. An empty or unusable format yields the default text.
func formatNumber(v Value, format string, c *culture) string {
	if format == "" || !v.IsNumeric() {
		return v.text(c)
	}
	if (v.kind == KindFloat32 || v.kind == KindFloat64) && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return v.text(c)
	}
	if m := standardNumberFormat.FindStringSubmatch(format); m != nil {
		precision := -1
		if m[2] != "" {
			precision, _ = strconv.Atoi(m[2])
		}
		if s, ok := formatStandardNumber(v, m[1][0], precision, c); ok {
			return s
		}
		return v.text(c)
	}
	return formatCustomNumber(toDecimal(v), format, c)
}

// toDecimal converts a numeric value to an exact decimal. Floating-point values
// are first rounded to their significant precision (15 digits for float64, 7
// for float32) so 12.345 rounds like the literal the author wrote.
func toDecimal(v Value) decimal.Decimal {
	switch v.kind {
	case KindInt16, KindInt32, KindInt64:
		return decimal.NewFromInt(v.i)
	case KindDecimal:
		return v.dec
	case KindFloat32:
		return decimalFromFloat(v.f, 7, 32)
	case KindFloat64:
		return decimalFromFloat(v.f, 15, 64)
	}
	return decimal.Zero
}

func decimalFromFloat(f float64, digits, bits int) decimal.Decimal {
	d, err := decimal.NewFromString(strconv.FormatFloat(f, 'g', digits, bits))
	if err != nil {
		return decimal.NewFromFloat(f)
	}
	return d
}

func formatStandardNumber(v Value, spec byte, precision int, c *culture) (string, bool) {
	d := toDecimal(v)
	negative := d.Sign() < 0
	abs := d.Abs()

	switch spec {
	case 'C', 'c':
		p := precisionOr(precision, 2)
		num := fixedNumber(abs, p, true, c)
		if c.currencyPrefix {
			num = c.currencySymbol + num
		} else {
			num = num + " " + c.currencySymbol
		}
		return signed(num, negative && !roundsToZero(abs, p)), true
	case 'D', 'd':
		if !v.isInteger() {
			return "", false
		}
		digits := abs.String()
		if len(digits) < precision {
			digits = strings.Repeat("0", precision-len(digits)) + digits
		}
		return signed(digits, negative), true
	case 'E', 'e':
		return scientific(d, precisionOr(precision, 6), spec == 'E', 3, c), true
	case 'F', 'f':
		p := precisionOr(precision, 2)
		return signed(fixedNumber(abs, p, false, c), negative && !roundsToZero(abs, p)), true
	case 'G', 'g':
		if precision <= 0 {
			return v.text(c), true
		}
		s := strconv.FormatFloat(d.InexactFloat64(), 'g', precision, 64)
		if mantissa, exp, ok := strings.Cut(s, "e"); ok {
			e := "E"
			if spec == 'g' {
				e = "e"
			}
			s = mantissa + e + exp
		}
		return c.localizeDecimalPoint(s), true
	case 'N', 'n':
		p := precisionOr(precision, 2)
		return signed(fixedNumber(abs, p, true, c), negative && !roundsToZero(abs, p)), true
	case 'P', 'p':
		p := precisionOr(precision, 2)
		scaled := abs.Mul(hundred)
		num := fixedNumber(scaled, p, true, c)
		if c.percentSpace {
			num += " %"
		} else {
			num += "%"
		}
		return signed(num, negative && !roundsToZero(scaled, p)), true
	case 'R', 'r':
		return v.text(c), true
	case 'X', 'x':
		if !v.isInteger() {
			return "", false
		}
		bits := v.intBits()
		u := uint64(v.i)
		if bits < 64 {
			u &= 1<<uint(bits) - 1
		}
		hex := strconv.FormatUint(u, 16)
		if spec == 'X' {
			hex = strings.ToUpper(hex)
		}
		if len(hex) < precision {
			hex = strings.Repeat("0", precision-len(hex)) + hex
		}
		return hex, true
	}
	return "", false
}

func precisionOr(precision, fallback int) int {
	if precision < 0 {
		return fallback
	}
	return precision
}

func signed(s string, negative bool) string {
	if negative {
		return "-" + s
	}
	return s
}

func roundsToZero(abs decimal.Decimal, places int) bool {
	return abs.Round(int32(places)).IsZero()
}

// fixedNumber renders a non-negative decimal with a fixed number of fraction
// digits, rounding half away from zero.
func fixedNumber(abs decimal.Decimal, places int, grouped bool, c *culture) string {
	intDigits, fracDigits, _ := strings.Cut(abs.StringFixed(int32(places)), ".")
	if grouped {
		intDigits = groupDigits(intDigits, c.groupSep)
	}
	if fracDigits == "" {
		return intDigits
	}
	return intDigits + c.decimalSep + fracDigits
}

func groupDigits(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func scientific(d decimal.Decimal, precision int, upper bool, expDigits int, c *culture) string {
	s := strconv.FormatFloat(d.InexactFloat64(), 'e', precision, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	if len(digits) < expDigits {
		digits = strings.Repeat("0", expDigits-len(digits)) + digits
	}
	e := "e"
	if upper {
		e = "E"
	}
	return c.localizeDecimalPoint(mantissa) + e + sign + digits
}

// Custom numeric formats.

type numberTokenKind int

const (
	numIntDigit numberTokenKind = iota
	numFracDigit
	numPoint
	numLiteral
	numPercent
	numPermille
)

type numberToken struct {
	kind numberTokenKind
	text string
}

// numberSection is one ';'-separated section of a custom numeric format.
type numberSection struct {
	tokens          []numberToken
	intPlaceholders int
	minInt          int
	fracMax         int
	fracMin         int
	grouping        bool
	scale           int
	percent         int
	permille        int
}

func formatCustomNumber(d decimal.Decimal, format string, c *culture) string {
	sections := splitNumberSections(format)
	switch {
	case d.Sign() < 0 && len(sections) > 1 && sections[1] != "":
		return compileNumberSection(sections[1]).render(d.Abs(), false, c)
	case d.Sign() == 0 && len(sections) > 2 && sections[2] != "":
		return compileNumberSection(sections[2]).render(d, false, c)
	}
	return compileNumberSection(sections[0]).render(d.Abs(), d.Sign() < 0, c)
}

// splitNumberSections splits on ';' outside quotes and escapes.
func splitNumberSections(format string) []string {
	var sections []string
	var quote rune
	start := 0
	escaped := false
	for i, r := range format {
		switch {
		case escaped:
			escaped = false
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\\':
			escaped = true
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			sections = append(sections, format[start:i])
			start = i + 1
		}
	}
	return append(sections, format[start:])
}

func compileNumberSection(section string) *numberSection {
	if cached, ok := numberSectionCache.Load(section); ok {
		return cached.(*numberSection)
	}
	s := parseNumberSection(section)
	numberSectionCache.Store(section, s)
	return s
}

func parseNumberSection(section string) *numberSection {
	s := &numberSection{}
	runes := []rune(section)
	seenPoint := false
	pendingCommas := 0
	firstZero := -1

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '\'', '"':
			end := i + 1
			for end < len(runes) && runes[end] != r {
				end++
			}
			s.literal(string(runes[i+1 : min(end, len(runes))]))
			i = end
		case '\\':
			if i+1 < len(runes) {
				s.literal(string(runes[i+1]))
				i++
			}
		case '0', '#':
			if seenPoint {
				s.fracMax++
				if r == '0' {
					s.fracMin = s.fracMax
				}
				s.tokens = append(s.tokens, numberToken{kind: numFracDigit})
				continue
			}
			if pendingCommas > 0 && s.intPlaceholders > 0 {
				s.grouping = true
			}
			pendingCommas = 0
			if r == '0' && firstZero < 0 {
				firstZero = s.intPlaceholders
			}
			s.intPlaceholders++
			s.tokens = append(s.tokens, numberToken{kind: numIntDigit})
		case '.':
			if seenPoint {
				continue
			}
			seenPoint = true
			if s.intPlaceholders > 0 {
				s.scale += pendingCommas
			}
			pendingCommas = 0
			s.tokens = append(s.tokens, numberToken{kind: numPoint})
		case ',':
			if !seenPoint {
				pendingCommas++
			}
		case '%':
			s.percent++
			s.tokens = append(s.tokens, numberToken{kind: numPercent})
		case '‰':
			s.permille++
			s.tokens = append(s.tokens, numberToken{kind: numPermille})
		default:
			s.literal(string(r))
		}
	}
	if !seenPoint && s.intPlaceholders > 0 {
		s.scale += pendingCommas
	}
	if firstZero >= 0 {
		s.minInt = s.intPlaceholders - firstZero
	}
	return s
}

func (s *numberSection) literal(text string) {
	if text == "" {
		return
	}
	s.tokens = append(s.tokens, numberToken{kind: numLiteral, text: text})
}

func (s *numberSection) render(abs decimal.Decimal, negative bool, c *culture) string {
	value := abs
	for range s.percent {
		value = value.Mul(hundred)
	}
	for range s.permille {
		value = value.Mul(thousand)
	}
	for range s.scale {
		value = value.Div(thousand)
	}

	intDigits, fracDigits, _ := strings.Cut(value.StringFixed(int32(s.fracMax)), ".")
	intDigits = strings.TrimLeft(intDigits, "0")
	if len(intDigits) < s.minInt {
		intDigits = strings.Repeat("0", s.minInt-len(intDigits)) + intDigits
	}
	for len(fracDigits) > s.fracMin && strings.HasSuffix(fracDigits, "0") {
		fracDigits = fracDigits[:len(fracDigits)-1]
	}

	var b strings.Builder
	if negative && strings.Trim(intDigits+fracDigits, "0") != "" {
		b.WriteString("-")
	}

	total := len(intDigits)
	intIndex, fracIndex := 0, 0
	for _, tok := range s.tokens {
		switch tok.kind {
		case numIntDigit:
			// Digits are right-aligned on the placeholders; the first
			// placeholder absorbs any overflow.
			offset := total - s.intPlaceholders + intIndex
			start := offset
			if intIndex == 0 {
				start = 0
			}
			for k := max(start, 0); k <= offset; k++ {
				b.WriteByte(intDigits[k])
				if s.grouping && k < total-1 && (total-1-k)%3 == 0 {
					b.WriteString(c.groupSep)
				}
			}
			intIndex++
		case numFracDigit:
			if fracIndex < len(fracDigits) {
				b.WriteByte(fracDigits[fracIndex])
			}
			fracIndex++
		case numPoint:
			if len(fracDigits) > 0 {
				b.WriteString(c.decimalSep)
			}
		case numPercent:
			b.WriteString("%")
		case numPermille:
			b.WriteString("‰")
		case numLiteral:
			b.WriteString(tok.text)
		}
	}
	return b.String()
}
