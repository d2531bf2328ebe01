package cakemail

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 15, 13, 4, 5, 0, time.UTC)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(NewNopLogger()),
	}, opts...)
	engine, err := NewWithConfig(&Config{CacheMaxSize: 16}, opts...)
	require.NoError(t, err)
	return engine
}

func render(t *testing.T, engine *Engine, content string, data Data) string {
	t.Helper()
	out, err := engine.Render(content, data)
	require.NoError(t, err)
	return out
}

func TestRenderEmptyContent(t *testing.T) {
	engine := newTestEngine(t)

	out, err := engine.Render("", Data{"firstname": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "", out)

	out, err = engine.Render("", nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)

	assert.Equal(t, "", engine.RenderMergeFields("", nil))
}

func TestRenderMergeFields(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name    string
		content string
		data    Data
		want    string
	}{
		{
			name:    "present field",
			content: "Dear [firstname]",
			data:    Data{"firstname": "Bob"},
			want:    "Dear Bob",
		},
		{
			name:    "absent field without fallback",
			content: "Dear [firstname]",
			data:    Data{"lastname": "Smith"},
			want:    "Dear ",
		},
		{
			name:    "absent field with fallback",
			content: "Dear [firstname,friend]",
			data:    Data{"lastname": "Smith"},
			want:    "Dear friend",
		},
		{
			name:    "null field uses fallback",
			content: "Dear [firstname,friend]",
			data:    Data{"firstname": nil},
			want:    "Dear friend",
		},
		{
			name:    "null Value uses fallback",
			content: "Dear [firstname,friend]",
			data:    Data{"firstname": NullValue()},
			want:    "Dear friend",
		},
		{
			name:    "whitespace is trimmed",
			content: "Dear [ firstname , dear friend ]",
			data:    Data{},
			want:    "Dear dear friend",
		},
		{
			name:    "fallback keeps later commas",
			content: "[city,Paris, France]",
			data:    nil,
			want:    "Paris, France",
		},
		{
			name:    "field names are case sensitive",
			content: "[FirstName,none]",
			data:    Data{"firstname": "Bob"},
			want:    "none",
		},
		{
			name:    "integer default form",
			content: "[count]",
			data:    Data{"count": 42},
			want:    "42",
		},
		{
			name:    "bool default form",
			content: "[active]",
			data:    Data{"active": true},
			want:    "True",
		},
		{
			name:    "date default pattern",
			content: "[signup]",
			data:    Data{"signup": time.Date(2014, 3, 2, 13, 4, 5, 0, time.UTC)},
			want:    "2014-03-02 13:04:05",
		},
		{
			name:    "date with format",
			content: "[signup,never|dd MMMM yyyy]",
			data:    Data{"signup": time.Date(2014, 3, 2, 13, 4, 5, 0, time.UTC)},
			want:    "02 March 2014",
		},
		{
			name:    "format ignored for strings",
			content: "[name|0.00]",
			data:    Data{"name": "Bob"},
			want:    "Bob",
		},
		{
			name:    "bracket without close on the line is text",
			content: "a [b\nc] [name]",
			data:    Data{"name": "Bob"},
			want:    "a [b\nc] Bob",
		},
		{
			name:    "substituted values are not rescanned",
			content: "[a]",
			data:    Data{"a": "[b]", "b": "no"},
			want:    "[b]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, engine, tt.content, tt.data))
		})
	}
}

func TestRenderNumericFormats(t *testing.T) {
	engine := newTestEngine(t)

	groupTests := []struct {
		name  string
		value any
	}{
		{"int", 12345},
		{"int16", int16(12345)},
		{"int32", int32(12345)},
		{"int64", int64(12345)},
	}
	for _, tt := range groupTests {
		t.Run("grouping "+tt.name, func(t *testing.T) {
			assert.Equal(t, "12,345", render(t, engine, "[miles|#,#]", Data{"miles": tt.value}))
		})
	}

	roundTests := []struct {
		name  string
		value any
	}{
		{"decimal", decimal.RequireFromString("12.345")},
		{"float32", float32(12.345)},
		{"float64", 12.345},
	}
	for _, tt := range roundTests {
		t.Run("rounding "+tt.name, func(t *testing.T) {
			assert.Equal(t, "12.35", render(t, engine, "[x|0.00]", Data{"x": tt.value}))
		})
	}
}

func TestRenderConditionals(t *testing.T) {
	engine := newTestEngine(t)

	chain := "[IF `plan` = \"gold\"]Gold[ELSEIF `plan` = \"silver\"]Silver[ELSEIF `plan` = \"bronze\"]Bronze[ELSE]Free[ENDIF]"

	tests := []struct {
		name    string
		content string
		data    Data
		want    string
	}{
		{
			name:    "true branch",
			content: "[IF `firstname` = \"Bob\"]Yes[ELSE]No[ENDIF]",
			data:    Data{"firstname": "Bob"},
			want:    "Yes",
		},
		{
			name:    "else branch",
			content: "[IF `firstname` = \"Bob\"]Yes[ELSE]No[ENDIF]",
			data:    Data{"firstname": "Robert"},
			want:    "No",
		},
		{
			name:    "false without else",
			content: "[IF `firstname` = \"Robert\"]Yes[ENDIF]",
			data:    Data{"firstname": "Bob"},
			want:    "",
		},
		{"chain first", chain, Data{"plan": "gold"}, "Gold"},
		{"chain second", chain, Data{"plan": "silver"}, "Silver"},
		{"chain third", chain, Data{"plan": "bronze"}, "Bronze"},
		{"chain else", chain, Data{"plan": "tin"}, "Free"},
		{
			name:    "first true branch wins",
			content: "[IF `a` = \"1\"]A[ELSEIF `a` = \"1\"]B[ENDIF]",
			data:    Data{"a": "1"},
			want:    "A",
		},
		{
			name:    "surrounding text and merge fields",
			content: "Hi [name], [IF `vip` = \"yes\"]enjoy [perk][ELSE]upgrade today[ENDIF]!",
			data:    Data{"name": "Ann", "vip": "yes", "perk": "lounge access"},
			want:    "Hi Ann, enjoy lounge access!",
		},
		{
			name:    "absent field equals empty literal",
			content: "[IF `nickname` = \"\"]unset[ELSE]set[ENDIF]",
			data:    Data{},
			want:    "unset",
		},
		{
			name:    "absent field not equal is false",
			content: "[IF `nickname` != \"x\"]yes[ELSE]no[ENDIF]",
			data:    Data{},
			want:    "no",
		},
		{
			name:    "like wildcard",
			content: "[IF `email` LIKE \"%@example.com\"]internal[ELSE]external[ENDIF]",
			data:    Data{"email": "bob@example.com"},
			want:    "internal",
		},
		{
			name:    "not like",
			content: "[IF `email` NOT LIKE \"%@example.com\"]external[ENDIF]",
			data:    Data{"email": "bob@other.org"},
			want:    "external",
		},
		{
			name:    "sequential blocks",
			content: "[IF `a` = \"1\"]A[ENDIF]-[IF `b` = \"1\"]B[ELSE]b[ENDIF]",
			data:    Data{"a": "1", "b": "2"},
			want:    "A-b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, engine, tt.content, tt.data))
		})
	}
}

func TestRenderAndOr(t *testing.T) {
	engine := newTestEngine(t)

	and := "[IF `country` = \"CA\" AND `lang` = \"fr\"]Bonjour[ELSE]Hello[ENDIF]"
	or := "[IF `country` = \"FR\" OR `country` = \"BE\"]Bonjour[ELSE]Hello[ENDIF]"

	tests := []struct {
		name    string
		content string
		data    Data
		want    string
	}{
		{"and both true", and, Data{"country": "CA", "lang": "fr"}, "Bonjour"},
		{"and one false", and, Data{"country": "CA", "lang": "en"}, "Hello"},
		{"or first true", or, Data{"country": "FR"}, "Bonjour"},
		{"or second true", or, Data{"country": "BE"}, "Bonjour"},
		{"or none true", or, Data{"country": "US"}, "Hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, engine, tt.content, tt.data))
		})
	}
}

func TestStringComparisonIsTypeNaive(t *testing.T) {
	engine := newTestEngine(t)

	out := render(t, engine, "[IF `age` > \"18\"]Adult[ELSE]Minor[ENDIF]", Data{"age": 9})
	assert.Equal(t, "Adult", out, "string grammar compares \"9\" > \"18\" lexically")
}

func TestNumericComparison(t *testing.T) {
	engine := newTestEngine(t)
	content := "[IF `age` >= 18]Adult[ELSE]Minor[ENDIF]"

	assert.Equal(t, "Minor", render(t, engine, content, Data{"age": 9}))
	assert.Equal(t, "Adult", render(t, engine, content, Data{"age": 18}))
	assert.Equal(t, "Adult", render(t, engine, content, Data{"age": int16(40)}))
	assert.Equal(t, "Minor", render(t, engine, content, Data{"age": "40"}), "strings never match the numeric grammar")
	assert.Equal(t, "Minor", render(t, engine, content, Data{}), "absent fields are false")
}

func TestFloatEpsilonEquality(t *testing.T) {
	engine := newTestEngine(t)
	amount := math.Sqrt(2) * math.Sqrt(2)
	require.NotEqual(t, 2.0, amount)

	out := render(t, engine, "[IF `amount` == 2.0]Yes[ELSE]No[ENDIF]", Data{"amount": amount})
	assert.Equal(t, "Yes", out)
}

func TestRenderMalformedTemplate(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name    string
		content string
	}{
		{"missing endif", "[IF `a` = \"1\"]A"},
		{"missing nested endif", "[IF `a` = \"1\"][IF `b` = \"1\"]B[ENDIF]"},
		{"extra endif", "[IF `a` = \"1\"]A[ENDIF][ENDIF]"},
		{"endif only", "text[ENDIF]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Render(tt.content, Data{"a": "1", "b": "1"})
			require.Error(t, err)
			assert.Empty(t, out)
			assert.True(t, errors.Is(err, ErrMalformedTemplate))
			assert.True(t, IsTemplateError(err))
		})
	}
}

func TestRenderNestedBlocks(t *testing.T) {
	engine := newTestEngine(t)

	content := "[IF `a` = \"1\"]A[IF `b` = \"1\"]B[IF `c` = \"1\"]C[ELSE]c[ENDIF][ELSE]b[ENDIF][ELSE]a[ENDIF]"

	tests := []struct {
		data Data
		want string
	}{
		{Data{"a": "1", "b": "1", "c": "1"}, "ABC"},
		{Data{"a": "1", "b": "1", "c": "0"}, "ABc"},
		{Data{"a": "1", "b": "0"}, "Ab"},
		{Data{"a": "0"}, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			out := render(t, engine, content, tt.data)
			assert.Equal(t, tt.want, out)

			again := render(t, engine, out, tt.data)
			assert.Equal(t, out, again, "rendering resolved output is a no-op")
		})
	}
}

func TestRenderUnpairedMarkers(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"stray else", "a[ELSE]b", "ab"},
		{"stray elseif", "a[ELSEIF `x` = \"1\"]b", "ab"},
		{"endif before if", "x[ENDIF]y[IF `a` = \"1\"]z", "xyz"},
		{"false block after stray endif keeps its text", "[ENDIF]A[IF `x` = \"z\"]B[ENDIF]C[IF `y` = \"\"]D", "ABCD"},
		{"blocks before stray endif resolve", "[IF `a` = \"2\"]P[ENDIF][ENDIF]Q[IF `a` = \"2\"]R", "QR"},
		{"else after else", "[IF `a` = \"2\"]A[ELSE]B[ELSE]C[ENDIF]", "BC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, engine, tt.content, Data{"a": "1"}))
		})
	}
}

func TestRenderCurrentDate(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		content string
		want    string
	}{
		{"[NOW|yyyy]", "2024"},
		{"[TODAY|yyyy]", "2024"},
		{"[DATE | yyyy-MM-dd ]", "2024-03-15"},
		{"[DATE|%Y/%m/%d]", "2024/03/15"},
		{"[NOW]", "3/15/2024 1:04:05 PM"},
		{"[TODAY|dddd]", "Friday"},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, engine, tt.content, nil))
		})
	}
}

func TestRenderCurrentDateUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	engine := newTestEngine(t, WithClock(func() time.Time {
		return time.Date(2024, time.December, 31, 20, 0, 0, 0, time.UTC).In(loc)
	}))

	assert.Equal(t, "2024", render(t, engine, "[NOW|yyyy]", nil))
}

func TestRenderCulture(t *testing.T) {
	engine := newTestEngine(t, WithCulture("de-DE"))

	assert.Equal(t, "12.345,50", render(t, engine, "[x|N2]", Data{"x": 12345.5}))
	assert.Equal(t, "15. März", render(t, engine, "[NOW|M]", nil))
}

func TestRenderNilData(t *testing.T) {
	engine := newTestEngine(t)

	out := render(t, engine, "[IF `a` = \"x\"]A[ELSEIF `a` = \"\"]empty[ENDIF] [b,none]", nil)
	assert.Equal(t, "empty none", out)
}

func TestRenderMergeFieldsOnly(t *testing.T) {
	engine := newTestEngine(t)

	out := engine.RenderMergeFields("Dear [firstname,friend] [IF `a` = \"1\"]A[ENDIF] [NOW|yyyy]", Data{"a": "1"})
	assert.Equal(t, "Dear friend A 2024", out)

	// Unbalanced markup never fails in merge-only mode.
	assert.Equal(t, "x", engine.RenderMergeFields("x[ENDIF]", nil))
}

func TestEvaluateCondition(t *testing.T) {
	engine := newTestEngine(t)

	assert.True(t, engine.EvaluateCondition("`a` = \"1\" AND `b` >= 2", Data{"a": "1", "b": 3}))
	assert.False(t, engine.EvaluateCondition("`a` = \"1\" AND `b` >= 2", Data{"a": "1", "b": 1}))
	assert.False(t, engine.EvaluateCondition("not a condition", Data{"a": "1"}))
}

func TestTemplateCacheReuse(t *testing.T) {
	engine := newTestEngine(t)

	first, err := engine.Parse("Hello [name]")
	require.NoError(t, err)
	second, err := engine.Parse("Hello [name]")
	require.NoError(t, err)
	assert.Same(t, first, second)

	merge := engine.ParseMergeFields("Hello [name]")
	assert.NotSame(t, first, merge)

	engine.ClearCache()
	third, err := engine.Parse("Hello [name]")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestTemplateString(t *testing.T) {
	engine := newTestEngine(t)

	tmpl, err := engine.Parse("Hi [name,you][IF `a` = \"1\"]A[ELSE]B[ENDIF]")
	require.NoError(t, err)

	dump := tmpl.String()
	assert.Contains(t, dump, `Text("Hi ")`)
	assert.Contains(t, dump, `Field(name, fallback="you", format="")`)
	assert.Contains(t, dump, `If(Compare(a = "1"))`)
	assert.Contains(t, dump, "Else")
	assert.Equal(t, "Hi [name,you][IF `a` = \"1\"]A[ELSE]B[ENDIF]", tmpl.Source())
	assert.Len(t, tmpl.Nodes(), 3)
}

func TestNewWithConfigInvalid(t *testing.T) {
	_, err := NewWithConfig(&Config{CacheMaxSize: -1})
	assert.Error(t, err)

	_, err = NewWithConfig(&Config{LogLevel: "verbose"})
	assert.Error(t, err)
}

func TestConcurrentRender(t *testing.T) {
	engine := newTestEngine(t)
	content := "[IF `n` >= 50]high[ELSE]low[ENDIF] [n|000]"

	var wg sync.WaitGroup
	errs := make(chan string, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out, err := engine.Render(content, Data{"n": n})
			if err != nil {
				errs <- err.Error()
				return
			}
			want := "low"
			if n >= 50 {
				want = "high"
			}
			if !strings.HasPrefix(out, want+" ") {
				errs <- out
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Errorf("unexpected render result: %s", msg)
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	out, err := Render("Dear [firstname]", Data{"firstname": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Dear Bob", out)

	assert.Equal(t, "Dear friend", RenderMergeFields("Dear [firstname,friend]", nil))
	assert.True(t, EvaluateCondition("`age` < 18", Data{"age": 9}))
}
