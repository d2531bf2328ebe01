package cakemail

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Engine renders CakeMail content. Use New() to create a new engine instance.
// An Engine is safe for concurrent use.
type Engine struct {
	config  *Config
	cache   *TemplateCache
	culture *culture
	now     func() time.Time
	logger  *Logger
}

// Option represents a configuration option for the engine.
type Option func(*Engine)

// WithClock returns an option that sets the clock used by [NOW], [TODAY] and [DATE].
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCulture returns an option that sets the culture used for number
// separators, currency symbols and date names.
func WithCulture(tag string) Option {
	return func(e *Engine) {
		e.culture = lookupCulture(tag)
	}
}

// WithLogger returns an option that sets the engine logger. Without it the
// global logger is used.
func WithLogger(logger *Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCache returns an option that replaces the parsed template cache. A
// cache may be shared by engines; each renders cached templates with its own
// culture, clock and logger.
func WithCache(cache *TemplateCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

// New creates a new engine with the global configuration.
func New(opts ...Option) *Engine {
	engine := newEngine(GetGlobalConfig())
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// NewWithConfig creates a new engine with a custom configuration. Unset fields
// take their defaults.
func NewWithConfig(config *Config, opts ...Option) (*Engine, error) {
	config = NewConfigWithDefaults(config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	engine := newEngine(config)
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

func newEngine(config *Config) *Engine {
	return &Engine{
		config: config,
		cache: NewTemplateCacheWithConfig(CacheConfig{
			MaxSize: config.CacheMaxSize,
			TTL:     config.CacheTTL,
		}),
		culture: lookupCulture(config.Culture),
		now:     time.Now,
	}
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() *Config {
	config := *e.config
	return &config
}

func (e *Engine) getLogger() *Logger {
	if e.logger != nil {
		return e.logger
	}
	return GetLogger()
}

// Parse tokenizes content and builds its node tree. Unbalanced IF/ENDIF
// markers fail with an error matching ErrMalformedTemplate.
func (e *Engine) Parse(content string) (*Template, error) {
	return e.parse(content, false)
}

// ParseMergeFields builds a template that only substitutes dates and merge
// fields. It never fails.
func (e *Engine) ParseMergeFields(content string) *Template {
	tmpl, _ := e.parse(content, true)
	return tmpl
}

func (e *Engine) parse(content string, mergeOnly bool) (*Template, error) {
	logger := e.getLogger()
	key := cacheKey(content, mergeOnly)
	if cached, ok := e.cache.Get(key); ok {
		if logger.IsDebugMode() {
			logger.WithField("length", len(content)).Debug("Template cache hit")
		}
		if cached.engine == e {
			return cached, nil
		}
		// Another engine parsed it; share the nodes, render with this engine.
		tmpl := *cached
		tmpl.engine = e
		return &tmpl, nil
	}

	tokens := Tokenize(content)
	nodes, err := newControlParser(tokens, mergeOnly, logger).Parse()
	if err != nil {
		logger.Warn("Failed to parse template: %v", err)
		return nil, err
	}

	tmpl := &Template{
		engine:    e,
		source:    content,
		nodes:     nodes,
		mergeOnly: mergeOnly,
	}
	e.cache.Set(key, tmpl)
	return tmpl, nil
}

// Render resolves conditional blocks, current-date placeholders and merge
// fields in content. Empty content renders as "". A nil data map is treated as
// empty.
func (e *Engine) Render(content string, data Data) (string, error) {
	if content == "" {
		return "", nil
	}
	tmpl, err := e.Parse(content)
	if err != nil {
		return "", err
	}
	return tmpl.render(e.newRenderContext(data)), nil
}

// RenderMergeFields substitutes current-date placeholders and merge fields
// only. Conditional markers are treated as ordinary merge fields.
func (e *Engine) RenderMergeFields(content string, data Data) string {
	if content == "" {
		return ""
	}
	return e.ParseMergeFields(content).render(e.newRenderContext(data))
}

// EvaluateCondition evaluates an IF condition such as `age` >= 18 against data.
func (e *Engine) EvaluateCondition(condition string, data Data) bool {
	return ParseCondition(condition).evaluate(e.newRenderContext(data))
}

// ClearCache removes all parsed templates from the cache.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

func (e *Engine) newRenderContext(data Data) *renderContext {
	return &renderContext{
		data:       data,
		culture:    e.culture,
		now:        e.now,
		dateFormat: e.config.DateFormat,
		logger:     e.getLogger(),
	}
}

// Template is parsed content ready to render. It is immutable and safe for
// concurrent use.
type Template struct {
	engine    *Engine
	source    string
	nodes     []Node
	mergeOnly bool
}

// Render renders the template with data using the engine that parsed it.
func (t *Template) Render(data Data) string {
	return t.render(t.engine.newRenderContext(data))
}

func (t *Template) render(ctx *renderContext) string {
	ctx.logger.DebugTemplate(t.source, ctx.data)

	var b strings.Builder
	b.Grow(len(t.source))
	renderNodes(t.nodes, ctx, &b)
	return b.String()
}

// Source returns the content the template was parsed from.
func (t *Template) Source() string {
	return t.source
}

// Nodes returns the top-level nodes of the template.
func (t *Template) Nodes() []Node {
	return t.nodes
}

// String dumps the node tree, one node per line, for debugging.
func (t *Template) String() string {
	var b strings.Builder
	writeNodes(&b, t.nodes, 0)
	return b.String()
}

func writeNodes(b *strings.Builder, nodes []Node, indent int) {
	prefix := strings.Repeat("  ", indent)
	for _, node := range nodes {
		ifNode, ok := node.(*IfNode)
		if !ok {
			b.WriteString(prefix + node.String() + "\n")
			continue
		}
		b.WriteString(prefix + "If(" + ifNode.Condition.String() + ")\n")
		writeNodes(b, ifNode.ThenBody, indent+1)
		for _, elseIf := range ifNode.ElseIfs {
			b.WriteString(prefix + elseIf.String() + "\n")
			writeNodes(b, elseIf.Body, indent+1)
		}
		if len(ifNode.ElseBody) > 0 {
			b.WriteString(prefix + "Else\n")
			writeNodes(b, ifNode.ElseBody, indent+1)
		}
	}
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
)

// DefaultEngine returns the engine used by the package-level functions. It is
// built from the global configuration on first use.
func DefaultEngine() *Engine {
	defaultEngineOnce.Do(func() {
		defaultEngine = New()
	})
	return defaultEngine
}

// Module-level convenience functions that use the default engine.

// Render renders content with the default engine.
func Render(content string, data Data) (string, error) {
	return DefaultEngine().Render(content, data)
}

// RenderMergeFields substitutes dates and merge fields with the default engine.
func RenderMergeFields(content string, data Data) string {
	return DefaultEngine().RenderMergeFields(content, data)
}

// EvaluateCondition evaluates a condition with the default engine.
func EvaluateCondition(condition string, data Data) bool {
	return DefaultEngine().EvaluateCondition(condition, data)
}

// ClearCache clears the default engine's template cache.
func ClearCache() {
	DefaultEngine().ClearCache()
}
