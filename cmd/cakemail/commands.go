package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/benjaminschreck/go-cakemail/pkg/cakemail"
)

// VersionCmd prints build information.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI, out io.Writer) error {
	version := "(devel)"
	goVersion := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		goVersion = info.GoVersion
		if info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	_, err := fmt.Fprintf(out, "cakemail %s (%s)\n", version, goVersion)
	return err
}

// RenderCmd renders one template file to the output.
type RenderCmd struct {
	Template  string `arg:"" name:"template" help:"Template file to render." type:"existingfile" placeholder:"PATH"`
	Data      string `short:"d" help:"JSON or YAML file with field values." type:"existingfile" placeholder:"PATH"`
	MergeOnly bool   `help:"Only substitute merge fields; IF markup is left as fields."`
	Culture   string `help:"Culture tag for numbers and dates (overrides CAKEMAIL_CULTURE)." placeholder:"TAG"`
	Now       string `help:"Fixed RFC 3339 time for [NOW], [TODAY] and [DATE]." placeholder:"TIME"`
}

func (c *RenderCmd) Run(cli *CLI, out io.Writer) error {
	context := map[string]interface{}{"file": c.Template}

	content, err := os.ReadFile(c.Template)
	if err != nil {
		return cakemail.WithContext(err, "render", context)
	}

	data := cakemail.Data{}
	if c.Data != "" {
		raw, err := os.ReadFile(c.Data)
		if err != nil {
			return cakemail.WithContext(err, "load data", map[string]interface{}{"file": c.Data})
		}
		data, err = cakemail.LoadData(c.Data, raw)
		if err != nil {
			return cakemail.WithContext(err, "load data", map[string]interface{}{"file": c.Data})
		}
	}

	engine, err := c.engine()
	if err != nil {
		return cakemail.WithContext(err, "render", context)
	}

	var output string
	if c.MergeOnly {
		output = engine.RenderMergeFields(string(content), data)
	} else {
		output, err = engine.Render(string(content), data)
		if err != nil {
			return cakemail.WithContext(err, "render", context)
		}
	}

	_, err = io.WriteString(out, output)
	return err
}

func (c *RenderCmd) engine() (*cakemail.Engine, error) {
	config, err := cakemail.LoadConfig()
	if err != nil {
		return nil, err
	}
	if c.Culture != "" {
		config.Culture = c.Culture
	}

	var opts []cakemail.Option
	if c.Now != "" {
		now, err := time.Parse(time.RFC3339, c.Now)
		if err != nil {
			return nil, fmt.Errorf("invalid --now value: %w", err)
		}
		opts = append(opts, cakemail.WithClock(func() time.Time { return now }))
	}
	return cakemail.NewWithConfig(config, opts...)
}

// ValidateCmd reports markup problems in one or more templates.
type ValidateCmd struct {
	Templates []string `arg:"" name:"template" help:"Template files to check." placeholder:"PATH"`
	Format    string   `help:"Output format (text, json, yaml)." default:"text" enum:"text,json,yaml"`
}

type validateReport struct {
	File   string                     `json:"file" yaml:"file"`
	Result *cakemail.ValidationResult `json:"result" yaml:"result"`
}

func (c *ValidateCmd) Run(cli *CLI, out io.Writer) error {
	errs := cakemail.NewMultiError()
	reports := make([]validateReport, 0, len(c.Templates))

	for _, path := range c.Templates {
		context := map[string]interface{}{"file": path}
		content, err := os.ReadFile(path)
		if err != nil {
			errs.Add(cakemail.WithContext(err, "validate", context))
			continue
		}
		result := cakemail.Validate(string(content))
		reports = append(reports, validateReport{File: path, Result: result})
		if !result.Valid {
			errs.Add(cakemail.WithContext(result.Err(), "validate", context))
		}
	}

	if err := c.write(out, reports); err != nil {
		return err
	}
	return errs.Err()
}

func (c *ValidateCmd) write(out io.Writer, reports []validateReport) error {
	switch c.Format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(reports)
	}

	for _, report := range reports {
		if len(report.Result.Issues) == 0 {
			if _, err := fmt.Fprintf(out, "%s: ok\n", report.File); err != nil {
				return err
			}
			continue
		}
		for _, issue := range report.Result.Issues {
			if _, err := fmt.Fprintf(out, "%s: %s\n", report.File, issue); err != nil {
				return err
			}
		}
	}
	return nil
}

// FieldsCmd lists the field names a template reads.
type FieldsCmd struct {
	Template string `arg:"" name:"template" help:"Template file to inspect." type:"existingfile" placeholder:"PATH"`
}

func (c *FieldsCmd) Run(cli *CLI, out io.Writer) error {
	content, err := os.ReadFile(c.Template)
	if err != nil {
		return cakemail.WithContext(err, "fields", map[string]interface{}{"file": c.Template})
	}
	for _, name := range cakemail.Fields(string(content)) {
		if _, err := fmt.Fprintln(out, name); err != nil {
			return err
		}
	}
	return nil
}
