// Command cakemail renders and checks CakeMail email content from the shell.
//
// Usage:
//
//	cakemail render welcome.txt --data fields.json
//	cakemail validate welcome.txt reminder.txt
//	cakemail fields welcome.txt
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/benjaminschreck/go-cakemail/pkg/cakemail"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Render   RenderCmd   `cmd:"" help:"Render a template with field data."`
	Validate ValidateCmd `cmd:"" help:"Check templates for markup problems."`
	Fields   FieldsCmd   `cmd:"" help:"List the fields a template references."`

	LogLevel  string `help:"Log level (debug, info, warn, error, off)." default:"warn" enum:"debug,info,warn,error,off" env:"CAKEMAIL_LOG_LEVEL"`
	LogFormat string `help:"Log format (console, json)." default:"console" enum:"console,json" env:"CAKEMAIL_LOG_FORMAT"`
}

func newParser(cli *CLI, out io.Writer, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("cakemail"),
		kong.Description("CakeMail content parser - merge fields and conditional blocks"),
		kong.UsageOnError(),
		kong.BindTo(out, (*io.Writer)(nil)),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	cli := CLI{}
	parser, err := newParser(&cli, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build command line: %v\n", err)
		os.Exit(1)
	}

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	logger := initLogger(cli.LogLevel, cli.LogFormat)
	defer func() { _ = logger.Sync() }()

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

// initLogger installs the package-wide logger used by the parser.
func initLogger(level, format string) *cakemail.Logger {
	logger := cakemail.NewLoggerWithFormat(os.Stderr, cakemail.ParseLogLevel(level), format)
	cakemail.SetLogger(logger)
	return logger
}
