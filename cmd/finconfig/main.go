// Command finconfig validates a tenant-unit financial configuration record
// from a JSON file and prints the normalized payload or the issue list.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/matthewbaird/leasefin/internal/config"
	"github.com/matthewbaird/leasefin/internal/finconfig"
	"github.com/matthewbaird/leasefin/internal/jurisdiction"
	"github.com/matthewbaird/leasefin/internal/logger"
)

// errRejected signals a rejected record; main turns it into exit status 1.
var errRejected = errors.New("financial configuration rejected")

type ValidateCmd struct {
	Flow         string `help:"Submission flow." enum:"create,edit" default:"create"`
	TenantID     int64  `help:"Tenant id." required:""`
	UnitID       int64  `help:"Unit id." required:""`
	Jurisdiction string `help:"Jurisdiction to check advisory caps against (default from config)."`
	Config       string `help:"Config file holding jurisdiction rules." type:"path"`
	File         []byte `help:"JSON record file." arg:"" type:"filecontent"`
}

func (cmd *ValidateCmd) Run(out io.Writer, log *zap.Logger) error {
	dec := json.NewDecoder(bytes.NewReader(cmd.File))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("reading record: %w", err)
	}
	rec, err := finconfig.DecodeRecord(raw)
	if err != nil {
		return err
	}

	e, err := finconfig.New(finconfig.Flow(cmd.Flow), finconfig.WithLogger(log))
	if err != nil {
		return err
	}
	res, err := e.Process(finconfig.Identity{TenantID: cmd.TenantID, UnitID: cmd.UnitID}, rec)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if !res.Accepted() {
		if err := enc.Encode(res); err != nil {
			return err
		}
		return errRejected
	}

	violations, err := cmd.violations(*res.Payload, log)
	if err != nil {
		return err
	}
	return enc.Encode(struct {
		finconfig.Result
		Violations []jurisdiction.Violation `json:"violations,omitempty"`
	}{res, violations})
}

func (cmd *ValidateCmd) violations(p finconfig.Payload, log *zap.Logger) ([]jurisdiction.Violation, error) {
	if cmd.Config == "" {
		return nil, nil
	}
	cfg, err := config.Load(cmd.Config)
	if err != nil {
		return nil, err
	}
	name := cmd.Jurisdiction
	if name == "" {
		name = cfg.Jurisdiction.Default
	}
	return jurisdiction.NewEnforcer(cfg.Jurisdiction.EffectiveRules(), log).Check(name, p), nil
}

type FieldsCmd struct {
	Flow string `help:"Submission flow." enum:"create,edit" default:"create"`
}

func (cmd *FieldsCmd) Run(out io.Writer) error {
	c, err := finconfig.LoadContract()
	if err != nil {
		return err
	}
	for _, f := range c.Fields(finconfig.CapabilitiesFor(finconfig.Flow(cmd.Flow))) {
		required := ""
		if f.Required {
			required = " (required)"
		}
		fmt.Fprintf(out, "%-36s %-8s %-18s %s%s\n", f.Name, f.Kind, f.Group, f.Label, required)
	}
	return nil
}

type CLI struct {
	LogLevel string `help:"Log level for stage tracing." enum:"debug,info,warn,error" default:"warn"`

	Validate ValidateCmd `cmd:"" help:"Validate a record and print the payload or the issues."`
	Fields   FieldsCmd   `cmd:"" help:"List the fields a flow accepts."`
}

// newParser builds the kong parser with stdout and the logger bound for Run methods.
func newParser(cli *CLI, out io.Writer, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("finconfig"),
		kong.Description("Validate tenant-unit financial configuration records."),
		kong.UsageOnError(),
		kong.BindTo(out, (*io.Writer)(nil)),
		kong.BindToProvider(func() (*zap.Logger, error) {
			return logger.New(&logger.Config{Level: cli.LogLevel, Format: "console", Output: "stderr"})
		}),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli, os.Stdout)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = ctx.Run()
	if errors.Is(err, errRejected) {
		os.Exit(1)
	}
	ctx.FatalIfErrorf(err)
}
