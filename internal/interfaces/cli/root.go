// Package cli implements the molstruct command line: local parsing through
// the same coordinator the API uses, or remote calls through pkg/client.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/molstruct/internal/config"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/client"
	"github.com/turtacn/molstruct/pkg/errors"
)

// Set with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

type globalFlags struct {
	config   string
	logLevel string
	output   string
	verbose  bool
	noColor  bool
	timeout  time.Duration
	server   string
	apiKey   string
}

// CLIContext is built once per invocation and shared by every subcommand.
// Client is nil unless --server was given.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	Client       *client.Client
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
}

// NewRootCommand returns the molstruct command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "molstruct",
		Short: "Parse molecular structure files (XYZ, PDB, MOL, SDF)",
		Long: `molstruct reads XYZ, PDB, MDL Molfile and SDF structure files, infers
missing bonds from coordinates and prints the canonical structure.
With --server it talks to a running molstruct API instead.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := g.build()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&g.config, "config", "c", "", "config file path (default: ./molstruct.yaml)")
	f.StringVar(&g.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	f.StringVarP(&g.output, "output", "o", "text", "output format (text, json, table)")
	f.BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose output")
	f.BoolVar(&g.noColor, "no-color", false, "disable colored output")
	f.DurationVar(&g.timeout, "timeout", 30*time.Second, "global operation timeout")
	f.StringVar(&g.server, "server", "", "API server address; empty parses locally")
	f.StringVar(&g.apiKey, "api-key", "", "bearer token sent to --server")

	root.AddCommand(NewParseCmd(), NewSMILESCmd(), NewFormatsCmd(), NewMoleculesCmd())
	return root
}

func (g *globalFlags) build() (*CLIContext, error) {
	format := strings.ToLower(g.output)
	if _, ok := printers[format]; !ok {
		return nil, errors.InvalidParam(fmt.Sprintf("unknown output format %q", g.output))
	}
	color.NoColor = color.NoColor || g.noColor

	cc := &CLIContext{OutputFormat: format, Verbose: g.verbose, Timeout: g.timeout}
	var err error
	if cc.Config, err = g.loadConfig(); err != nil {
		return nil, fmt.Errorf("config initialization failed: %w", err)
	}
	if cc.Logger, err = g.logger(); err != nil {
		return nil, fmt.Errorf("logger initialization failed: %w", err)
	}
	if g.server != "" {
		opts := []client.Option{client.WithTimeout(g.timeout)}
		if g.apiKey != "" {
			opts = append(opts, client.WithAPIKey(g.apiKey))
		}
		if cc.Client, err = client.NewClient(g.server, opts...); err != nil {
			return nil, fmt.Errorf("client initialization failed: %w", err)
		}
	}
	return cc, nil
}

// loadConfig uses --config, else the first file found in the working
// directory, the user's home or /etc, else the environment alone.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	if g.config != "" {
		return config.Load(g.config)
	}
	candidates := []string{"molstruct.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".molstruct", "config.yaml"))
	}
	candidates = append(candidates, "/etc/molstruct/config.yaml")
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return config.Load(p)
		}
	}
	return config.LoadFromEnv()
}

// logger writes console lines to stderr; stdout carries results only.
func (g *globalFlags) logger() (logging.Logger, error) {
	level := logging.LevelDebug
	if !g.verbose {
		var err error
		if level, err = logging.ParseLevel(g.logLevel); err != nil {
			return nil, err
		}
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext returns the context installed by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	if ctx := cmd.Context(); ctx != nil {
		if cc, ok := ctx.Value(cliContextKey{}).(*CLIContext); ok && cc != nil {
			return cc, nil
		}
	}
	return nil, errors.Internal("CLIContext not found in command context")
}

// Execute runs the command line and prints any error to stderr.
func Execute() error {
	root := NewRootCommand()
	err := root.Execute()
	PrintError(root, err)
	return err
}

//Personal.AI order the ending
