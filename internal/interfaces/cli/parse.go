package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/molstruct/internal/domain/molecule/parser"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// NewParseCmd creates `parse FILE...`.
func NewParseCmd() *cobra.Command {
	var (
		format      string
		concurrency int
		distances   bool
	)

	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Parse structure files and print the canonical structure",
		Long: "Parse one or more XYZ, PDB, MOL or SDF files.  The format comes from the\n" +
			"file extension unless --format is given.  Files are parsed concurrently and\n" +
			"reported in argument order.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if format != "" {
				if _, err := parser.ParseFormat(format); err != nil {
					return err
				}
			}
			be, err := newBackend(cc)
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd.Context(), cc)
			defer cancel()

			report, errs := runParse(ctx, be, cc.Logger, args, format, concurrency, distances)
			if err := PrintResult(cmd, report); err != nil {
				return err
			}
			if len(args) == 1 && errs[0] != nil {
				return errs[0]
			}
			if n := report.failed(); n > 0 {
				return fmt.Errorf("%d of %d files failed to parse", n, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "input format override (xyz, pdb, mol, sdf)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", runtime.NumCPU(), "files parsed in parallel")
	cmd.Flags().BoolVar(&distances, "distances", false, "also print every bond length")
	return cmd
}

// runParse parses files with at most concurrency in flight.  A failing file
// does not stop the others.
func runParse(ctx context.Context, be backend, logger logging.Logger, files []string, format string, concurrency int, distances bool) (ParseReport, []error) {
	report := ParseReport{Results: make([]ParseOutcome, len(files))}
	errs := make([]error, len(files))
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			out, err := parseFile(gctx, be, path, format, distances)
			if err != nil {
				logger.Debug("parse failed", logging.String("file", path), logging.Err(err))
				out.Error = err.Error()
				if code := errors.GetCode(err); code != errors.CodeUnknown {
					out.Code = string(code)
				}
			}
			report.Results[i] = out
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()
	return report, errs
}

func parseFile(ctx context.Context, be backend, path, format string, distances bool) (ParseOutcome, error) {
	out := ParseOutcome{File: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return out, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read input file")
	}
	dto, err := be.Parse(ctx, filepath.Base(path), data, format)
	if err != nil {
		return out, err
	}
	out.Molecule = dto
	if distances {
		d, err := be.Distances(ctx, dto.ID.String())
		if err != nil {
			return out, err
		}
		out.Distances = d.Bonds
	}
	return out, nil
}

// NewSMILESCmd creates `smiles SMILES`.
func NewSMILESCmd() *cobra.Command {
	var (
		name      string
		minimize  bool
		distances bool
	)

	cmd := &cobra.Command{
		Use:   "smiles SMILES",
		Short: "Lay out a molecule from a SMILES-like string",
		Long: "Tokenize a SMILES-like string into element symbols and place the atoms\n" +
			"on a line, bonded in sequence.  --minimize uses the shorter bond spacing.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			be, err := newBackend(cc)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context(), cc)
			defer cancel()

			dto, err := be.CreateFromSMILES(ctx, &mtypes.CreateFromSMILESRequest{SMILES: args[0], Name: name, Minimize: minimize})
			if err != nil {
				return err
			}
			if !distances {
				return PrintResult(cmd, moleculeView{dto})
			}
			d, err := be.Distances(ctx, dto.ID.String())
			if err != nil {
				return err
			}
			return PrintResult(cmd, ParseReport{Results: []ParseOutcome{{File: args[0], Molecule: dto, Distances: d.Bonds}}})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "molecule name")
	cmd.Flags().BoolVar(&minimize, "minimize", false, "use the minimized bond spacing")
	cmd.Flags().BoolVar(&distances, "distances", false, "also print every bond length")
	return cmd
}

// NewFormatsCmd creates `formats`.
func NewFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported structure formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cc.Client != nil {
				ctx, cancel := withTimeout(cmd.Context(), cc)
				defer cancel()
				resp, err := cc.Client.Molecules().Formats(ctx)
				if err != nil {
					return err
				}
				return PrintResult(cmd, formatList(resp.Formats))
			}
			return PrintResult(cmd, localFormats())
		},
	}
}

func localFormats() formatList {
	var out formatList
	for _, f := range parser.Supported() {
		out = append(out, mtypes.FormatDTO{Name: f.String(), Extensions: []string{f.Extension()}, Description: f.Description()})
	}
	return out
}

func withTimeout(ctx context.Context, cc *CLIContext) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cc.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cc.Timeout)
}

//Personal.AI order the ending
