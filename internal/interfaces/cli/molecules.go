package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/molstruct/pkg/client"
	"github.com/turtacn/molstruct/pkg/errors"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// NewMoleculesCmd creates `molecules`, which manages molecules stored by a
// running API.  It requires --server.
func NewMoleculesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "molecules",
		Short: "Manage molecules stored on a molstruct server",
	}
	cmd.AddCommand(
		newMoleculesGetCmd(),
		newMoleculesListCmd(),
		newMoleculesSearchCmd(),
		newMoleculesDeleteCmd(),
		newMoleculesGeometryCmd(),
		newMoleculesDistancesCmd(),
	)
	return cmd
}

func remoteMolecules(cmd *cobra.Command) (*CLIContext, *client.MoleculesClient, error) {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cc.Client == nil {
		return nil, nil, errors.InvalidParam("--server is required for molecules commands")
	}
	return cc, cc.Client.Molecules(), nil
}

func newMoleculesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a stored molecule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, mc, err := remoteMolecules(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context(), cc)
			defer cancel()
			dto, err := mc.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, moleculeView{dto})
		},
	}
}

func newMoleculesListCmd() *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored molecules, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, mc, err := remoteMolecules(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context(), cc)
			defer cancel()
			resp, err := mc.List(ctx, page, pageSize)
			if err != nil {
				return err
			}
			return PrintResult(cmd, moleculePage{resp})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "molecules per page")
	return cmd
}

func newMoleculesSearchCmd() *cobra.Command {
	var req mtypes.SearchRequest
	var source string
	cmd := &cobra.Command{
		Use:   "search [QUERY]",
		Short: "Search the server's molecule index",
		Example: `  molstruct --server http://localhost:8080 molecules search benzene
  molstruct --server http://localhost:8080 molecules search --element C --element N --max-atoms 30`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, mc, err := remoteMolecules(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				req.Query = args[0]
			}
			req.Source = mtypes.Source(source)
			ctx, cancel := withTimeout(cmd.Context(), cc)
			defer cancel()
			resp, err := mc.Search(ctx, &req)
			if err != nil {
				return err
			}
			return PrintResult(cmd, searchPage{resp})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Formula, "formula", "", "exact Hill formula")
	f.StringSliceVar(&req.Elements, "element", nil, "element that must be present (repeatable)")
	f.StringVar(&req.Format, "format", "", "source file format")
	f.StringVar(&source, "source", "", "upload or smiles")
	f.IntVar(&req.MinAtoms, "min-atoms", 0, "minimum atom count")
	f.IntVar(&req.MaxAtoms, "max-atoms", 0, "maximum atom count")
	f.IntVar(&req.Page, "page", 1, "page number")
	f.IntVar(&req.PageSize, "page-size", 20, "hits per page")
	return cmd
}

func newMoleculesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stored molecule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, mc, err := remoteMolecules(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context(), cc)
			defer cancel()
			if err := mc.Delete(ctx, args[0]); err != nil {
				return err
			}
			PrintSuccess(cmd, "deleted "+args[0])
			return nil
		},
	}
}

func newMoleculesGeometryCmd() *cobra.Command {
	var minimize bool
	cmd := &cobra.Command{
		Use:   "geometry ID",
		Short: "Regenerate the layout of a SMILES-sourced molecule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, mc, err := remoteMolecules(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context(), cc)
			defer cancel()
			dto, err := mc.UpdateGeometry(ctx, args[0], minimize)
			if err != nil {
				return err
			}
			return PrintResult(cmd, moleculeView{dto})
		},
	}
	cmd.Flags().BoolVar(&minimize, "minimize", false, "use the minimized bond spacing")
	return cmd
}

func newMoleculesDistancesCmd() *cobra.Command {
	var atom1, atom2 int
	cmd := &cobra.Command{
		Use:   "distances ID",
		Short: "Print bond lengths, or one atom pair distance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, mc, err := remoteMolecules(cmd)
			if err != nil {
				return err
			}
			var pair *[2]int
			if cmd.Flags().Changed("atom1") || cmd.Flags().Changed("atom2") {
				pair = &[2]int{atom1, atom2}
			}
			ctx, cancel := withTimeout(cmd.Context(), cc)
			defer cancel()
			resp, err := mc.Distances(ctx, args[0], pair)
			if err != nil {
				return err
			}
			return PrintResult(cmd, distancesView{resp})
		},
	}
	cmd.Flags().IntVar(&atom1, "atom1", 0, "first atom index")
	cmd.Flags().IntVar(&atom2, "atom2", 0, "second atom index")
	return cmd
}

//Personal.AI order the ending
