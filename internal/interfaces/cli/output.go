package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/molstruct/pkg/errors"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// ─────────────────────────────────────────────────────────────────────────────
// Printers
// ─────────────────────────────────────────────────────────────────────────────

type tabular interface {
	TableHeaders() []string
	TableRows() [][]string
}

type printer func(io.Writer, interface{}) error

var printers = map[string]printer{
	"text":  printText,
	"json":  printJSON,
	"table": printTable,
}

// PrintResult writes data to stdout in the --output format, or as JSON
// when the command was not started through the root command.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	p := printJSON
	if cc, err := GetCLIContext(cmd); err == nil {
		p = printers[cc.OutputFormat]
	}
	return p(cmd.OutOrStdout(), data)
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(w io.Writer, data interface{}) error {
	var err error
	switch v := data.(type) {
	case string:
		_, err = fmt.Fprintln(w, v)
	case fmt.Stringer:
		_, err = fmt.Fprintln(w, v.String())
	default:
		_, err = fmt.Fprintf(w, "%+v\n", v)
	}
	return err
}

func printTable(w io.Writer, data interface{}) error {
	t, ok := data.(tabular)
	if !ok {
		return printText(w, data)
	}
	_, err := io.WriteString(w, FormatTable(t.TableHeaders(), t.TableRows()))
	return err
}

// FormatTable renders rows under headers without borders.  Short rows are
// padded.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	var sb strings.Builder
	tw := tablewriter.NewWriter(&sb)
	tw.SetHeader(headers)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetBorder(false)
	for _, row := range rows {
		cells := make([]string, len(headers))
		copy(cells, row)
		tw.Append(cells)
	}
	tw.Render()
	return sb.String()
}

// PrintError writes err to stderr in red, prefixed with its error code when
// it carries one.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	prefix := "Error: "
	if code := errors.GetCode(err); code != errors.CodeUnknown {
		prefix = fmt.Sprintf("Error [%s]: ", code)
	}
	color.New(color.FgRed, color.Bold).Fprint(cmd.ErrOrStderr(), prefix)
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
}

// PrintSuccess writes "OK: msg" to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	color.New(color.FgGreen).Fprint(cmd.OutOrStdout(), "OK: ")
	fmt.Fprintln(cmd.OutOrStdout(), msg)
}

// ─────────────────────────────────────────────────────────────────────────────
// Views
// ─────────────────────────────────────────────────────────────────────────────

// ParseOutcome is the result for one input file.  Exactly one of Molecule
// and Error is set.
type ParseOutcome struct {
	File      string                   `json:"file"`
	Molecule  *mtypes.MoleculeDTO      `json:"molecule,omitempty"`
	Distances []mtypes.BondDistanceDTO `json:"distances,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Code      string                   `json:"code,omitempty"`
}

// ParseReport is what `parse` prints.
type ParseReport struct {
	Results []ParseOutcome `json:"results"`
}

func (r ParseReport) failed() int {
	n := 0
	for _, o := range r.Results {
		if o.Error != "" {
			n++
		}
	}
	return n
}

func (r ParseReport) TableHeaders() []string {
	return []string{"File", "Name", "Formula", "Atoms", "Bonds", "Weight", "Format", "Engine", "Error"}
}

func (r ParseReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Results))
	for _, o := range r.Results {
		if o.Molecule == nil {
			rows = append(rows, []string{o.File, "", "", "", "", "", "", "", o.Code})
			continue
		}
		m := o.Molecule
		rows = append(rows, []string{
			o.File, nameOf(m), m.Formula, strconv.Itoa(m.AtomCount), strconv.Itoa(len(m.Bonds)),
			strconv.FormatFloat(m.MolecularWeight, 'f', 5, 64), m.Format, m.Engine, "",
		})
	}
	return rows
}

func (r ParseReport) String() string {
	var sb strings.Builder
	for i, o := range r.Results {
		if i > 0 {
			sb.WriteString("\n")
		}
		if o.Molecule == nil {
			fmt.Fprintf(&sb, "%s: %s\n", o.File, o.Error)
			continue
		}
		sb.WriteString(o.File + "\n")
		writeMolecule(&sb, o.Molecule)
		if len(o.Distances) > 0 {
			sb.WriteString("  bond lengths:\n")
			for _, d := range o.Distances {
				fmt.Fprintf(&sb, "    %d-%d  %.4f\n", d.Atom1, d.Atom2, d.Distance)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// moleculeView prints a single molecule.
type moleculeView struct {
	*mtypes.MoleculeDTO
}

func (v moleculeView) TableHeaders() []string {
	return []string{"Index", "Symbol", "Z", "X", "Y", "Z-coord"}
}

func (v moleculeView) TableRows() [][]string {
	rows := make([][]string, len(v.Atoms))
	for i, a := range v.Atoms {
		rows[i] = []string{
			strconv.Itoa(a.Index), a.Symbol, strconv.Itoa(a.AtomicNumber),
			fmtCoord(a.X), fmtCoord(a.Y), fmtCoord(a.Z),
		}
	}
	return rows
}

func (v moleculeView) String() string {
	var sb strings.Builder
	writeMolecule(&sb, v.MoleculeDTO)
	return strings.TrimRight(sb.String(), "\n")
}

func writeMolecule(sb *strings.Builder, m *mtypes.MoleculeDTO) {
	fmt.Fprintf(sb, "  id:       %s\n", m.ID)
	fmt.Fprintf(sb, "  name:     %s\n", nameOf(m))
	fmt.Fprintf(sb, "  formula:  %s\n", m.Formula)
	fmt.Fprintf(sb, "  weight:   %.5f\n", m.MolecularWeight)
	fmt.Fprintf(sb, "  atoms:    %d\n", m.AtomCount)
	for _, a := range m.Atoms {
		fmt.Fprintf(sb, "    %3d %-2s %10s %10s %10s\n", a.Index, a.Symbol, fmtCoord(a.X), fmtCoord(a.Y), fmtCoord(a.Z))
	}
	fmt.Fprintf(sb, "  bonds:    %d\n", len(m.Bonds))
	for _, b := range m.Bonds {
		fmt.Fprintf(sb, "    %d-%d (order %d)\n", b.Atom1, b.Atom2, b.Order)
	}
	if m.Engine != "" {
		fmt.Fprintf(sb, "  engine:   %s\n", m.Engine)
	}
}

func nameOf(m *mtypes.MoleculeDTO) string {
	if m.Name == nil {
		return "-"
	}
	return *m.Name
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// formatList prints supported formats.
type formatList []mtypes.FormatDTO

func (f formatList) TableHeaders() []string { return []string{"Format", "Extensions", "Description"} }

func (f formatList) TableRows() [][]string {
	rows := make([][]string, len(f))
	for i, d := range f {
		rows[i] = []string{d.Name, strings.Join(d.Extensions, ","), d.Description}
	}
	return rows
}

func (f formatList) String() string {
	var sb strings.Builder
	for _, d := range f {
		fmt.Fprintf(&sb, "%-4s %-6s %s\n", d.Name, strings.Join(d.Extensions, ","), d.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// moleculePage prints one page of the stored molecule list.
type moleculePage struct {
	*mtypes.MoleculeListResponse
}

func (p moleculePage) TableHeaders() []string {
	return []string{"ID", "Name", "Formula", "Atoms", "Source", "Created"}
}

func (p moleculePage) TableRows() [][]string {
	rows := make([][]string, len(p.Items))
	for i := range p.Items {
		m := &p.Items[i]
		rows[i] = []string{m.ID.String(), nameOf(m), m.Formula, strconv.Itoa(m.AtomCount), string(m.Source), time.Time(m.CreatedAt).Format(time.RFC3339)}
	}
	return rows
}

func (p moleculePage) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "page %d/%d, %d molecules\n", p.Page, p.TotalPages, p.Total)
	for i := range p.Items {
		m := &p.Items[i]
		fmt.Fprintf(&sb, "%s  %-12s %s\n", m.ID, m.Formula, nameOf(m))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// searchPage prints one page of search hits and the element facets.
type searchPage struct {
	*mtypes.SearchResponse
}

func (p searchPage) TableHeaders() []string {
	return []string{"ID", "Name", "Formula", "Atoms", "Elements", "Score"}
}

func (p searchPage) TableRows() [][]string {
	rows := make([][]string, len(p.Items))
	for i, h := range p.Items {
		rows[i] = []string{h.ID.String(), h.Name, h.Formula, strconv.Itoa(h.AtomCount), strings.Join(h.Elements, " "), strconv.FormatFloat(h.Score, 'f', 2, 64)}
	}
	return rows
}

func (p searchPage) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "page %d/%d, %d hits\n", p.Page, p.TotalPages, p.Total)
	for _, h := range p.Items {
		fmt.Fprintf(&sb, "%s  %-12s %s\n", h.ID, h.Formula, h.Name)
	}
	if len(p.ElementFacets) > 0 {
		keys := make([]string, 0, len(p.ElementFacets))
		for k := range p.ElementFacets {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s:%d", k, p.ElementFacets[k])
		}
		fmt.Fprintf(&sb, "elements %s\n", strings.Join(parts, " "))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// distancesView prints bond lengths and the optional atom pair.
type distancesView struct {
	*mtypes.DistancesResponse
}

func (v distancesView) TableHeaders() []string { return []string{"Atom1", "Atom2", "Distance"} }

func (v distancesView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Bonds)+1)
	for _, d := range v.Bonds {
		rows = append(rows, []string{strconv.Itoa(d.Atom1), strconv.Itoa(d.Atom2), fmtCoord(d.Distance)})
	}
	if v.Pair != nil {
		rows = append(rows, []string{strconv.Itoa(v.Pair.Atom1) + "*", strconv.Itoa(v.Pair.Atom2) + "*", fmtCoord(v.Pair.Distance)})
	}
	return rows
}

func (v distancesView) String() string {
	var sb strings.Builder
	for _, d := range v.Bonds {
		fmt.Fprintf(&sb, "%d-%d  %.4f\n", d.Atom1, d.Atom2, d.Distance)
	}
	if v.Pair != nil {
		fmt.Fprintf(&sb, "pair %d-%d  %.4f\n", v.Pair.Atom1, v.Pair.Atom2, v.Pair.Distance)
	}
	return strings.TrimRight(sb.String(), "\n")
}

//Personal.AI order the ending
