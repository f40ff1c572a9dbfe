package parser

import (
	"fmt"
	"strings"
)

const waterXYZ = `3
water
O 0.000 0.000 0.000
H 0.758 0.000 0.504
H -0.758 0.000 0.504
`

// pdbAtom renders one fixed-column ATOM/HETATM record.
func pdbAtom(record string, serial int, name string, x, y, z float64, element string) string {
	return fmt.Sprintf("%-6s%5d %-4s %3s %1s%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2s",
		record, serial, name, "HOH", "A", 1, x, y, z, 1.0, 0.0, element)
}

func pdbConect(serials ...int) string {
	var sb strings.Builder
	sb.WriteString("CONECT")
	for _, s := range serials {
		fmt.Fprintf(&sb, "%5d", s)
	}
	return sb.String()
}

func waterPDB() string {
	return strings.Join([]string{
		"HEADER    WATER",
		pdbAtom("HETATM", 1, " O", 0, 0, 0, "O"),
		pdbAtom("HETATM", 2, " H1", 0.758, 0, 0.504, "H"),
		pdbAtom("HETATM", 3, " H2", -0.758, 0, 0.504, "H"),
		pdbConect(1, 2, 3),
		"END",
	}, "\n")
}

func molAtom(x, y, z float64, symbol string) string {
	return fmt.Sprintf("%10.4f%10.4f%10.4f %-3s 0  0  0  0  0  0  0  0  0  0  0  0", x, y, z, symbol)
}

func waterMolfile(title string) string {
	return strings.Join([]string{
		title,
		"  molstruct",
		"",
		"  3  2  0  0  0  0  0  0  0  0999 V2000",
		molAtom(0, 0, 0, "O"),
		molAtom(0.758, 0, 0.504, "H"),
		molAtom(-0.758, 0, 0.504, "H"),
		"  1  2  1  0  0  0  0",
		"  1  3  1  0  0  0  0",
		"M  END",
	}, "\n")
}

//Personal.AI order the ending
