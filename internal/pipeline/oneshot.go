package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mototracker/internal"
)

// ExtractRowsFromInput reads an audit export from a file ("-" for stdin).
// inputType "auto" picks the parser from the file extension.
func ExtractRowsFromInput(inputType string, input string) ([]internal.VisitRow, error) {
	var (
		blob []byte
		err  error
	)
	if input == "-" {
		blob, err = readAllLimited(os.Stdin)
	} else {
		blob, err = os.ReadFile(input)
	}
	if err != nil {
		return nil, err
	}

	kind := strings.ToLower(strings.TrimSpace(inputType))
	if kind == "" || kind == "auto" {
		kind = strings.TrimPrefix(strings.ToLower(filepath.Ext(input)), ".")
	}

	switch kind {
	case "csv", "txt":
		return parseCSV(blob)
	case "xlsx", "xlsm":
		return parseXLSX(blob)
	case "html", "htm":
		return parseHTMLTable(string(blob))
	case "pdf":
		return parsePDF(blob)
	case "eml":
		export, err := ExtractRowsFromEmailRaw(blob)
		if err != nil {
			return nil, err
		}
		return export.Rows, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedInput, inputType)
	}
}
