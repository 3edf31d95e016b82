package fcstd

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/cadforge/meshgen/internal/document"
)

// An .FCStd file is a zip archive; Document.xml inside it holds the feature
// tree, including the spreadsheet cells. Cells carrying both an alias and a
// content attribute are the document's user parameters.
const documentXML = "Document.xml"

var errNoParameters = errors.New("no parameter cells found")

// ReadSchema extracts the tunable parameters from an .FCStd file without
// loading it into a CAD kernel. Read-only.
func ReadSchema(path string) (document.Schema, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, &document.SchemaError{Path: path, Err: err}
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != documentXML {
			continue
		}

		reader, err := file.Open()
		if err != nil {
			return nil, &document.SchemaError{Path: path, Err: err}
		}
		defer reader.Close()

		schema, err := parseSchema(reader)
		if err != nil {
			return nil, &document.SchemaError{Path: path, Err: err}
		}

		return schema, nil
	}

	return nil, &document.SchemaError{Path: path, Err: errors.New("archive has no " + documentXML)}
}

func parseSchema(r io.Reader) (document.Schema, error) {
	schema := document.Schema{}
	decoder := xml.NewDecoder(r)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "Cell" {
			continue
		}

		var alias, content string
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "alias":
				alias = attr.Value
			case "content":
				content = attr.Value
			}
		}

		if alias == "" || content == "" {
			continue
		}

		value, unit, ok := parseCellValue(content)
		if !ok {
			// Formula or text cell; derived, not tunable.
			continue
		}

		schema[alias] = document.ParameterSpec{
			Name:    alias,
			Default: value,
			Unit:    unit,
		}
	}

	if len(schema) == 0 {
		return nil, errNoParameters
	}

	return schema, nil
}

// parseCellValue parses spreadsheet cell content like "60" or "60 mm" into a
// numeric value and optional unit suffix.
func parseCellValue(content string) (float64, string, bool) {
	content = strings.TrimSpace(content)
	if content == "" || strings.HasPrefix(content, "=") {
		return 0, "", false
	}

	fields := strings.Fields(content)
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, "", false
	}

	unit := ""
	if len(fields) > 1 {
		unit = strings.Join(fields[1:], " ")
	}

	return value, unit, true
}
