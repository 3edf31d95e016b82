package fcstd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"text/template"
)

// Macros are generated per stage and executed with FreeCAD's console binary
// (freecadcmd). A macro always reports its outcome by writing a result file
// into the request workdir, so expected CAD-level failures stay
// distinguishable from process-level ones.

const regenerateMacro = `import json
import sys

import FreeCAD


def finish(result):
    with open({{.ResultPath}}, "w") as fh:
        json.dump(result, fh)
    sys.exit(0)


doc = FreeCAD.open({{.SourcePath}})
sheet = doc.getObject("Spreadsheet")
if sheet is None:
    finish({"ok": False, "stage": "schema", "message": "document has no Spreadsheet object"})

with open({{.ParamsPath}}) as fh:
    params = json.load(fh)

for name, value in params.items():
    sheet.set(name, str(value))

code = doc.recompute()
if doc.isTouched():
    finish({
        "ok": False,
        "stage": "recompute",
        "code": code,
        "message": "document still touched after recompute; parameter combination is likely infeasible",
    })

doc.saveAs({{.OutputPath}})
finish({"ok": True, "code": code})
`

const exportMacro = `import json
import sys

import FreeCAD
import Mesh


def finish(result):
    with open({{.ResultPath}}, "w") as fh:
        json.dump(result, fh)
    sys.exit(0)


doc = FreeCAD.open({{.SourcePath}})

objects = []
for obj in doc.Objects:
    shape = getattr(obj, "Shape", None)
    if shape is None or shape.isNull():
        continue
    if not getattr(obj, "Visibility", True):
        continue
    objects.append(obj)

if not objects:
    finish({"ok": False, "stage": "export", "objects": 0, "message": "no exportable solids"})

Mesh.export(objects, {{.OutputPath}})
finish({"ok": True, "objects": len(objects)})
`

var (
	regenerateTemplate = template.Must(template.New("regenerate").Parse(regenerateMacro))
	exportTemplate     = template.Must(template.New("export").Parse(exportMacro))
)

type macroPaths struct {
	SourcePath string
	ParamsPath string
	OutputPath string
	ResultPath string
}

// quoted renders every path as a JSON string, which is also a valid Python
// string literal, so paths with quotes or backslashes survive templating.
func (p macroPaths) quoted() macroPaths {
	return macroPaths{
		SourcePath: pyString(p.SourcePath),
		ParamsPath: pyString(p.ParamsPath),
		OutputPath: pyString(p.OutputPath),
		ResultPath: pyString(p.ResultPath),
	}
}

func pyString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func writeMacro(tmpl *template.Template, path string, paths macroPaths) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, paths.quoted()); err != nil {
		return err
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

type macroResult struct {
	OK      bool   `json:"ok"`
	Stage   string `json:"stage"`
	Code    int    `json:"code"`
	Objects int    `json:"objects"`
	Message string `json:"message"`
}

var errMacroTimeout = errors.New("freecad process timed out")

// runMacro executes a generated macro and decodes the result file it wrote.
func runMacro(ctx context.Context, bin, macroPath, resultPath string) (*macroResult, error) {
	cmd := exec.CommandContext(ctx, bin, macroPath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errMacroTimeout
		}
		return nil, fmt.Errorf("freecad process failed: %w: %s", err, bytes.TrimSpace(output))
	}

	data, err := os.ReadFile(resultPath)
	if err != nil {
		return nil, fmt.Errorf("freecad macro wrote no result: %w: %s", err, bytes.TrimSpace(output))
	}

	result := &macroResult{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("failed to decode macro result: %w", err)
	}

	return result, nil
}
