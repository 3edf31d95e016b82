package api_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/cadforge/meshgen/internal/app"
	"github.com/cadforge/meshgen/internal/config"
	"github.com/cadforge/meshgen/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const potDocumentXML = `<?xml version="1.0" encoding="utf-8"?>
<Document SchemaVersion="4">
  <Object name="Spreadsheet">
    <Properties>
      <Property name="cells">
        <Map count="4">
          <Cell address="A1" content="height" />
          <Cell address="B1" alias="height" content="60" />
          <Cell address="A2" content="diameter" />
          <Cell address="B2" alias="diameter" content="80 mm" />
        </Map>
      </Property>
    </Properties>
  </Object>
</Document>
`

const potSidecar = `parameters:
  height:
    min: 10
    max: 500
    unit: mm
`

func writeModel(t *testing.T, dir, name string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fh, err := zw.Create("Document.xml")
	require.NoError(t, err)
	_, err = fh.Write([]byte(potDocumentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".FCStd"), buf.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".params.yaml"), []byte(potSidecar), 0o644))
}

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}

	fh, err := os.Create(path)
	require.NoError(t, err)
	defer fh.Close()
	require.NoError(t, png.Encode(fh, img))
}

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

// writeFreecadStub fakes freecadcmd: it reads the output path back out of the
// generated macro and produces a tiny ASCII mesh there.
func writeFreecadStub(t *testing.T, dir string) string {
	return writeStub(t, dir, "freecadcmd", `#!/bin/sh
d=$(dirname "$1")
case "$1" in
*regenerate.py)
  printf '{"ok": true, "code": 0}' > "$d/result.json"
  ;;
*export.py)
  out=$(sed -n 's/^Mesh\.export(objects, "\(.*\)")$/\1/p' "$1")
  printf 'solid pot\nendsolid pot\n' > "$out"
  printf '{"ok": true, "objects": 1}' > "$d/result.json"
  ;;
esac
`)
}

func writeOpenscadStub(t *testing.T, dir, fixture string) string {
	return writeStub(t, dir, "openscad", fmt.Sprintf(`#!/bin/sh
cp %q "$2"
`, fixture))
}

type testEnv struct {
	engine http.Handler
	cfg    *config.Config
}

func newTestEnv(t *testing.T, openscadBody string) *testEnv {
	t.Helper()

	binDir := t.TempDir()
	modelsDir := t.TempDir()
	writeModel(t, modelsDir, "pot")

	fcBin := writeFreecadStub(t, binDir)

	var osBin string
	if openscadBody != "" {
		osBin = writeStub(t, binDir, "openscad", openscadBody)
	} else {
		fixture := filepath.Join(binDir, "fixture.png")
		writePNG(t, fixture, 64, 64)
		osBin = writeOpenscadStub(t, binDir, fixture)
	}

	cfg := &config.Config{
		Host:        "127.0.0.1",
		Port:        0,
		Environment: "test",
		ModelsDir:   modelsDir,
		TempDir:     t.TempDir(),
		FreeCAD:     config.FreeCADConfig{Bin: fcBin, TimeoutSec: 10},
		OpenSCAD:    config.OpenSCADConfig{Bin: osBin, TimeoutSec: 10, Width: 64, Height: 64},
	}

	a, err := app.NewApp(cfg, app.WithCatalog(), app.WithMQ(), app.WithPipeline())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	srv, err := server.NewServer(cfg)
	require.NoError(t, err)
	srv.SetupRoutes(a)

	return &testEnv{engine: srv.Engine(), cfg: cfg}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListModels(t *testing.T) {
	env := newTestEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Models []struct {
			Name       string `json:"name"`
			Parameters []struct {
				Name    string   `json:"name"`
				Default float64  `json:"default"`
				Min     *float64 `json:"min"`
				Max     *float64 `json:"max"`
				Unit    string   `json:"unit"`
			} `json:"parameters"`
		} `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Models, 1)
	assert.Equal(t, "pot", body.Models[0].Name)

	require.Len(t, body.Models[0].Parameters, 2)
	byName := map[string]int{}
	for i, p := range body.Models[0].Parameters {
		byName[p.Name] = i
	}

	height := body.Models[0].Parameters[byName["height"]]
	assert.Equal(t, 60.0, height.Default)
	require.NotNil(t, height.Min)
	assert.Equal(t, 10.0, *height.Min)
	require.NotNil(t, height.Max)
	assert.Equal(t, 500.0, *height.Max)
	assert.Equal(t, "mm", height.Unit)

	diameter := body.Models[0].Parameters[byName["diameter"]]
	assert.Equal(t, 80.0, diameter.Default)
	assert.Nil(t, diameter.Min)
	assert.Equal(t, "mm", diameter.Unit)
}

func TestGenerateUnknownModel(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.postJSON(t, "/api/v1/generate", map[string]any{"model": "teapot"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_model", errorCode(t, rec))
}

func TestGenerateValidationErrors(t *testing.T) {
	env := newTestEnv(t, "")

	t.Run("unknown parameter", func(t *testing.T) {
		rec := env.postJSON(t, "/api/v1/generate", map[string]any{
			"model":      "pot",
			"parameters": map[string]float64{"wall": 3},
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "unknown_parameter", errorCode(t, rec))
	})

	t.Run("value below sidecar minimum", func(t *testing.T) {
		rec := env.postJSON(t, "/api/v1/generate", map[string]any{
			"model":      "pot",
			"parameters": map[string]float64{"height": 5},
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_parameter_value", errorCode(t, rec))
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		env.engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request", errorCode(t, rec))
	})

	t.Run("missing model", func(t *testing.T) {
		rec := env.postJSON(t, "/api/v1/generate", map[string]any{
			"parameters": map[string]float64{"height": 80},
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGenerateMeshOnly(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.postJSON(t, "/api/v1/generate", map[string]any{
		"model":      "pot",
		"parameters": map[string]float64{"height": 90},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	disposition := rec.Header().Get("Content-Disposition")
	assert.Regexp(t, regexp.MustCompile(`pot_[0-9a-f]{8}\.stl`), disposition)
	assert.Contains(t, rec.Body.String(), "solid pot")
	assert.Empty(t, rec.Header().Get("X-Preview-Error"))
}

func TestGenerateWithPreview(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.postJSON(t, "/api/v1/generate", map[string]any{
		"model":        "pot",
		"parameters":   map[string]float64{"height": 90},
		"preview":      true,
		"preview_size": map[string]int{"width": 64, "height": 64},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	mediaType, params, err := mime.ParseMediaType(rec.Header().Get("Content-Type"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(mediaType, "multipart/"), mediaType)

	parts := map[string][]byte{}
	mr := multipart.NewReader(rec.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		data, err := io.ReadAll(part)
		require.NoError(t, err)
		parts[part.FormName()] = data
	}

	require.Contains(t, parts, "mesh")
	require.Contains(t, parts, "preview")
	assert.Contains(t, string(parts["mesh"]), "solid pot")

	img, err := png.DecodeConfig(bytes.NewReader(parts["preview"]))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Width)
	assert.Equal(t, 64, img.Height)
}

func TestGenerateRenderFailureStillDeliversMesh(t *testing.T) {
	env := newTestEnv(t, "#!/bin/sh\nexit 1\n")

	rec := env.postJSON(t, "/api/v1/generate", map[string]any{
		"model":   "pot",
		"preview": true,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Preview-Error"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".stl")
	assert.Contains(t, rec.Body.String(), "solid pot")
}

func TestGenerateRecomputeFailure(t *testing.T) {
	env := newTestEnv(t, "")

	// Swap the freecad stub for one that reports an infeasible recompute.
	body := `#!/bin/sh
d=$(dirname "$1")
printf '{"ok": false, "stage": "recompute", "code": 1, "message": "cells unresolved"}' > "$d/result.json"
`
	require.NoError(t, os.WriteFile(env.cfg.FreeCAD.Bin, []byte(body), 0o755))

	rec := env.postJSON(t, "/api/v1/generate", map[string]any{"model": "pot"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "recompute_failed", errorCode(t, rec))
}

func postMultipart(t *testing.T, engine http.Handler, path string, fields map[string]string, fileField, fileName string, fileData []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(fileData)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRenderPreviewUpload(t *testing.T) {
	env := newTestEnv(t, "")

	mesh := []byte("solid pot\nendsolid pot\n")
	rec := postMultipart(t, env.engine, "/api/v1/preview",
		map[string]string{"width": "64", "height": "64"}, "mesh", "pot.stl", mesh)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "pot.png")

	img, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Width)
}

func TestRenderPreviewRejectsBadUploads(t *testing.T) {
	env := newTestEnv(t, "")

	t.Run("missing file", func(t *testing.T) {
		rec := postMultipart(t, env.engine, "/api/v1/preview", nil, "", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong extension", func(t *testing.T) {
		rec := postMultipart(t, env.engine, "/api/v1/preview", nil, "mesh", "pot.txt", []byte("hi"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "unsupported_mesh", errorCode(t, rec))
	})

	t.Run("zip disguised as stl", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		_, err := zw.Create("whatever")
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		rec := postMultipart(t, env.engine, "/api/v1/preview", nil, "mesh", "pot.stl", buf.Bytes())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "unsupported_mesh", errorCode(t, rec))
	})

	t.Run("bad width", func(t *testing.T) {
		rec := postMultipart(t, env.engine, "/api/v1/preview",
			map[string]string{"width": "nope"}, "mesh", "pot.stl", []byte("solid pot\nendsolid pot\n"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
