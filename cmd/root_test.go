package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vies-crawler/internal/app"
)

// registry mimics the viesapi endpoints used by the commands.
type registry struct {
	submits atomic.Int32
	polls   atomic.Int32
}

func (r *registry) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /get/vies/euvat/{number}", func(w http.ResponseWriter, req *http.Request) {
		n := req.PathValue("number")
		writeJSON(w, map[string]any{"vies": map[string]any{
			"countryCode": n[:2],
			"vatNumber":   n[2:],
			"valid":       !strings.HasSuffix(n, "0"),
			"traderName":  "Trader " + n,
		}})
	})
	mux.HandleFunc("POST /batch/vies", func(w http.ResponseWriter, _ *http.Request) {
		r.submits.Add(1)
		writeJSON(w, map[string]any{"token": "tok"})
	})
	mux.HandleFunc("GET /batch/vies/tok", func(w http.ResponseWriter, _ *http.Request) {
		if r.polls.Add(1) == 1 {
			writeJSON(w, map[string]any{"percentage": 10})
			return
		}
		writeJSON(w, map[string]any{"numbers": []any{
			map[string]any{"countryCode": "DE", "vatNumber": "111", "valid": true},
			map[string]any{"countryCode": "FR", "vatNumber": "222", "valid": false},
		}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeJSON encodes v; map keys come out sorted.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(app.Options{Registerer: prometheus.NewRegistry()})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--log-level", "error", "--delay", "1ms"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckWritesCSV(t *testing.T) {
	t.Parallel()

	srv := (&registry{}).server(t)
	out, err := execute(t, "", "check", "DE111", "fr 222-0",
		"--service", "viesapi", "--base-url", srv.URL, "-f", "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "country_code,vat_number,valid,name,address,vies.countryCode,vies.traderName,vies.valid,vies.vatNumber", lines[0])
	assert.Equal(t, "DE,111,true,Trader DE111,,DE,Trader DE111,true,111", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "FR,2220,false,"))
}

func TestCheckRequiresNumbers(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "", "check")
	require.Error(t, err)
}

func TestBatchReadsStdinAndPolls(t *testing.T) {
	t.Parallel()

	reg := &registry{}
	srv := reg.server(t)
	out, err := execute(t, "DE111\n\nFR222\n", "batch",
		"--service", "viesapi", "--base-url", srv.URL, "--size", "5", "--poll-interval", "1ms")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"country_code":"DE"`)
	assert.Contains(t, lines[1], `"valid":false`)
	assert.Equal(t, int32(2), reg.polls.Load())
}

func TestBatchWithBlankInputWritesNothing(t *testing.T) {
	t.Parallel()

	reg := &registry{}
	srv := reg.server(t)
	out, err := execute(t, "\n\n  \n", "batch",
		"--service", "viesapi", "--base-url", srv.URL, "-f", "csv")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, reg.submits.Load())
	assert.Zero(t, reg.polls.Load())
}

func TestBatchResumesCSVFile(t *testing.T) {
	t.Parallel()

	srv := (&registry{}).server(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")
	require.NoError(t, os.WriteFile(path, []byte("vat_number,country_code,valid\n999,PL,true\n"), 0o600))
	input := filepath.Join(dir, "numbers.txt")
	require.NoError(t, os.WriteFile(input, []byte("DE111\nFR222\n"), 0o600))

	_, err := execute(t, "", "batch", input,
		"--service", "viesapi", "--base-url", srv.URL, "--poll-interval", "1ms",
		"-f", "csv", "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "vat_number,country_code,valid\n999,PL,true\n111,DE,true\n222,FR,false\n", string(data))
}

func TestConfigFileAndFlagsCombine(t *testing.T) {
	t.Parallel()

	srv := (&registry{}).server(t)
	cfgPath := filepath.Join(t.TempDir(), "vies.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("service: viesapi\noutput:\n  format: table\n"), 0o600))

	out, err := execute(t, "", "check", "DE111", "--config", cfgPath, "--base-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Trader DE111")
	assert.Contains(t, out, "╭")
}

func TestUnknownFormatFails(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "", "check", "DE111", "-f", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.format")
}
