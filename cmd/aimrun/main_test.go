package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"aimclient/internal/aim"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		cfg, err := parseFlags(nil)
		if err != nil {
			t.Fatalf("parseFlags: %v", err)
		}
		if cfg.Temperature != 298.15 || cfg.RH != 0.5 {
			t.Errorf("defaults = %+v", cfg)
		}
		if cfg.Timeout != 30*time.Second {
			t.Errorf("timeout default = %v", cfg.Timeout)
		}
	})

	t.Run("rejects non-positive temperature", func(t *testing.T) {
		t.Parallel()
		if _, err := parseFlags([]string{"-temp", "-5"}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("help returns usage", func(t *testing.T) {
		t.Parallel()
		_, err := parseFlags([]string{"-h"})
		if err == nil || !strings.Contains(err.Error(), "Usage of aimrun") {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestParseSpeciesCSV(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      string
		want    []aim.Amount
		wantErr bool
	}{
		{name: "empty", in: "", want: nil},
		{
			name: "ordered pairs",
			in:   "H+=0.1, NH4+=0.2",
			want: []aim.Amount{{Label: "H+", Moles: 0.1}, {Label: "NH4+", Moles: 0.2}},
		},
		{
			name: "scientific notation",
			in:   "SO42-=1.5e-3",
			want: []aim.Amount{{Label: "SO42-", Moles: 1.5e-3}},
		},
		{name: "missing value", in: "H+", wantErr: true},
		{name: "bad number", in: "H+=abc", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseSpeciesCSV(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSpeciesCSV: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildParams_Solids(t *testing.T) {
	t.Parallel()

	params, err := buildParams(runConfig{Temperature: 298.15, RH: 0.5, AllSolids: true, Ice: true})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Solids) != len(aim.SolidPhases)+1 {
		t.Errorf("solids = %d entries", len(params.Solids))
	}
	if params.Solids[len(params.Solids)-1] != aim.Ice {
		t.Errorf("last solid = %q", params.Solids[len(params.Solids)-1])
	}
}

const testPage = `<html><form action="run.php">
<input type="text" name="Temp(K)" value="273">
<input type="text" name="RH_var" value="0.1">
<textarea name="species_input"></textarea>
<input type="submit" name="go" value="Run model">
</form></html>`

const testOutput = `<html><pre>
pH = 4.56
Na+ 0.1
</pre></html>`

func newModelServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /model.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage))
	})
	mux.HandleFunc("POST /run.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testOutput))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_Table(t *testing.T) {
	t.Parallel()

	srv := newModelServer(t)

	var stdout, stderr strings.Builder
	code := run(context.Background(),
		[]string{"-url", srv.URL + "/model.php", "-species", "Na+=0.1"},
		deps{Stdout: &stdout, Stderr: &stderr, HTTPClient: http.DefaultClient},
	)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	out := stdout.String()
	if !strings.Contains(out, "pH") || !strings.Contains(out, "4.56") {
		t.Errorf("table output missing pH row:\n%s", out)
	}
	if !strings.Contains(out, "Na+") {
		t.Errorf("table output missing molarity row:\n%s", out)
	}
}

func TestRun_CSVExport(t *testing.T) {
	t.Parallel()

	srv := newModelServer(t)
	outPath := filepath.Join(t.TempDir(), "results.csv")

	var stderr strings.Builder
	code := run(context.Background(),
		[]string{"-url", srv.URL + "/model.php", "-o", outPath},
		deps{Stderr: &stderr, HTTPClient: http.DefaultClient},
	)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	b, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if got := string(b); got != "parameter,value\npH,4.56\nNa+,0.1\n" {
		t.Errorf("csv = %q", got)
	}
}

func TestRun_UsageError(t *testing.T) {
	t.Parallel()

	var stderr strings.Builder
	code := run(context.Background(),
		[]string{"-species", "broken"},
		deps{Stderr: &stderr},
	)
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "invalid -species") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRun_NetworkErrorExitCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	var stderr strings.Builder
	code := run(context.Background(),
		[]string{"-url", srv.URL},
		deps{Stderr: &stderr, HTTPClient: http.DefaultClient},
	)
	if code != 1 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "run model") {
		t.Errorf("stderr = %q", stderr.String())
	}
}
