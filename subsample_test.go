package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/phil-mansfield/gadget-subsample/lib/config"
	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
	"github.com/phil-mansfield/gadget-subsample/lib/logger"
	"github.com/phil-mansfield/gadget-subsample/lib/metrics"
	"github.com/phil-mansfield/gadget-subsample/lib/snapio"
)

func TestMain(m *testing.M) {
	logger.SetupWriter(bytes.NewBuffer(nil), "error", "json")
	os.Exit(m.Run())
}

func TestRawArgs(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "subsample.ini")
	text := `[subsample]
fraction = 0.5
input = in
output = out
seed = 7

[log]
level = debug
`
	if err := os.WriteFile(cfgFile, []byte(text), 0644); err != nil {
		t.Fatal(err.Error())
	}

	tests := []struct {
		cfg  runConfig
		args []string
		want config.RawArgs
	}{
		{runConfig{Fraction: "0.1"}, []string{"a", "b"}, func() config.RawArgs {
			raw := config.RawArgs{}
			raw.Subsample.Fraction = "0.1"
			raw.Subsample.Input, raw.Subsample.Output = "a", "b"
			return raw
		}()},
		{runConfig{Config: cfgFile}, nil, func() config.RawArgs {
			raw := config.RawArgs{}
			raw.Subsample.Fraction, raw.Subsample.Seed = "0.5", "7"
			raw.Subsample.Input, raw.Subsample.Output = "in", "out"
			raw.Log.Level = "debug"
			return raw
		}()},
		{runConfig{Config: cfgFile, Seed: "9", LogFormat: "json"},
			[]string{"a", "b"}, func() config.RawArgs {
				raw := config.RawArgs{}
				raw.Subsample.Fraction, raw.Subsample.Seed = "0.5", "9"
				raw.Subsample.Input, raw.Subsample.Output = "a", "b"
				raw.Log.Level, raw.Log.Format = "debug", "json"
				return raw
			}()},
	}

	for i := range tests {
		raw, err := tests[i].cfg.rawArgs(tests[i].args)
		if err != nil {
			t.Errorf("%d) rawArgs() failed: %s", i, err.Error())
			continue
		}
		if diff := cmp.Diff(tests[i].want, *raw); diff != "" {
			t.Errorf("%d) RawArgs differ (-want +got):\n%s", i, diff)
		}
	}

	cfg := &runConfig{}
	if _, err := cfg.rawArgs([]string{"only-input"}); err == nil {
		t.Errorf("Expected an error for a single positional argument.")
	}
	cfg = &runConfig{Config: filepath.Join(dir, "missing.ini")}
	if _, err := cfg.rawArgs(nil); !errors.Is(err, g_error.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for a missing file, got %v.", err)
	}
}

func TestRunArgs(t *testing.T) {
	dir := t.TempDir()
	fake := snapio.NewFakeFile([snapio.NTypes]int{0, 200, 0, 0, 0, 0}, 8)
	input := filepath.Join(dir, "snap")
	if err := fake.Write(input, binary.LittleEndian); err != nil {
		t.Fatal(err.Error())
	}

	raw := &config.RawArgs{}
	raw.Subsample.Fraction = "0.25"
	raw.Subsample.Input = input
	raw.Subsample.Output = filepath.Join(dir, "out")
	raw.Subsample.Strategy = "buffered"
	raw.Subsample.MetricsFile = filepath.Join(dir, "subsample.prom")
	a, err := raw.Process()
	if err != nil {
		t.Fatal(err.Error())
	}

	m := metrics.New()
	sum, err := runArgs(a, m)
	if err != nil {
		t.Fatalf("runArgs() failed: %s", err.Error())
	}
	if sum.ParticlesWritten != 50 {
		t.Errorf("Expected 50 particles written, got %d.", sum.ParticlesWritten)
	}
	if got := testutil.ToFloat64(m.FilesWritten); got != 1 {
		t.Errorf("Expected 1 file written, got %g.", got)
	}

	prom, err := os.ReadFile(a.MetricsFile)
	if err != nil {
		t.Fatalf("Metrics file wasn't written: %s", err.Error())
	}
	if !strings.Contains(string(prom), "gadget_subsample_particles_written_total 50") {
		t.Errorf("Metrics file doesn't record the written particles:\n%s", prom)
	}

	// A second run fails because the output exists, but still exports
	// metrics.
	if err := os.Remove(a.MetricsFile); err != nil {
		t.Fatal(err.Error())
	}
	m = metrics.New()
	if _, err := runArgs(a, m); !errors.Is(err, g_error.ErrOutputExists) {
		t.Errorf("Expected ErrOutputExists, got %v.", err)
	}
	prom, err = os.ReadFile(a.MetricsFile)
	if err != nil {
		t.Fatalf("Metrics file wasn't written after a failure: %s", err.Error())
	}
	if !strings.Contains(string(prom), `kind="output_exists"`) {
		t.Errorf("Metrics file doesn't record the failure:\n%s", prom)
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	fake := snapio.NewFakeFile([snapio.NTypes]int{0, 100, 0, 0, 0, 0}, 4)
	if err := fake.Write(filepath.Join(dir, "snap.0"), binary.LittleEndian); err != nil {
		t.Fatal(err.Error())
	}

	out := &bytes.Buffer{}
	if err := inspect(out, filepath.Join(dir, "snap"), binary.LittleEndian); err != nil {
		t.Fatalf("inspect() failed: %s", err.Error())
	}

	text := out.String()
	for _, want := range []string{
		"snap.0",
		"id width:        4 bytes",
		"expected file size: 3088 bytes",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected inspect output to contain '%s', got:\n%s",
				want, text)
		}
	}

	err := inspect(out, filepath.Join(dir, "missing"), binary.LittleEndian)
	if !errors.Is(err, g_error.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v.", err)
	}
}
