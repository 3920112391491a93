package cmd

import (
	"os"
	"testing"

	"github.com/relloyd/starpipe/config"
	"github.com/spf13/cobra"
)

func TestGetCliFlag(t *testing.T) {
	fnGetConfig := func(key string, out interface{}) error {
		return config.KeyNotFoundError{}
	}
	flagName := "mock"
	mockEnvVar := flagNameToEnvVar(flagName)
	expected := "envTest"
	d := "myDefault"
	defer func() { twelveFactorMode = false }()
	// Test 1 - test default value applied to mock CLI flag.
	got := switches.getCliFlag(flagName, d, fnGetConfig)
	if got.val != d { // if no default was applied...
		t.Fatalf("test 1 failed: expected default value %v to be applied to mock CLI flag; got %v", d, got.val)
	}
	// Test 2 - fetch flag value from environment when it is not set - expect default value to be applied.
	twelveFactorMode = true // enable twelveFactorMode so that env variables are read.
	got = switches.getCliFlag(flagName, d, fnGetConfig)
	if got.val != d {
		t.Fatalf("test 2 failed: expected default value (%v) to be applied to mock CLI flag fetched via environment variable (%v)", got.val, mockEnvVar)
	}
	// Test 3 - fetch flag value from environment after setting it explicitly (requires twelveFactorMode).
	t.Setenv(mockEnvVar, expected)
	got = switches.getCliFlag(flagName, d, fnGetConfig)
	if got.val != expected {
		t.Fatalf("test 3 failed: expected value (%v) to be applied to mock CLI flag (%v) fetched from environment variable (%v); got: %v", expected, flagName, mockEnvVar, got.val)
	}
	// Test 4 - config values are used as defaults outside twelveFactorMode.
	twelveFactorMode = false
	fromConfig := func(key string, out interface{}) error {
		*(out.(*string)) = "fromConfig"
		return nil
	}
	got = switches.getCliFlag(flagName, d, fromConfig)
	if got.val != "fromConfig" {
		t.Fatalf("test 4 failed: expected the config value; got %v", got.val)
	}
}

func TestFlagNameToEnvVar(t *testing.T) {
	if got := flagNameToEnvVar("fail-on-violation"); got != "SP_FAIL_ON_VIOLATION" {
		t.Fatalf("unexpected env var name %v", got)
	}
}

func TestLoadPipeline(t *testing.T) {
	dir, err := os.MkdirTemp("", "starpipe-cmd")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	fileName := dir + "/pipeline.yaml"
	if err = os.WriteFile(fileName, []byte("store: sqlite:/tmp/from-file.db\nlog-level: warn\nstats: 3\n"), 0600); err != nil {
		t.Fatal(err)
	}
	saved := pipeFlags
	defer func() { pipeFlags = saved }()

	c := &cobra.Command{Use: "mock"}
	addPipelineFlags(c)
	addRunFlags(c)
	pipeFlags.file = fileName
	// Test 1 - unset flags leave the pipeline file values alone.
	p, err := loadPipeline(c.Flags())
	if err != nil {
		t.Fatalf("test 1 failed: %v", err)
	}
	if p.Store != "sqlite:/tmp/from-file.db" || p.LogLevel != "warn" || p.StatsDumpFrequencySeconds != 3 {
		t.Fatalf("test 1 failed: unexpected pipeline %+v", p)
	}
	// Test 2 - flags set on the command line win.
	if err = c.Flags().Set("store", "memory"); err != nil {
		t.Fatal(err)
	}
	if err = c.Flags().Set("parallel", "true"); err != nil {
		t.Fatal(err)
	}
	p, err = loadPipeline(c.Flags())
	if err != nil {
		t.Fatalf("test 2 failed: %v", err)
	}
	if p.Store != "memory" || !p.Parallel || p.LogLevel != "warn" {
		t.Fatalf("test 2 failed: unexpected pipeline %+v", p)
	}
	// Test 3 - a nil flag set only uses the file and environment.
	p, err = loadPipeline(nil)
	if err != nil {
		t.Fatalf("test 3 failed: %v", err)
	}
	if p.Store != "sqlite:/tmp/from-file.db" || p.Parallel {
		t.Fatalf("test 3 failed: unexpected pipeline %+v", p)
	}
	// Test 4 - source tokens override single locations.
	if err = c.Flags().Set("sources", "sales:s3://raw/sales_details.csv"); err != nil {
		t.Fatal(err)
	}
	p, err = loadPipeline(c.Flags())
	if err != nil {
		t.Fatalf("test 4 failed: %v", err)
	}
	if p.Sources.Sales != "s3://raw/sales_details.csv" || p.Sources.Customers != "" {
		t.Fatalf("test 4 failed: unexpected sources %+v", p.Sources)
	}
	// Test 5 - unknown entities are rejected.
	if err = c.Flags().Set("sources", "orders:/data/orders.csv"); err != nil {
		t.Fatal(err)
	}
	if _, err = loadPipeline(c.Flags()); err == nil {
		t.Fatal("test 5 failed: expected an error for an unknown source entity")
	}
}

func TestDefaultKeys(t *testing.T) {
	keys := defaultKeys()
	found := make(map[string]bool)
	for _, k := range keys {
		found[k] = true
	}
	for _, k := range []string{"store", "export-s3", "demographic-id-prefix", "csv-rows", "sources"} {
		if !found[k] {
			t.Fatalf("expected %q to be a valid default key; got %v", k, keys)
		}
	}
	if found["mock"] {
		t.Fatal("the mock switch must not be a default key")
	}
}
