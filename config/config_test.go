package config

import (
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/pkg/errors"
	c "github.com/relloyd/starpipe/constants"
)

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "starpipe-config")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func TestFile(t *testing.T) {
	dir := path.Join(tempDir(t), "nested")
	f := NewConfigFileWithDir(dir, "config.yaml")
	if f.FilePrefix != "config" || f.FileExt != "yaml" {
		t.Fatalf("unexpected file name parts %q %q", f.FilePrefix, f.FileExt)
	}
	// Test 1, a missing file has no keys.
	keys, err := f.GetAllKeys()
	if err != nil || len(keys) != 0 {
		t.Fatalf("Test 1, expected no keys; got %v, %v", keys, err)
	}
	// Test 2, Set creates the directory and file.
	if err = f.Set("store", "sqlite:/tmp/sp.db"); err != nil {
		t.Fatalf("Test 2, unexpected error: %v", err)
	}
	if err = f.Set("parallel", "true"); err != nil {
		t.Fatalf("Test 2, unexpected error: %v", err)
	}
	if _, err = os.Stat(f.FullPath); err != nil {
		t.Fatalf("Test 2, expected file %v: %v", f.FullPath, err)
	}
	// Test 3, a fresh File reads the saved keys.
	g := NewConfigFileWithDir(dir, "config.yaml")
	var store string
	if err = g.Get("store", &store); err != nil || store != "sqlite:/tmp/sp.db" {
		t.Fatalf("Test 3, expected store; got %q, %v", store, err)
	}
	keys, _ = g.GetAllKeys()
	if len(keys) != 2 || keys[0] != "parallel" || keys[1] != "store" {
		t.Fatalf("Test 3, unexpected keys %v", keys)
	}
	// Test 4, missing keys report KeyNotFoundError.
	err = g.Get("region", &store)
	if !errors.As(err, &KeyNotFoundError{}) {
		t.Fatalf("Test 4, expected KeyNotFoundError; got %v", err)
	}
	if err = g.Delete("region"); !errors.As(err, &KeyNotFoundError{}) {
		t.Fatalf("Test 4, expected KeyNotFoundError on delete; got %v", err)
	}
	// Test 5, Delete removes the key from disk.
	if err = g.Delete("parallel"); err != nil {
		t.Fatalf("Test 5, unexpected error: %v", err)
	}
	keys, _ = NewConfigFileWithDir(dir, "config.yaml").GetAllKeys()
	if len(keys) != 1 {
		t.Fatalf("Test 5, expected one key; got %v", keys)
	}
	// Test 6, Decode applies keys onto a Pipeline.
	p := NewPipeline()
	if err = g.Decode(p); err != nil || p.Store != "sqlite:/tmp/sp.db" {
		t.Fatalf("Test 6, expected store from defaults; got %q, %v", p.Store, err)
	}
}

const pipelineYAML = `
store: sqlite:/tmp/starpipe.db
parallel: true
sources:
  customers: /data/cust_info.csv
  products: /data/prd_info.csv
  sales: s3://bucket/sales_details.csv
  demographics: /data/CUST_AZ12.csv
  locations: /data/LOC_A101.csv
  categories: /data/PX_CAT_G1V2.csv
custom-checks:
  - name: no_zero_quantity
    table: silver_crm_sales_details
    rule: '{"==": [{"var": "quantity"}, 0]}'
`

func TestLoadPipeline(t *testing.T) {
	dir := tempDir(t)
	fileName := path.Join(dir, "pipeline.yaml")
	if err := ioutil.WriteFile(fileName, []byte(pipelineYAML), 0600); err != nil {
		t.Fatal(err)
	}
	defaults := NewConfigFileWithDir(dir, "defaults.yaml")
	if err := defaults.Set("log-level", "debug"); err != nil {
		t.Fatal(err)
	}
	if err := defaults.Set("store", "memory"); err != nil {
		t.Fatal(err)
	}
	// Test 1, the pipeline file overrides the defaults file which overrides built-in values.
	p, err := LoadPipeline(defaults, fileName)
	if err != nil {
		t.Fatalf("Test 1, unexpected error: %v", err)
	}
	if p.Store != "sqlite:/tmp/starpipe.db" || p.LogLevel != "debug" || !p.Parallel {
		t.Fatalf("Test 1, unexpected pipeline %+v", p)
	}
	if p.DemographicIDPrefix != c.DemographicIDPrefix {
		t.Fatalf("Test 1, expected default prefix; got %q", p.DemographicIDPrefix)
	}
	if p.Sources.Sales != "s3://bucket/sales_details.csv" || len(p.CustomChecks) != 1 {
		t.Fatalf("Test 1, unexpected sources or checks %+v %+v", p.Sources, p.CustomChecks)
	}
	if err = p.Validate(); err != nil {
		t.Fatalf("Test 1, unexpected validation error: %v", err)
	}
	opts := p.Options()
	if !opts.Parallel || opts.CustomChecks[0].Name != "no_zero_quantity" {
		t.Fatalf("Test 1, unexpected options %+v", opts)
	}
	// Test 2, env vars override the file.
	t.Setenv("SP_STORE", "postgres://u:p@localhost/dw")
	t.Setenv("SP_PARALLEL", "false")
	t.Setenv("SP_STATS", "10")
	t.Setenv("SP_SALES_SOURCE", "/local/sales.csv")
	t.Setenv("SP_REGION", "us-east-1")
	p, err = LoadPipeline(nil, fileName)
	if err != nil {
		t.Fatalf("Test 2, unexpected error: %v", err)
	}
	if p.Store != "postgres://u:p@localhost/dw" || p.Parallel || p.StatsDumpFrequencySeconds != 10 {
		t.Fatalf("Test 2, unexpected pipeline %+v", p)
	}
	if p.Sources.Sales != "/local/sales.csv" || p.Sources.Customers != "/data/cust_info.csv" || p.Sources.Region != "us-east-1" {
		t.Fatalf("Test 2, unexpected sources %+v", p.Sources)
	}
	// Test 3, a missing pipeline file is an error.
	if _, err = LoadPipeline(nil, path.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("Test 3, expected an error")
	}
}

func TestPipelineValidate(t *testing.T) {
	// Test 1, missing sources are listed.
	p := NewPipeline()
	err := p.Validate()
	if err == nil {
		t.Fatal("Test 1, expected an error")
	}
	expected := "please supply values for customers source, products source, sales source, demographics source, locations source, categories source"
	if err.Error() != expected {
		t.Fatalf("Test 1, expected %q; got %q", expected, err.Error())
	}
	if err = p.ValidateStore(); err != nil {
		t.Fatalf("Test 1, expected the store to validate; got %v", err)
	}
	// Test 2, duplicate custom check names are rejected.
	err = p.ReadYAML([]byte(pipelineYAML + `  - name: no_zero_quantity
    table: gold_fact_sales
    rule: '{"==": [{"var": "quantity"}, 0]}'
`))
	if err != nil {
		t.Fatalf("Test 2, unexpected error: %v", err)
	}
	if err = p.Validate(); !errors.Is(err, ErrDuplicateCustomCheck) {
		t.Fatalf("Test 2, expected ErrDuplicateCustomCheck; got %v", err)
	}
	// Test 3, an empty store fails ValidateStore.
	p.Store = " "
	if err = p.ValidateStore(); err == nil {
		t.Fatal("Test 3, expected an error")
	}
}
