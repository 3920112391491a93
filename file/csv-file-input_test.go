package file

import (
	"bytes"
	"compress/gzip"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/logger"
)

const custCSV = "CST_ID,cst_key,cst_firstname\n" +
	"29449,AW00029449, Jon \n" +
	"\n" +
	",AW00029450,Ian\n"

func TestCSVFileInput(t *testing.T) {
	log := logger.NewLogger("csv test", "info", true)

	// Test 1
	log.Info("Test 1, read plain CSV with normalized header")
	in, err := NewCSVFileInput(log, "cust_info.csv", strings.NewReader(custCSV))
	if err != nil {
		t.Fatal(err)
	}
	if in.Header()[0] != "cst_id" {
		t.Fatalf("Test 1, expected normalized header; got %v", in.Header())
	}
	if err = in.RequireColumns([]string{"cst_id", "cst_key"}); err != nil {
		t.Fatal(err)
	}
	recs, err := in.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("Test 1, expected 2 records; got %v", len(recs))
	}
	if v := recs[0].GetData("cst_firstname"); v != " Jon " {
		t.Fatalf("Test 1, expected untrimmed value; got %q", v)
	}
	if recs[1].Row() != 2 || recs[1].GetData("cst_id") != "" {
		t.Fatalf("Test 1, unexpected second record: row %v, %v", recs[1].Row(), recs[1].GetJson(log, recs[1].GetSortedDataMapKeys()))
	}

	// Test 2
	log.Info("Test 2, gzip input is detected")
	b := &bytes.Buffer{}
	gz := gzip.NewWriter(b)
	_, _ = gz.Write([]byte(custCSV))
	_ = gz.Close()
	path := filepath.Join(t.TempDir(), "cust_info.csv.gz")
	if err = ioutil.WriteFile(path, b.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	in2, err := OpenCSVFile(log, path)
	if err != nil {
		t.Fatal(err)
	}
	recs, err = in2.ReadAll()
	if err != nil || len(recs) != 2 {
		t.Fatalf("Test 2, unexpected read: %v, %v", len(recs), err)
	}
	if err = in2.Close(); err != nil {
		t.Fatal(err)
	}

	// Test 3
	log.Info("Test 3, missing columns and ragged rows are malformed")
	in3, err := NewCSVFileInput(log, "x.csv", strings.NewReader("a,b\n1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err = in3.RequireColumns([]string{"a", "c"}); !errors.Is(err, ErrMalformedCSV) {
		t.Fatalf("Test 3, expected ErrMalformedCSV; got %v", err)
	}
	if _, err = in3.ReadAll(); !errors.Is(err, ErrMalformedCSV) {
		t.Fatalf("Test 3, expected ErrMalformedCSV for ragged row; got %v", err)
	}

	// Test 4
	log.Info("Test 4, empty input has no header")
	if _, err = NewCSVFileInput(log, "empty.csv", strings.NewReader("")); !errors.Is(err, ErrMalformedCSV) {
		t.Fatalf("Test 4, expected ErrMalformedCSV; got %v", err)
	}
}
