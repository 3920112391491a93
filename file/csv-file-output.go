package file

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"regexp"

	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/logger"
)

// CSVFileOutput writes CSV files to a directory and rotates them every maxFileRows rows.
type CSVFileOutput struct {
	csvWriter         *csv.Writer
	log               logger.Logger
	directory         string // set to empty string if you want to use OS temp space with system generated directory
	prefix            string
	extension         string
	headerRecord      []string
	currentSuffixID   int
	currentName       string
	file              *os.File
	gzWriter          *gzip.Writer
	fWriter           *bufio.Writer
	useGzip           bool
	maxFileRows       int
	currentRowCount   int
	totalRowCount     int
	needNewCSVFile    bool
	ListOfOutputFiles []string
}

// NewCSVFileOutput creates a new CSV file struct. Supply a valid directory or empty string to use default ioutil.TempDir().
// Set maxFileRows to the number of rows you want in each CSV file (excluding the header) or 0 to only generate one file.
// Setting useGzip will use gzip compression and make the extension end with '.gz'.
func NewCSVFileOutput(log logger.Logger, outputDirectory string, fileNamePrefix string, fileNameExtension string, maxFileRows int, useGzip bool) (*CSVFileOutput, error) {
	f := &CSVFileOutput{log: log}
	if outputDirectory == "" {
		var err error
		f.directory, err = ioutil.TempDir("", "csv-output-")
		if err != nil {
			return nil, errors.Wrap(err, "error creating temp directory for CSV files")
		}
	} else {
		if err := os.MkdirAll(outputDirectory, 0755); err != nil {
			return nil, errors.Wrapf(err, "error creating output directory %v", outputDirectory)
		}
		f.directory = outputDirectory
	}
	f.prefix = fileNamePrefix
	f.extension = fileNameExtension
	f.maxFileRows = maxFileRows
	f.useGzip = useGzip
	if useGzip {
		r := regexp.MustCompile(`^(.*?)(\.*)(?i)(gzip|gz){0,}$`) // remove multiple leading '.' and trailing (case insensitive) "gz|gzip"
		f.extension = r.ReplaceAllString(f.extension, "$1.gz")
	}
	f.needNewCSVFile = true
	log.Debug("CSVFileOutput file prefix=", f.prefix, "; extension=", f.extension, "; maxFileRows=", f.maxFileRows, "; useGzip=", f.useGzip)
	return f, nil
}

// SetHeader will store the supplied record for output in each created CSV file.
func (f *CSVFileOutput) SetHeader(record []string) {
	f.headerRecord = record
}

// WriteToCSV writes record to the CSV file.
// Return fileName if a new file is created else empty string "".
func (f *CSVFileOutput) WriteToCSV(record []string) (fileName string, err error) {
	if f.needNewCSVFile {
		if err = f.closeCSVFile(); err != nil {
			return "", err
		}
		if err = f.createNewCSVWriter(); err != nil {
			return "", err
		}
		fileName = f.currentName
		if f.headerRecord != nil {
			if err = f.csvWriter.Write(f.headerRecord); err != nil {
				return "", errors.Wrapf(err, "unable to write header to CSV file %v", f.currentName)
			}
		}
	}
	if err = f.csvWriter.Write(record); err != nil {
		return "", errors.Wrapf(err, "unable to write to CSV file %v", f.currentName)
	}
	f.currentRowCount++
	f.totalRowCount++
	if f.maxFileRows > 0 && f.currentRowCount >= f.maxFileRows { // if we need to rotate the output file after N rows...
		f.needNewCSVFile = true
	}
	return
}

// Close flushes the CSV writer and closes the OS file.
// A header-only file is produced if no rows were written.
func (f *CSVFileOutput) Close() error {
	if f.file == nil && f.headerRecord != nil { // if nothing was written...
		if err := f.createNewCSVWriter(); err != nil {
			return err
		}
		if err := f.csvWriter.Write(f.headerRecord); err != nil {
			return errors.Wrapf(err, "unable to write header to CSV file %v", f.currentName)
		}
	}
	return f.closeCSVFile()
}

// TotalRowCount is the number of data rows written across all files.
func (f *CSVFileOutput) TotalRowCount() int {
	return f.totalRowCount
}

func (f *CSVFileOutput) closeCSVFile() error {
	f.needNewCSVFile = true
	f.currentRowCount = 0
	if f.file == nil {
		return nil
	}
	f.csvWriter.Flush()
	if err := f.csvWriter.Error(); err != nil {
		return errors.Wrapf(err, "unable to flush CSV file %v", f.currentName)
	}
	if f.useGzip {
		if err := f.fWriter.Flush(); err != nil {
			return err
		}
		if err := f.gzWriter.Close(); err != nil {
			return err
		}
	}
	err := f.file.Close()
	f.file = nil
	if err != nil {
		return errors.Wrapf(err, "unable to close OS file %v", f.currentName)
	}
	return nil
}

func (f *CSVFileOutput) createNewCSVWriter() (err error) {
	f.getNextFileName()
	f.log.Info("Creating new CSV file '", f.currentName, "'")
	f.file, err = os.Create(f.currentName)
	if err != nil {
		return errors.Wrapf(err, "unable to create OS file with name %v", f.currentName)
	}
	if f.useGzip {
		f.gzWriter = gzip.NewWriter(f.file)
		f.fWriter = bufio.NewWriter(f.gzWriter)
		f.csvWriter = csv.NewWriter(f.fWriter)
	} else {
		f.csvWriter = csv.NewWriter(f.file)
	}
	f.needNewCSVFile = false
	return nil
}

// getNextFileName generates a new file name in currentName and stores the history in ListOfOutputFiles.
// A single unrotated file has no numeric suffix.
func (f *CSVFileOutput) getNextFileName() {
	f.currentSuffixID++
	if f.maxFileRows > 0 {
		f.currentName = path.Join(f.directory, fmt.Sprintf("%v_%06d.%v", f.prefix, f.currentSuffixID, f.extension))
	} else {
		f.currentName = path.Join(f.directory, fmt.Sprintf("%v.%v", f.prefix, f.extension))
	}
	f.ListOfOutputFiles = append(f.ListOfOutputFiles, f.currentName)
}
