package imsilist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	valueSeparatorConstant         = ","
	byteOrderMarkConstant          = "\uFEFF"
	openFileErrorTemplateConstant  = "unable to open imsi file %s: %w"
	parseFileErrorTemplateConstant = "unable to parse imsi file %s: %w"
	emptyListErrorMessageConstant  = "no imsi values provided"
)

// ErrEmptyList indicates that no IMSI survived normalization.
var ErrEmptyList = errors.New(emptyListErrorMessageConstant)

// FileOpener opens a named file for reading.
type FileOpener func(path string) (io.ReadCloser, error)

// Loader collects IMSIs from flag values and files.
type Loader struct {
	openFile FileOpener
}

// NewLoader builds a Loader; a nil opener reads from the local filesystem.
func NewLoader(openFile FileOpener) *Loader {
	if openFile == nil {
		openFile = func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		}
	}
	return &Loader{openFile: openFile}
}

// Load merges flag values with the contents of every file, in order. Each value may
// hold several comma-separated IMSIs. Blanks are dropped and duplicates removed.
func (loader *Loader) Load(values []string, filePaths []string) ([]string, error) {
	collected := Normalize(values)
	for _, filePath := range filePaths {
		trimmedPath := strings.TrimSpace(filePath)
		if len(trimmedPath) == 0 {
			continue
		}
		fileValues, readError := loader.readFile(trimmedPath)
		if readError != nil {
			return nil, readError
		}
		collected = append(collected, fileValues...)
	}

	normalized := Normalize(collected)
	if len(normalized) == 0 {
		return nil, ErrEmptyList
	}
	return normalized, nil
}

func (loader *Loader) readFile(filePath string) ([]string, error) {
	file, openError := loader.openFile(filePath)
	if openError != nil {
		return nil, fmt.Errorf(openFileErrorTemplateConstant, filePath, openError)
	}
	defer file.Close()

	values, parseError := Read(file)
	if parseError != nil {
		return nil, fmt.Errorf(parseFileErrorTemplateConstant, filePath, parseError)
	}
	return values, nil
}

// Read parses comma- and newline-delimited IMSIs without a header row.
func Read(reader io.Reader) ([]string, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true
	csvReader.ReuseRecord = true
	csvReader.LazyQuotes = true

	var values []string
	for {
		record, readError := csvReader.Read()
		if errors.Is(readError, io.EOF) {
			break
		}
		if readError != nil {
			return nil, readError
		}
		values = append(values, record...)
	}
	return Normalize(values), nil
}

// Normalize splits comma-joined entries, trims whitespace, and removes blanks and duplicates.
func Normalize(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		for _, candidate := range strings.Split(value, valueSeparatorConstant) {
			trimmed := strings.TrimSpace(strings.TrimPrefix(candidate, byteOrderMarkConstant))
			if len(trimmed) == 0 {
				continue
			}
			if _, duplicate := seen[trimmed]; duplicate {
				continue
			}
			seen[trimmed] = struct{}{}
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
