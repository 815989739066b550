package imsilist_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/simmigrate/internal/imsilist"
)

func TestNormalize(testInstance *testing.T) {
	testCases := []struct {
		name     string
		values   []string
		expected []string
	}{
		{name: "comma_joined", values: []string{"A, B,C"}, expected: []string{"A", "B", "C"}},
		{name: "repeated_flags", values: []string{"A", "B", "A"}, expected: []string{"A", "B"}},
		{name: "blanks_dropped", values: []string{" ", ",,", "A,"}, expected: []string{"A"}},
		{name: "byte_order_mark", values: []string{"\uFEFFA"}, expected: []string{"A"}},
		{name: "nothing", values: nil, expected: []string{}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, imsilist.Normalize(testCase.values))
		})
	}
}

func TestRead(testInstance *testing.T) {
	values, readError := imsilist.Read(strings.NewReader("295050000000001,295050000000002\n\n295050000000003\r\n295050000000001, 295050000000004\n"))
	require.NoError(testInstance, readError)
	require.Equal(testInstance, []string{"295050000000001", "295050000000002", "295050000000003", "295050000000004"}, values)
}

func TestLoaderLoad(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	listPath := filepath.Join(temporaryDirectory, "imsis.csv")
	require.NoError(testInstance, os.WriteFile(listPath, []byte("B\nC,D\n"), 0o600))

	loader := imsilist.NewLoader(nil)

	testCases := []struct {
		name        string
		values      []string
		files       []string
		expected    []string
		expectError error
	}{
		{name: "flags_then_file", values: []string{"A,B"}, files: []string{listPath}, expected: []string{"A", "B", "C", "D"}},
		{name: "file_only", files: []string{listPath, " "}, expected: []string{"B", "C", "D"}},
		{name: "empty", values: []string{" , "}, expectError: imsilist.ErrEmptyList},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			values, loadError := loader.Load(testCase.values, testCase.files)
			if testCase.expectError != nil {
				require.ErrorIs(testInstance, loadError, testCase.expectError)
				return
			}
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expected, values)
		})
	}
}

func TestLoaderReportsUnreadableFile(testInstance *testing.T) {
	openFailure := errors.New("permission denied")
	loader := imsilist.NewLoader(func(string) (io.ReadCloser, error) {
		return nil, openFailure
	})

	_, loadError := loader.Load([]string{"A"}, []string{"/secrets/imsis.csv"})
	require.ErrorIs(testInstance, loadError, openFailure)
	require.Contains(testInstance, loadError.Error(), "/secrets/imsis.csv")
}
