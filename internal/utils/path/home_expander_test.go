package pathutils_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/simmigrate/internal/utils/path"
)

func TestHomeExpanderExpand(testInstance *testing.T) {
	homeDirectory := filepath.Join(string(filepath.Separator), "home", "operator")
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return homeDirectory, nil })

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "tilde_only", input: "~", expected: homeDirectory},
		{name: "tilde_prefix", input: "~/.simmigrate", expected: filepath.Join(homeDirectory, ".simmigrate")},
		{name: "absolute", input: "/etc/simmigrate", expected: "/etc/simmigrate"},
		{name: "relative", input: ".", expected: "."},
		{name: "other_user", input: "~other/config", expected: "~other/config"},
		{name: "empty", input: "", expected: ""},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, expander.Expand(testCase.input))
		})
	}
}

func TestHomeExpanderLeavesPathWhenHomeUnknown(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return "", errors.New("no home") })
	require.Equal(testInstance, "~/.simmigrate", expander.Expand("~/.simmigrate"))
}
