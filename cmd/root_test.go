package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"serve"},
		{"worker"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"verify"},
		{"jobs", "dead"},
		{"jobs", "requeue"},
		{"users", "promote"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestArgsValidation(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "VerifyWithoutID", args: []string{"verify"}},
		{name: "RequeueTooManyArgs", args: []string{"jobs", "requeue", "1", "2"}},
		{name: "PromoteWithoutUser", args: []string{"users", "promote"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(append(tc.args, "--config", t.TempDir()))

			require.Error(t, root.Execute())
		})
	}
}

func TestCapitalize(t *testing.T) {
	require.Equal(t, "Cannot connect", capitalize("cannot connect"))
	require.Equal(t, "", capitalize(""))
}
