package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// response is CLIResponse with the payload left raw for typed decoding.
type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeResponse[T any](t *testing.T, out []byte) (response, T) {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(out, &resp), "output: %s", out)
	var data T
	if len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, &data))
	}
	return resp, data
}

func quietRoot(format string) *RootOptions {
	return &RootOptions{Format: format, LogWriter: io.Discard}
}

// execute runs a subcommand built from root options and returns its output.
func execute(t *testing.T, build func(*RootOptions) *cobra.Command, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := build(opts)
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
