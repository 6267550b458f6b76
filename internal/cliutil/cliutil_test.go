package cliutil_test

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uploadkit/uploader/internal/cliutil"
	"github.com/uploadkit/uploader/internal/upload"
)

func newCommand(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().String("template", "", "")
	cmd.Flags().String("format", "json", "")
	cmd.Flags().String("url", "", "")
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	return cmd, out
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)

	cmd, _ := newCommand(t)
	t.Setenv("UPLOADER_URL", "http://env")
	assert.Equal(t, "http://env", cliutil.GetString(cmd, "url"))

	viper.Set("url", "http://config")
	assert.Equal(t, "http://config", cliutil.GetString(cmd, "url"))

	cmd, _ = newCommand(t, "--url", "http://flag")
	assert.Equal(t, "http://flag", cliutil.GetString(cmd, "url"))
}

func TestGetString_ConfigOverridesFlagDefault(t *testing.T) {
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().String("log-level", "info", "")
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	t.Setenv("UPLOADER_LOG_LEVEL", "warn")
	assert.Equal(t, "info", cliutil.GetString(cmd, "log-level"))

	viper.Set("log-level", "debug")
	assert.Equal(t, "debug", cliutil.GetString(cmd, "log-level"))

	require.NoError(t, cmd.Flags().Set("log-level", "error"))
	assert.Equal(t, "error", cliutil.GetString(cmd, "log-level"))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "UPLOADER_ACCESS_TOKEN", cliutil.EnvName("access-token"))
}

func TestParseHeaders(t *testing.T) {
	headers, err := cliutil.ParseHeaders([]string{
		"authorization: Bearer abc",
		"X-Time: 12:30",
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"X-Time":        "12:30",
	}, headers)

	_, err = cliutil.ParseHeaders([]string{"no-colon"})
	assert.Error(t, err)
}

func TestHandleOutput_JSONBody(t *testing.T) {
	cmd, out := newCommand(t)
	resp := &upload.Response{
		Status:     200,
		StatusText: "OK",
		Header:     map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`{"slug":"abc"}`),
	}

	require.NoError(t, cliutil.HandleOutput(cmd, cliutil.ResponseResult(resp)))

	assert.JSONEq(t, `{
		"status": 200,
		"status_text": "OK",
		"headers": {"Content-Type": "application/json"},
		"body": {"slug": "abc"}
	}`, out.String())
}

func TestHandleOutput_Template(t *testing.T) {
	cmd, out := newCommand(t, "--template", "{{.status}} {{.body}}")
	resp := &upload.Response{Status: 413, Body: []byte("too large")}

	require.NoError(t, cliutil.HandleOutput(cmd, cliutil.ResponseResult(resp)))

	assert.Equal(t, "413 too large\n", out.String())
}

func TestHandleOutput_YAML(t *testing.T) {
	cmd, out := newCommand(t, "--format", "yaml")

	require.NoError(t, cliutil.HandleOutput(cmd, map[string]interface{}{"id": "x"}))

	assert.Equal(t, "id: x\n\n", out.String())
}
