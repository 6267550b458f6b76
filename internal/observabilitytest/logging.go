// Testability for the observability package.
package observabilitytest

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uploadkit/uploader/internal/observability"
)

// NewTestLogger returns a logger that's captured by the testing framework.
//
// Messages from this logger are displayed in the test output on failure
// which can be helpful for debugging.
func NewTestLogger(t *testing.T) *observability.CoreLogger {
	t.Helper()
	return observability.NewCoreLogger(
		slog.New(slog.NewJSONHandler(t.Output(), &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})),
		nil,
	)
}

// NewRecordingTestLogger is like NewTestLogger but also returns a buffer
// that captures log messages at INFO level and above.
func NewRecordingTestLogger(t *testing.T) (
	*observability.CoreLogger,
	*bytes.Buffer,
) {
	t.Helper()

	recordedLogs := &bytes.Buffer{}
	writer := io.MultiWriter(t.Output(), recordedLogs)

	return observability.NewCoreLogger(
		slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{})),
		nil,
	), recordedLogs
}

// ExtractLogs extracts structured logs from the [NewRecordingTestLogger]
// buffer, dropping the "time" key.
//
// Records will always contain the "level" and "msg" keys, plus custom
// slog attrs.
func ExtractLogs(t *testing.T, buf *bytes.Buffer) []map[string]string {
	t.Helper()
	records := make([]map[string]string, 0)

	// The JSONHandler encodes newlines as \n, so the only actual newlines
	// are used to separate records.
	for line := range bytes.Lines(buf.Bytes()) {
		var record map[string]any
		require.NoError(t, json.Unmarshal(line, &record))

		delete(record, "time")

		stringRecord := make(map[string]string, len(record))
		for key, value := range record {
			if s, ok := value.(string); ok {
				stringRecord[key] = s
			} else {
				encoded, err := json.Marshal(value)
				require.NoError(t, err)
				stringRecord[key] = string(encoded)
			}
		}

		records = append(records, stringRecord)
	}

	return records
}
