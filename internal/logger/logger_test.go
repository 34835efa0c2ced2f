package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLinesCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	ctx := WithRequestID(context.Background(), "req-1")
	InfoLog(ctx, "imported %d rows", 3)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "imported 3 rows", line["message"])
	assert.Equal(t, "req-1", line["request_id"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	})

	require.NoError(t, SetLevel("warn"))
	DebugLog(context.Background(), "hidden")
	InfoLog(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	WarnLog(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")

	assert.Error(t, SetLevel("loud"))
}
