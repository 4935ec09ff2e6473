package lg

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{ServiceName: "nexcheck", Format: "json", Output: &buf})

	logger.Info("pool checked", String("pool", "tank"))

	out := buf.String()
	assert.Contains(t, out, `"msg":"pool checked"`)
	assert.Contains(t, out, `"pool":"tank"`)
	assert.Contains(t, out, `"service":"nexcheck"`)
}

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	New(&Config{Format: "console", Output: &buf}).Debug("hidden")
	assert.NotContains(t, buf.String(), "hidden")

	buf.Reset()
	New(&Config{Debug: true, Format: "console", Output: &buf}).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Format: "json", Output: &buf}).With(String("device", "c0t1d0"))

	logger.Warn("slow disk")

	assert.Contains(t, buf.String(), `"device":"c0t1d0"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestAttachFromContext(t *testing.T) {
	ctx := Attach(context.Background(), Discard)
	assert.Equal(t, Discard, FromContext(ctx))

	_, ok := FromContext(context.Background()).(defaultLogger)
	assert.True(t, ok, "expected fallback logger when none is attached")
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, "", flatten())
	out := flatten(String("user", "admin"), Int("attempts", 3))
	assert.Contains(t, out, "admin")
	assert.Contains(t, out, "3")
}
