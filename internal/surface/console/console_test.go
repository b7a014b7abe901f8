package console

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boothqr/internal/session"
	logx "boothqr/pkg/logx"
)

func TestLifecycleIsLogged(t *testing.T) {
	var buf bytes.Buffer
	s := New(logx.NewWriter(&buf, "trace"))
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, session.View{ID: 3, Filename: "a.jpg", Remaining: 30,
		Geometry: session.Geometry{Offset: session.Offset{X: 60, Y: 60}}}))
	require.NoError(t, s.Tick(ctx, 3, 29))
	require.NoError(t, s.Close(ctx, 3, session.ReasonClick))

	out := buf.String()
	assert.Contains(t, out, "notification shown")
	assert.Contains(t, out, `"file":"a.jpg"`)
	assert.Contains(t, out, `"x":60`)
	assert.Contains(t, out, "closing in")
	assert.Contains(t, out, `"reason":"click"`)
}

func TestTickHiddenAtInfo(t *testing.T) {
	var buf bytes.Buffer
	s := New(logx.NewWriter(&buf, "info"))
	require.NoError(t, s.Tick(context.Background(), 1, 5))
	assert.Empty(t, buf.String())
}
