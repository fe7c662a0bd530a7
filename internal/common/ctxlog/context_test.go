package ctxlog

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultLogger = logrus.WithField("foo", "bar")

func TestNew(t *testing.T) {
	ctx := New(context.Background(), defaultLogger)
	require.Equal(t, defaultLogger, ctx.Log)
	require.Equal(t, context.Background(), ctx.Context)
}

func TestWithLogField(t *testing.T) {
	ctx := WithLogField(Background(), "fish", "chips")
	assert.Equal(t, logrus.Fields{"fish": "chips"}, ctx.Log.Data)
}

func TestWithLogFields(t *testing.T) {
	ctx := WithLogFields(Background(), logrus.Fields{"fish": "chips", "salt": "pepper"})
	assert.Equal(t, logrus.Fields{"fish": "chips", "salt": "pepper"}, ctx.Log.Data)
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(Background(), 100*time.Millisecond)
	defer cancel()
	testDeadline(t, ctx)
}

func TestWithCancel(t *testing.T) {
	ctx, cancel := WithCancel(WithLogField(Background(), "fish", "chips"))
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
	assert.Equal(t, logrus.Fields{"fish": "chips"}, ctx.Log.Data)
}

func TestErrGroup(t *testing.T) {
	parent := WithLogField(Background(), "fish", "chips")
	g, ctx := ErrGroup(parent)
	called := false
	g.Go(func() error {
		called = true
		return errors.New("boom")
	})
	err := g.Wait()
	assert.EqualError(t, err, "boom")
	assert.True(t, called)
	assert.Equal(t, parent.Log, ctx.Log)

	// the group context is cancelled once a member fails
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("group context was not cancelled")
	}
}

func testDeadline(t *testing.T, c *Context) {
	t.Helper()
	d := 2 * time.Second
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		t.Fatalf("context not timed out after %v", d)
	case <-c.Done():
	}
	assert.ErrorIs(t, c.Err(), context.DeadlineExceeded)
}
