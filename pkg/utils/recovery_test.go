package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/pkg/logger"
)

func init() {
	logger.Log = zap.NewNop()
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	recovered := make(chan interface{}, 1)

	SafeGo(func() {
		panic("boom")
	}, func(r interface{}, stack []byte) {
		assert.NotEmpty(t, stack)
		recovered <- r
	})

	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		t.Fatal("panic handler was not invoked")
	}
}

func TestSafeGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	SafeGo(func() { close(done) }, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("function did not run")
	}
}

func TestRecoverWithLog_SwallowsPanic(t *testing.T) {
	require.NotPanics(t, func() {
		defer RecoverWithLog(context.Background(), "test operation")
		panic("boom")
	})
}
