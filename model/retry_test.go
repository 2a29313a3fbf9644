package model

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolagent/core"
)

func fastRetry(o *RetryOptions) {
	o.InitialInterval = time.Millisecond
	o.MaxInterval = 2 * time.Millisecond
}

func TestRetryModel_RecoversFromTransientErrors(t *testing.T) {
	var calls atomic.Int32
	inner := NewScriptedModelFunc(func(Request) (core.Content, error) {
		if calls.Add(1) < 3 {
			return core.Content{}, errors.New("503")
		}
		return core.NewAssistantContent("ok"), nil
	})

	m := WithRetry(inner, fastRetry)
	resp, err := Collect(context.Background(), m, Request{Contents: core.Conversation{core.NewUserContent("q")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content.Text())
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, "scripted", m.Info().Name)
}

func TestRetryModel_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("down")
	inner := NewScriptedModelFunc(func(Request) (core.Content, error) {
		calls.Add(1)
		return core.Content{}, boom
	})

	m := WithRetry(inner, fastRetry, func(o *RetryOptions) { o.MaxRetries = 1 })
	_, err := Collect(context.Background(), m, Request{Contents: core.Conversation{core.NewUserContent("q")}}, nil)
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 2, calls.Load())
}

func TestRetryModel_NonRetryable(t *testing.T) {
	var calls atomic.Int32
	bad := errors.New("invalid request")
	inner := NewScriptedModelFunc(func(Request) (core.Content, error) {
		calls.Add(1)
		return core.Content{}, bad
	})

	m := WithRetry(inner, fastRetry, func(o *RetryOptions) {
		o.ShouldRetry = func(err error) bool { return !errors.Is(err, bad) }
	})
	_, err := Collect(context.Background(), m, Request{Contents: core.Conversation{core.NewUserContent("q")}}, nil)
	assert.ErrorIs(t, err, bad)
	assert.EqualValues(t, 1, calls.Load())
}
