package emitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_DeliversToAllSubscribers(t *testing.T) {
	e := New[string]()

	var first, second []string
	e.Subscribe(func(v string) { first = append(first, v) })
	e.Subscribe(func(v string) { second = append(second, v) })

	e.Emit("hello")

	assert.Equal(t, []string{"hello"}, first)
	assert.Equal(t, []string{"hello"}, second)
}

func TestEmitter_CancelStopsDelivery(t *testing.T) {
	e := New[int]()

	var got []int
	cancel := e.Subscribe(func(v int) { got = append(got, v) })

	e.Emit(1)
	cancel()
	e.Emit(2)
	cancel() // idempotent

	assert.Equal(t, []int{1}, got)
}

func TestEmitter_NilCallbackIsNoOp(t *testing.T) {
	e := New[int]()

	cancel := e.Subscribe(nil)
	require.NotNil(t, cancel)
	cancel()

	// Must not panic.
	e.Emit(1)
}

func TestEmitter_CloseIsTerminal(t *testing.T) {
	e := New[int]()

	var got []int
	e.Subscribe(func(v int) { got = append(got, v) })

	e.Close()
	e.Close() // safe to repeat

	e.Emit(1)
	assert.Empty(t, got)

	// Subscriptions after Close never fire.
	e.Subscribe(func(v int) { got = append(got, v) })
	e.Emit(2)
	assert.Empty(t, got)
}
