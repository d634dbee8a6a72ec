package acquisition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pair(v, i uint16) RawSamplePair {
	return RawSamplePair{Voltage: v, Current: i}
}

func TestNewDoubleBuffer_Capacity(t *testing.T) {
	for _, c := range []int{-2, 0, 1, 3, 63} {
		_, err := NewDoubleBuffer(c)
		assert.True(t, errors.Is(err, ErrCapacity), "capacity %d", c)
	}

	b, err := NewDoubleBuffer(8)
	require.NoError(t, err)
	assert.Equal(t, 8, b.Cap())
	assert.Equal(t, 4, b.HalfLen())
}

func TestDoubleBuffer_HalfSignals(t *testing.T) {
	b, err := NewDoubleBuffer(4)
	require.NoError(t, err)

	b.Push(pair(1, 10))
	assert.False(t, b.Filled(First))
	assert.False(t, b.Filled(Second))

	b.Push(pair(2, 20))
	assert.True(t, b.Filled(First))
	assert.False(t, b.Filled(Second))
	assert.Equal(t, []RawSamplePair{pair(1, 10), pair(2, 20)}, b.Samples(First))

	b.Clear(First)
	assert.False(t, b.Filled(First))

	b.PushAll([]RawSamplePair{pair(3, 30), pair(4, 40)})
	assert.True(t, b.Filled(Second))
	assert.Equal(t, []RawSamplePair{pair(3, 30), pair(4, 40)}, b.Samples(Second))
	assert.Equal(t, uint64(4), b.Pushed())
	assert.Equal(t, uint64(0), b.Lapped())
}

func TestDoubleBuffer_Wraps(t *testing.T) {
	b, err := NewDoubleBuffer(4)
	require.NoError(t, err)

	b.PushAll([]RawSamplePair{pair(1, 1), pair(2, 2), pair(3, 3), pair(4, 4)})
	b.Clear(First)
	b.Clear(Second)

	b.PushAll([]RawSamplePair{pair(5, 5), pair(6, 6)})
	assert.True(t, b.Filled(First))
	assert.False(t, b.Filled(Second))
	assert.Equal(t, []RawSamplePair{pair(5, 5), pair(6, 6)}, b.Samples(First))
	assert.Equal(t, []RawSamplePair{pair(3, 3), pair(4, 4)}, b.Samples(Second))
}

func TestDoubleBuffer_Lapped(t *testing.T) {
	b, err := NewDoubleBuffer(2)
	require.NoError(t, err)

	// Two full periods without clearing anything.
	b.PushAll([]RawSamplePair{pair(1, 1), pair(2, 2), pair(3, 3), pair(4, 4)})
	assert.Equal(t, uint64(2), b.Lapped())
	assert.True(t, b.Filled(First))
	assert.True(t, b.Filled(Second))
}

func TestPollHalfFilled(t *testing.T) {
	b, err := NewDoubleBuffer(4)
	require.NoError(t, err)

	_, ok := PollHalfFilled(b)
	assert.False(t, ok)

	b.PushAll([]RawSamplePair{pair(1, 1), pair(2, 2), pair(3, 3), pair(4, 4)})
	h, ok := PollHalfFilled(b)
	assert.True(t, ok)
	assert.Equal(t, First, h)

	b.Clear(First)
	h, ok = PollHalfFilled(b)
	assert.True(t, ok)
	assert.Equal(t, Second, h)
}

func TestHalf(t *testing.T) {
	assert.Equal(t, Second, First.Opposite())
	assert.Equal(t, First, Second.Opposite())
	assert.Equal(t, "first", First.String())
	assert.Equal(t, "second", Second.String())
	assert.Equal(t, "half(7)", Half(7).String())
}
