package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResource_InvalidCapacity_Panics(t *testing.T) {
	env := NewEnvironment()
	assert.Panics(t, func() { NewResource(env, "r", 0) })
	assert.Panics(t, func() { NewResource(env, "r", -3) })
}

// TestResource_AdmissionFIFO verifies that with capacity C and N>C requests
// issued in order, the first C are admitted immediately and the rest in strict
// request order as slots free up.
func TestResource_AdmissionFIFO(t *testing.T) {
	const capacity, n = 2, 6
	env := NewEnvironment()
	defer env.Close()
	res := NewResource(env, "room", capacity)
	var admitted []int
	admittedAt := map[int]int64{}

	for i := 0; i < n; i++ {
		i := i
		env.Process("user", func(p *Process) error {
			req := res.Request()
			defer req.Release()
			if _, err := p.Wait(req.Event); err != nil {
				return err
			}
			admitted = append(admitted, i)
			admittedAt[i] = env.Now()
			return p.Sleep(int64(10 + i))
		})
	}

	require.NoError(t, env.Run(1000))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, admitted)
	assert.Equal(t, int64(0), admittedAt[0])
	assert.Equal(t, int64(0), admittedAt[1])
	// User 0 leaves at 10, so user 2 enters then; user 1 leaves at 11 for user 3.
	assert.Equal(t, int64(10), admittedAt[2])
	assert.Equal(t, int64(11), admittedAt[3])
	assert.Equal(t, 0, res.ActiveCount())
	assert.Equal(t, 0, res.QueueLength())
}

func TestResource_QueueAndActiveCounts(t *testing.T) {
	env := NewEnvironment()
	res := NewResource(env, "room", 1)
	r1 := res.Request()
	r2 := res.Request()
	r3 := res.Request()

	assert.Equal(t, 1, res.ActiveCount())
	assert.Equal(t, 2, res.QueueLength())
	assert.True(t, r1.Admitted())
	assert.False(t, r2.Admitted())

	// Withdrawing a queued ticket keeps the others in order.
	r2.Release()
	assert.Equal(t, 1, res.QueueLength())

	r1.Release()
	r1.Release()
	assert.True(t, r3.Admitted())
	assert.Equal(t, 0, res.QueueLength())
}

func TestResource_Unbounded_AdmitsEveryone(t *testing.T) {
	env := NewEnvironment()
	res := NewResource(env, "hall", Unbounded)
	for i := 0; i < 100; i++ {
		res.Request()
	}
	assert.Equal(t, 100, res.ActiveCount())
	assert.Equal(t, 0, res.QueueLength())
}
