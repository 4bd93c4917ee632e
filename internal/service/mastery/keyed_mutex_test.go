package mastery

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	t.Parallel()

	t.Run("serialises the same key", func(t *testing.T) {
		t.Parallel()
		locks := newKeyedMutex()

		counter := 0
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := locks.Lock("es/L1")
				defer unlock()
				counter++
			}()
		}
		wg.Wait()

		assert.Equal(t, 50, counter)
		assert.Zero(t, locks.size(), "released keys are dropped")
	})

	t.Run("different keys do not block", func(t *testing.T) {
		t.Parallel()
		locks := newKeyedMutex()

		unlockA := locks.Lock("es/L1")
		unlockB := locks.Lock("es/L2")
		assert.Equal(t, 2, locks.size())

		unlockA()
		unlockB()
		assert.Zero(t, locks.size())
	})
}
