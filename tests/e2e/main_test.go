package e2e_test

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

var (
	testServices        *TestServices
	globalTestContainer sync.Once
	srvcLock            sync.Mutex
)

// TestServices holds the dependencies shared by every e2e test. The HTTP fakes are
// cheap and created per test; only the Kafka container is shared.
type TestServices struct {
	Kafka *mockKafkaServer
	refs  atomic.Int64
}

func GetTestServices(t *testing.T) *TestServices {
	t.Helper()
	srvcLock.Lock()
	globalTestContainer.Do(func() {
		logger := zerolog.New(os.Stdout).Level(zerolog.WarnLevel)
		zerolog.DefaultContextLogger = &logger

		testServices = &TestServices{}
		var wg sync.WaitGroup
		waitForSetup(t, &wg, func(t *testing.T) {
			testServices.Kafka = setupMockKafkaServer(t)
		})
		wg.Wait()
	})
	srvcLock.Unlock()
	testServices.TeardownIfLastTest(t)
	return testServices
}

func (tc *TestServices) TeardownIfLastTest(t *testing.T) {
	tc.refs.Add(1)
	t.Cleanup(func() {
		refs := tc.refs.Add(-1)
		if refs != 0 {
			return
		}
		if err := tc.Kafka.Close(); err != nil {
			t.Logf("Error closing Kafka: %v", err)
		}
		// reset the onceSetup to allow the next test to run if this one is closed
		globalTestContainer = sync.Once{}
	})
}

func waitForSetup(t *testing.T, wg *sync.WaitGroup, setup func(*testing.T)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		setup(t)
	}()
}
