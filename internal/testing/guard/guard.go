// Package guard flips binaries into test mode when imported from tests.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("AGENCYOPS_TEST_MODE") == "" {
			_ = os.Setenv("AGENCYOPS_TEST_MODE", "1")
		}
	})
}
