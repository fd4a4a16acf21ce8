// Package guard forces test mode when imported, so binaries under test never
// try to reach real infrastructure.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("MESSDESK_TEST_MODE") == "" {
			_ = os.Setenv("MESSDESK_TEST_MODE", "1")
		}
	})
}
