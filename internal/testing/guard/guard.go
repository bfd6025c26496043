package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PELITA_TEST_MODE") == "" {
			_ = os.Setenv("PELITA_TEST_MODE", "1")
		}
	})
}
