package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("MARTPOS_TEST_MODE") == "" {
			_ = os.Setenv("MARTPOS_TEST_MODE", "1")
		}
	})
}
