package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CBS_TEST_MODE") == "" {
			_ = os.Setenv("CBS_TEST_MODE", "1")
		}
	})
}
