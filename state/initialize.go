package state

import (
	"time"

	"go.uber.org/zap"

	"nightcss/night"
)

// newLocalEnv creates a new LocalEnv instance with default values. Loader is
// usable before configuration is read, it will be replaced once options are
// known.
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start:  time.Now(),
		Log:    zap.NewNop(),
		Loader: night.NewLoader(night.Options{}),
	}
}
