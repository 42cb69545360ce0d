package orchestrator

import "sync"

// InstallLock is the process-wide serial install lock spec.md §4.9
// "Install interleaving" and §5 "Shared-resource policy" require: all
// installer invocations triggered by `--install` interleaving are totally
// ordered through this capacity-1 lock.
type InstallLock struct {
	mu sync.Mutex
}

func (l *InstallLock) Acquire() { l.mu.Lock() }
func (l *InstallLock) Release() { l.mu.Unlock() }
