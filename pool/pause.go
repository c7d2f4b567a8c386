package pool

import (
	"sync"

	"lendcore/native/common"
)

// ModulePause is a fine-grained, orthogonal kill switch sitting alongside
// poolstatus's six-code state machine: an admin can pause a single
// subsystem (e.g. "emissions" or "auctions") without freezing borrowing and
// repayment pool-wide. Grounded on the teacher's native/common.PauseView,
// used there as the sole pause mechanism; here it complements poolstatus
// rather than replacing it.
type ModulePause struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewModulePause returns a pause set with every module initially active.
func NewModulePause() *ModulePause {
	return &ModulePause{paused: make(map[string]bool)}
}

func (p *ModulePause) IsPaused(module string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}

// SetPaused toggles a module's pause flag.
func (p *ModulePause) SetPaused(module string, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if paused {
		p.paused[module] = true
	} else {
		delete(p.paused, module)
	}
}

var _ common.PauseView = (*ModulePause)(nil)
