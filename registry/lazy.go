package registry

import (
	"fmt"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/once"
)

// Lazy builds a registry on first use. A failing constructor poisons it:
// Get keeps returning the failure until Force succeeds.
type Lazy struct {
	build func() (*Registry, error)
	reg   *Registry
	err   error
	once  once.Once
}

// NewLazy wraps a registry constructor.
func NewLazy(build func() (*Registry, error)) *Lazy {
	return &Lazy{build: build}
}

type buildFailure struct{ err error }

func (l *Lazy) init() {
	reg, err := l.build()
	if err != nil {
		l.err = err
		panic(buildFailure{err})
	}
	l.reg = reg
	l.err = nil
}

// Get returns the registry, building it if needed.
func (l *Lazy) Get() (reg *Registry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = l.failure(r)
		}
	}()
	l.once.Do(l.init)
	return l.reg, nil
}

// Force builds the registry even if a previous attempt failed.
func (l *Lazy) Force() (reg *Registry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = l.failure(r)
		}
	}()
	l.once.DoForce(func(once.State) { l.init() })
	return l.reg, nil
}

// State reports whether the registry has been built or poisoned.
func (l *Lazy) State() once.State {
	return l.once.State()
}

func (l *Lazy) failure(r any) error {
	switch v := r.(type) {
	case buildFailure:
		return errors.Wrap(errors.PhaseRegistry, errors.KindInvalidData, v.err, "build registry")
	case error:
		if v == once.ErrPoisoned {
			return errors.Wrap(errors.PhaseRegistry, errors.KindInvalidData, l.err, "registry poisoned by a failed build")
		}
		return errors.Panic(errors.PhaseRegistry, nil, v)
	default:
		return errors.Panic(errors.PhaseRegistry, nil, fmt.Sprint(v))
	}
}
