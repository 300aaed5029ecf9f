package loader

import (
	"plugin"

	"github.com/wippyai/stable-abi/errors"
)

// Symbol is the name a plugin exports its module constructor under. The
// symbol must have type func() loader.Module.
const Symbol = "StableABIModule"

// OpenPlugin opens a Go plugin and returns the module it exports.
func OpenPlugin(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindPlugin, err, "cannot open "+path)
	}
	sym, err := p.Lookup(Symbol)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, Symbol+" in "+path)
	}
	ctor, ok := sym.(func() Module)
	if !ok {
		return nil, errors.New(errors.PhaseLoad, errors.KindPlugin).
			Path(path, Symbol).
			Expected("func() loader.Module").
			Detail("unexpected symbol type %T", sym).
			Build()
	}
	return construct(path, ctor)
}

func construct(path string, ctor func() Module) (mod Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			mod, err = nil, errors.Panic(errors.PhaseLoad, []string{path, Symbol}, r)
		}
	}()
	mod = ctor()
	if mod == nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindPlugin).
			Path(path, Symbol).
			Detail("constructor returned nil").
			Build()
	}
	return mod, nil
}
