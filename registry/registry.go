package registry

import (
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
)

// Registry is the immutable table of descriptions of one binary image. It
// is frozen at construction and safe for concurrent use without locking.
type Registry struct {
	descs   map[layout.Key]*layout.Description
	byName  map[string][]*layout.Description
	keys    []layout.Key
	exports []layout.Key
}

var _ layout.Image = (*Registry)(nil)

// New freezes descs into a registry. exports lists the keys that cross the
// module boundary; each must be present in descs.
func New(descs []*layout.Description, exports []layout.Key) (*Registry, error) {
	r := &Registry{
		descs:  make(map[layout.Key]*layout.Description, len(descs)),
		byName: make(map[string][]*layout.Description),
		keys:   make([]layout.Key, 0, len(descs)),
	}

	for _, d := range descs {
		if d == nil {
			continue
		}
		if _, dup := r.descs[d.Key]; dup {
			return nil, errors.New(errors.PhaseRegistry, errors.KindDuplicate).
				Path(d.Key.String()).
				Detail("duplicate description").
				Build()
		}
		r.descs[d.Key] = d
		r.keys = append(r.keys, d.Key)
		r.byName[d.Key.Name] = append(r.byName[d.Key.Name], d)
	}

	seen := make(map[layout.Key]bool, len(exports))
	for _, k := range exports {
		if _, ok := r.descs[k]; !ok {
			return nil, errors.NotFound(errors.PhaseRegistry, "exported item", k.String())
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		r.exports = append(r.exports, k)
	}

	for name, list := range r.byName {
		sortByVersion(list)
		r.byName[name] = list
	}
	return r, nil
}

// Lookup returns the description with exactly the given key.
func (r *Registry) Lookup(key layout.Key) (*layout.Description, bool) {
	d, ok := r.descs[key]
	return d, ok
}

// Resolve finds the description for name that best serves version.
//
// An exact key match wins. Otherwise, when version parses as semver, the
// highest registered version satisfying the caret range of version is
// returned (same major, or same minor below 1.0). An empty version selects
// the highest registered version.
func (r *Registry) Resolve(name, version string) (*layout.Description, error) {
	if d, ok := r.descs[layout.Key{Name: name, Version: version}]; ok {
		return d, nil
	}

	list := r.byName[name]
	if len(list) == 0 {
		return nil, errors.NotFound(errors.PhaseRegistry, "type", name)
	}
	if version == "" {
		return list[len(list)-1], nil
	}

	want, err := semver.NewVersion(version)
	if err != nil {
		return nil, errors.NotFound(errors.PhaseRegistry, "type", layout.Key{Name: name, Version: version}.String())
	}
	c, err := semver.NewConstraint("^" + want.String())
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRegistry, errors.KindInvalidData, err, "version constraint")
	}

	for i := len(list) - 1; i >= 0; i-- {
		v, err := semver.NewVersion(list[i].Key.Version)
		if err != nil {
			continue
		}
		if c.Check(v) {
			return list[i], nil
		}
	}
	return nil, errors.New(errors.PhaseRegistry, errors.KindIncompatibleVersion).
		Path(name).
		Expected(version).
		Found(versionsOf(list)).
		Detail("no semver-compatible version registered").
		Build()
}

// Keys returns every registered key in registration order.
func (r *Registry) Keys() []layout.Key {
	return append([]layout.Key(nil), r.keys...)
}

// Exports returns the keys exported across the module boundary.
func (r *Registry) Exports() []layout.Key {
	return append([]layout.Key(nil), r.exports...)
}

// Len returns the number of descriptions.
func (r *Registry) Len() int {
	return len(r.descs)
}

func versionsOf(list []*layout.Description) string {
	s := ""
	for i, d := range list {
		if i > 0 {
			s += ","
		}
		s += d.Key.Version
	}
	return s
}

// sortByVersion orders descriptions by ascending semver; unparsable
// versions sort first, by string.
func sortByVersion(list []*layout.Description) {
	sort.SliceStable(list, func(i, j int) bool {
		vi, ei := semver.NewVersion(list[i].Key.Version)
		vj, ej := semver.NewVersion(list[j].Key.Version)
		switch {
		case ei != nil && ej != nil:
			return list[i].Key.Version < list[j].Key.Version
		case ei != nil:
			return true
		case ej != nil:
			return false
		default:
			return vi.LessThan(vj)
		}
	})
}
