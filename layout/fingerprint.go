package layout

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/xxh3"
)

var (
	detMode     cbor.EncMode
	detModeErr  error
	detModeOnce sync.Once
)

func encMode() (cbor.EncMode, error) {
	detModeOnce.Do(func() {
		detMode, detModeErr = cbor.CoreDetEncOptions().EncMode()
	})
	return detMode, detModeErr
}

type paramShape struct {
	_         struct{} `cbor:",toarray"`
	Name      string
	Type      string
	Lifetimes []int
}

type sigShape struct {
	_      struct{} `cbor:",toarray"`
	Params []paramShape
	Return *paramShape
}

type fieldShape struct {
	_         struct{} `cbor:",toarray"`
	Name      string
	Type      string
	Offset    uint32
	Lifetimes []int
	Func      *sigShape
	Access    uint8
}

type variantShape struct {
	_      struct{} `cbor:",toarray"`
	Name   string
	Disc   int64
	Fields []fieldShape
}

type nodeShape struct {
	_         struct{} `cbor:",toarray"`
	Key       string
	Missing   bool
	Kind      uint8
	Prim      uint8
	Size      uint32
	Align     uint32
	Repr      [3]uint32
	Lifetimes int
	Params    []string
	Fields    []fieldShape
	Variants  []variantShape
	Disc      uint8
	Open      []int64
	Caps      uint8
	IsOpen    bool
	Prefix    []uint32
	Func      *sigShape
	Tags      [][3]string
}

func lifetimeInts(ls []LifetimeIndex) []int {
	out := make([]int, len(ls))
	for i, l := range ls {
		if idx, ok := l.Index(); ok {
			out[i] = idx
		} else {
			out[i] = -1
		}
	}
	return out
}

func paramToShape(p Param) paramShape {
	return paramShape{Name: p.Name, Type: p.Type.String(), Lifetimes: lifetimeInts(p.Lifetimes)}
}

func sigToShape(s *Signature) *sigShape {
	if s == nil {
		return nil
	}
	out := &sigShape{Params: make([]paramShape, len(s.Params))}
	for i, p := range s.Params {
		out.Params[i] = paramToShape(p)
	}
	if s.Return != nil {
		r := paramToShape(*s.Return)
		out.Return = &r
	}
	return out
}

func fieldsToShape(fs []Field) []fieldShape {
	out := make([]fieldShape, len(fs))
	for i, f := range fs {
		out[i] = fieldShape{
			Name:      f.Name,
			Type:      f.Type.String(),
			Offset:    f.Offset,
			Lifetimes: lifetimeInts(f.Lifetimes),
			Func:      sigToShape(f.Func),
			Access:    uint8(f.Access),
		}
	}
	return out
}

func toShape(d *Description) nodeShape {
	n := nodeShape{
		Key:       d.Key.String(),
		Kind:      uint8(d.Kind),
		Prim:      uint8(d.Prim),
		Size:      d.Size,
		Align:     d.Align,
		Repr:      [3]uint32{uint32(d.Repr.Kind), uint32(d.Repr.Disc), d.Repr.Packed},
		Lifetimes: d.Lifetimes,
		Fields:    fieldsToShape(d.Fields),
		Func:      sigToShape(d.Func),
	}
	for _, p := range d.Params {
		n.Params = append(n.Params, p.String())
	}
	if d.Enum != nil {
		n.Disc = uint8(d.Enum.Disc)
		for _, v := range d.Enum.Variants {
			n.Variants = append(n.Variants, variantShape{
				Name:   v.Name,
				Disc:   v.Discriminant,
				Fields: fieldsToShape(v.Fields),
			})
		}
		if d.Enum.Open != nil {
			n.IsOpen = true
			n.Open = d.Enum.Open.Known
			n.Caps = uint8(d.Enum.Open.Caps)
		}
	}
	if d.Prefix != nil {
		n.Prefix = []uint32{uint32(d.Prefix.FieldsAtPublish), d.Prefix.Extent, d.Prefix.ExtentAlign, uint32(d.Prefix.Missing)}
	}
	for _, t := range d.Tags {
		n.Tags = append(n.Tags, [3]string{t.Key, t.Value, t.Strictness.String()})
	}
	return n
}

// References returns every key a description refers to, in declaration order.
func References(d *Description) []Key {
	var refs []Key
	refs = append(refs, d.Params...)
	addSig := func(s *Signature) {
		if s == nil {
			return
		}
		for _, p := range s.Params {
			refs = append(refs, p.Type)
		}
		if s.Return != nil {
			refs = append(refs, s.Return.Type)
		}
	}
	addFields := func(fs []Field) {
		for _, f := range fs {
			refs = append(refs, f.Type)
			addSig(f.Func)
		}
	}
	addFields(d.Fields)
	if d.Enum != nil {
		for _, v := range d.Enum.Variants {
			addFields(v.Fields)
		}
	}
	addSig(d.Func)
	return refs
}

// Fingerprint hashes the deterministic encoding of the description
// reachable from key, including every referenced description. Two images
// generated from identical declarations produce the same fingerprint.
func Fingerprint(img Image, key Key) (uint64, error) {
	em, err := encMode()
	if err != nil {
		return 0, err
	}

	var nodes []nodeShape
	seen := make(map[Key]struct{})
	var visit func(k Key)
	visit = func(k Key) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		d, ok := img.Lookup(k)
		if !ok {
			nodes = append(nodes, nodeShape{Key: k.String(), Missing: true})
			return
		}
		nodes = append(nodes, toShape(d))
		for _, ref := range References(d) {
			visit(ref)
		}
	}
	visit(key)

	data, err := em.Marshal(nodes)
	if err != nil {
		return 0, err
	}
	return xxh3.Hash(data), nil
}

// Unresolved returns the keys reachable from key that img cannot resolve,
// in visit order.
func Unresolved(img Image, key Key) []Key {
	var missing []Key
	seen := make(map[Key]struct{})
	var visit func(k Key)
	visit = func(k Key) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		d, ok := img.Lookup(k)
		if !ok {
			missing = append(missing, k)
			return
		}
		for _, ref := range References(d) {
			visit(ref)
		}
	}
	visit(key)
	return missing
}
