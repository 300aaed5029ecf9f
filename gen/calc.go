package gen

import (
	"fortio.org/safecast"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
)

// info is the size and alignment of one laid-out type.
type info struct {
	Size  uint32
	Align uint32
}

func alignTo(offset, align uint64) uint64 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

func isPow2(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}

// u32 narrows a computed size, reporting overflow as a generation error.
func u32(path []string, v uint64) (uint32, error) {
	n, err := safecast.Conv[uint32](v)
	if err != nil {
		return 0, errors.New(errors.PhaseGenerate, errors.KindOverflow).
			Path(path...).
			Detail("layout exceeds 32-bit size").
			Cause(err).
			Build()
	}
	return n, nil
}

// structLayout places fields in declaration order, each at the next offset
// aligned to its (possibly packed) alignment. offsets are relative to base.
func structLayout(path []string, base uint64, fields []info, packed uint32) ([]uint32, info, error) {
	offsets := make([]uint32, len(fields))
	offset := base
	maxAlign := uint64(1)

	for i, f := range fields {
		align := uint64(f.Align)
		if packed != 0 && align > uint64(packed) {
			align = uint64(packed)
		}
		offset = alignTo(offset, align)
		o, err := u32(path, offset)
		if err != nil {
			return nil, info{}, err
		}
		offsets[i] = o
		if align > maxAlign {
			maxAlign = align
		}
		offset += uint64(f.Size)
	}

	size, err := u32(path, alignTo(offset, maxAlign)-base)
	if err != nil {
		return nil, info{}, err
	}
	align, err := u32(path, maxAlign)
	if err != nil {
		return nil, info{}, err
	}
	return offsets, info{Size: size, Align: align}, nil
}

// checkRepr validates the repr attribute against the kind of type it is
// attached to.
func checkRepr(path []string, repr layout.Repr, align uint32, enum bool) error {
	if repr.Packed != 0 && !isPow2(repr.Packed) {
		return errors.Generation(errors.KindMalformedRepr, path, "packed(%d) is not a power of two", repr.Packed)
	}
	if align != 0 && !isPow2(align) {
		return errors.Generation(errors.KindMalformedRepr, path, "align(%d) is not a power of two", align)
	}
	if align != 0 && repr.Packed != 0 {
		return errors.Generation(errors.KindMalformedRepr, path, "packed and align cannot be combined")
	}
	switch repr.Kind {
	case layout.ReprC:
	case layout.ReprTransparent:
		if enum {
			return errors.Generation(errors.KindMalformedRepr, path, "transparent repr on an enum")
		}
		if repr.Packed != 0 || align != 0 {
			return errors.Generation(errors.KindMalformedRepr, path, "transparent repr cannot be packed or aligned")
		}
	case layout.ReprInt:
		if !enum {
			return errors.Generation(errors.KindMalformedRepr, path, "integer repr on a struct")
		}
		if repr.Packed != 0 {
			return errors.Generation(errors.KindMalformedRepr, path, "integer repr cannot be packed")
		}
	default:
		return errors.Generation(errors.KindMalformedRepr, path, "repr %s not allowed on a declared type", repr.Kind)
	}
	return nil
}

// applyAlign raises alignment and rounds the size up to it.
func applyAlign(path []string, in info, align uint32) (info, error) {
	if align <= in.Align {
		return in, nil
	}
	size, err := u32(path, alignTo(uint64(in.Size), uint64(align)))
	if err != nil {
		return info{}, err
	}
	return info{Size: size, Align: align}, nil
}

// variantLayout is the result of laying out an enum.
type variantLayout struct {
	offsets [][]uint32
	payload uint32
	whole   info
}

// enumLayout places the discriminant first and every variant's fields in a
// shared payload area aligned to the largest field alignment.
func enumLayout(path []string, disc uint32, variants [][]info) (variantLayout, error) {
	maxAlign := uint64(disc)
	for _, fields := range variants {
		for _, f := range fields {
			if uint64(f.Align) > maxAlign {
				maxAlign = uint64(f.Align)
			}
		}
	}

	payload := alignTo(uint64(disc), maxAlign)
	out := variantLayout{offsets: make([][]uint32, len(variants))}
	maxSize := uint64(0)

	for i, fields := range variants {
		offs, vi, err := structLayout(path, payload, fields, 0)
		if err != nil {
			return variantLayout{}, err
		}
		out.offsets[i] = offs
		if uint64(vi.Size) > maxSize {
			maxSize = uint64(vi.Size)
		}
	}

	var err error
	if out.payload, err = u32(path, payload); err != nil {
		return variantLayout{}, err
	}
	if out.whole.Size, err = u32(path, alignTo(payload+maxSize, maxAlign)); err != nil {
		return variantLayout{}, err
	}
	if out.whole.Align, err = u32(path, maxAlign); err != nil {
		return variantLayout{}, err
	}
	return out, nil
}
