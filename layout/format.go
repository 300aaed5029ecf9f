package layout

import (
	"fmt"
	"strings"
)

// String returns a one-line summary of the description.
func (d *Description) String() string {
	var b strings.Builder
	b.WriteString(d.Key.String())
	b.WriteString(" ")
	b.WriteString(d.Kind.String())
	if d.Kind == KindPrimitive {
		b.WriteString("(")
		b.WriteString(d.Prim.String())
		b.WriteString(")")
	}
	fmt.Fprintf(&b, " size=%d align=%d repr=%s", d.Size, d.Align, d.Repr)
	return b.String()
}

func (s *Signature) String() string {
	var b strings.Builder
	b.WriteString("fn(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		writeParam(&b, p)
	}
	b.WriteString(")")
	if s.Return != nil {
		b.WriteString(" -> ")
		writeParam(&b, *s.Return)
	}
	return b.String()
}

func writeParam(b *strings.Builder, p Param) {
	if p.Name != "" {
		b.WriteString(p.Name)
		b.WriteString(": ")
	}
	for _, l := range p.Lifetimes {
		b.WriteString(l.String())
		b.WriteString(" ")
	}
	b.WriteString(p.Type.String())
}

// Format renders the description tree rooted at key, one line per node.
// Types already printed are shown by key only.
func Format(img Image, key Key) string {
	var b strings.Builder
	seen := make(map[Key]bool)
	formatNode(&b, img, key, "", 0, seen)
	return b.String()
}

func formatNode(b *strings.Builder, img Image, key Key, label string, depth int, seen map[Key]bool) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	if label != "" {
		b.WriteString(label)
		b.WriteString(": ")
	}
	d, ok := img.Lookup(key)
	if !ok {
		b.WriteString(key.String())
		b.WriteString(" <unresolved>\n")
		return
	}
	if seen[key] {
		b.WriteString(key.String())
		b.WriteString(" ...\n")
		return
	}
	seen[key] = true
	b.WriteString(d.String())
	b.WriteByte('\n')

	for i, p := range d.Params {
		formatNode(b, img, p, fmt.Sprintf("param[%d]", i), depth+1, seen)
	}
	formatFields(b, img, d.Fields, depth+1, seen)
	if d.Prefix != nil {
		fmt.Fprintf(b, "%s  fields_at_publish=%d extent=%d missing=%s\n",
			indent, d.Prefix.FieldsAtPublish, d.Prefix.Extent, d.Prefix.Missing)
	}
	if d.Enum != nil {
		if d.Enum.Open != nil {
			fmt.Fprintf(b, "%s  open caps=%s\n", indent, d.Enum.Open.Caps)
		}
		for _, v := range d.Enum.Variants {
			fmt.Fprintf(b, "%s  %s = %d\n", indent, v.Name, v.Discriminant)
			formatFields(b, img, v.Fields, depth+2, seen)
		}
	}
	if d.Func != nil {
		fmt.Fprintf(b, "%s  %s\n", indent, d.Func)
	}
	for _, t := range d.Tags {
		fmt.Fprintf(b, "%s  #[%s=%q %s]\n", indent, t.Key, t.Value, t.Strictness)
	}
}

func formatFields(b *strings.Builder, img Image, fields []Field, depth int, seen map[Key]bool) {
	for _, f := range fields {
		label := fmt.Sprintf("%s @%d", f.Name, f.Offset)
		if f.Access == Conditional {
			label += " (conditional)"
		}
		formatNode(b, img, f.Type, label, depth, seen)
	}
}
