// Package export renders compiled category definitions as the XML
// dialect consumed by downstream radar analysis tooling.
package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"goasterix/internal/spec"
)

// XML renders a compiled category as an XML definition document.
func XML(cat *spec.Category) ([]byte, error) {
	b := &builder{}
	if err := b.category(cat); err != nil {
		return nil, err
	}
	return []byte(b.out.String()), nil
}

type builder struct {
	out    strings.Builder
	indent int
}

// tell writes one line at the current indent, mapping characters the
// target tooling cannot digest to ASCII.
func (b *builder) tell(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	line = strings.NewReplacer("–", "-", "“", "", "”", "", "°", "deg").Replace(line)
	line = strings.Repeat(" ", b.indent*4) + line
	b.out.WriteString(strings.TrimRight(line, " "))
	b.out.WriteByte('\n')
}

func (b *builder) with(render func()) {
	b.indent++
	render()
	b.indent--
}

func xmlQuote(s string) string {
	return strings.NewReplacer(
		"&", "&amp;",
		"\"", "&quot;",
		"'", "&apos;",
		"’", "&apos;",
		"‘", "&apos;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(s)
}

func (b *builder) category(cat *spec.Category) error {
	b.tell(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.tell(`<!DOCTYPE Category SYSTEM "asterix.dtd">`)
	b.tell("")
	b.tell("<!--")
	b.with(func() {
		b.tell("")
		b.tell("Asterix Category %03d v%s definition", cat.Number, cat.Edition)
		b.tell("")
		b.tell("Do not edit this file!")
		b.tell("")
		b.tell("This file is auto-generated from the category definition.")
		b.tell("")
	})
	b.tell("-->")
	b.tell("")
	b.tell(`<Category id="%d" name="%s" ver="%s">`, cat.Number, xmlQuote(cat.Title), cat.Edition)

	var err error
	b.with(func() {
		for _, item := range cat.Catalogue {
			if err == nil {
				err = b.dataItem(item)
			}
		}
	})
	if err != nil {
		return err
	}
	b.with(func() { b.uap(cat) })
	b.tell("")
	b.tell("</Category>")
	return nil
}

func (b *builder) dataItem(item *spec.DataItem) error {
	b.tell("")
	b.tell(`<DataItem id="%s">`, item.Name)
	var err error
	b.with(func() {
		if item.Title != "" {
			b.tell("<DataItemName>%s</DataItemName>", xmlQuote(item.Title))
		}
		if item.Definition != "" {
			b.tell("<DataItemDefinition>")
			b.with(func() {
				for _, line := range strings.Split(strings.TrimRight(item.Definition, "\n"), "\n") {
					b.tell("%s", xmlQuote(line))
				}
			})
			b.tell("</DataItemDefinition>")
		}
		err = b.format(item.Variation, item.Name, item.Title)
		if err == nil && item.Remark != "" {
			b.tell("<DataItemNote>")
			b.with(func() {
				for _, line := range strings.Split(strings.TrimRight(item.Remark, "\n"), "\n") {
					b.tell("%s", xmlQuote(line))
				}
			})
			b.tell("</DataItemNote>")
		}
	})
	if err != nil {
		return err
	}
	b.tell("</DataItem>")
	return nil
}

// format renders a variation wrapped in its DataItemFormat envelope.
func (b *builder) format(v spec.Variation, name, title string) error {
	desc, err := formatDesc(v)
	if err != nil {
		return fmt.Errorf("item %s: %w", name, err)
	}
	b.tell(`<DataItemFormat desc="%s">`, desc)
	b.with(func() { err = b.variation(v, name, title) })
	if err != nil {
		return err
	}
	b.tell("</DataItemFormat>")
	return nil
}

func formatDesc(v spec.Variation) (string, error) {
	switch v.(type) {
	case *spec.Element, *spec.Group:
		n, err := spec.BitLength(v)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d-octet fixed length data item.", n/8), nil
	case *spec.Extended:
		return "Variable data item.", nil
	case *spec.Repetitive:
		return "Repetitive data item.", nil
	case *spec.Explicit:
		return "Explicit data item.", nil
	case *spec.Compound:
		return "Compound data item.", nil
	default:
		return "", fmt.Errorf("unhandled variation %T", v)
	}
}

// variation renders the bare format body, without the DataItemFormat
// envelope; Compound subitems embed it this way.
func (b *builder) variation(v spec.Variation, name, title string) error {
	switch vr := v.(type) {
	case *spec.Element:
		row := bitsRow{name: name, title: title, bits: vr.Bits, content: vr.Content}
		return b.fixed([]bitsRow{row}, name, title, true)
	case *spec.Group:
		return b.fixed(subitemRows(vr.Items), name, title, true)
	case *spec.Extended:
		return b.variable(vr, name, title)
	case *spec.Repetitive:
		return b.repetitive(vr, name, title)
	case *spec.Explicit:
		return b.explicit(vr)
	case *spec.Compound:
		return b.compound(vr)
	default:
		return fmt.Errorf("unhandled variation %T", v)
	}
}

// bitsRow is one rendered field of a fixed layout.
type bitsRow struct {
	name    string
	title   string
	spare   bool
	bits    int
	content spec.ContentRule
}

// subitemRows flattens subitems into renderable rows. Nested groups
// collapse into one raw row of their total width, matching how
// downstream tooling expects composite subfields.
func subitemRows(items []*spec.Subitem) []bitsRow {
	rows := make([]bitsRow, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if it.Spare {
			rows = append(rows, bitsRow{spare: true, bits: it.Bits})
			continue
		}
		n, err := it.BitLength()
		if err != nil || n <= 0 {
			continue
		}
		row := bitsRow{name: it.Name, title: it.Title, bits: n}
		if el, ok := it.Variation.(*spec.Element); ok {
			row.content = el.Content
		}
		rows = append(rows, row)
	}
	return rows
}

// fixed renders a Fixed layout. A layout holding nothing but a BDS
// register drops the Fixed wrapper when bdsBypass is set, which is how
// lone register items appear downstream.
func (b *builder) fixed(rows []bitsRow, name, title string, bdsBypass bool) error {
	total := 0
	for _, row := range rows {
		total += row.bits
	}
	if total%8 != 0 {
		return &spec.AlignmentError{Item: name, Title: title, Bits: total}
	}

	if bdsBypass && len(rows) == 1 && isBds(rows[0].content) {
		b.bits(rows[0], total, total-rows[0].bits+1, title)
		return nil
	}
	b.tell(`<Fixed length="%d">`, total/8)
	from := total
	for _, row := range rows {
		if row.bits <= 0 {
			continue
		}
		to := from - row.bits + 1
		b.with(func() { b.bits(row, from, to, title) })
		from -= row.bits
	}
	b.tell("</Fixed>")
	return nil
}

func isBds(c spec.ContentRule) bool {
	_, ok := c.(*spec.Bds)
	return ok
}

// shortName gives the rendered BitsShortName: purely numeric names are
// replaced by the initials of the owning item's title.
func shortName(name, parentTitle string) string {
	if name == "" {
		return name
	}
	for _, r := range name {
		if !unicode.IsDigit(r) {
			return name
		}
	}
	var initials strings.Builder
	for _, word := range strings.Fields(parentTitle) {
		word = strings.Trim(word, "()")
		if word != "" {
			initials.WriteString(word[:1])
		}
	}
	if initials.Len() == 0 {
		return name
	}
	return initials.String()
}

func (b *builder) bits(row bitsRow, from, to int, parentTitle string) {
	if row.spare {
		if from == to {
			b.tell(`<Bits bit="%d">`, from)
		} else {
			b.tell(`<Bits from="%d" to="%d">`, from, to)
		}
		b.with(func() {
			b.tell("<BitsShortName>spare</BitsShortName>")
			b.tell("<BitsName>Spare bit(s) set to 0</BitsName>")
			b.tell("<BitsConst>0</BitsConst>")
		})
		b.tell("</Bits>")
		return
	}

	name := xmlQuote(shortName(row.name, parentTitle))
	openPlain := func() {
		if from == to {
			b.tell(`<Bits bit="%d">`, from)
		} else {
			b.tell(`<Bits from="%d" to="%d">`, from, to)
		}
	}
	openEncoded := func(encode string) {
		if from == to {
			b.tell(`<Bits bit="%d">`, from)
		} else {
			b.tell(`<Bits from="%d" to="%d" encode="%s">`, from, to, encode)
		}
	}
	nameLines := func() {
		b.tell("<BitsShortName>%s</BitsShortName>", name)
		if row.title != "" {
			b.tell("<BitsName>%s</BitsName>", xmlQuote(row.title))
		}
	}

	switch c := row.content.(type) {
	case *spec.Table:
		openPlain()
		b.with(func() {
			nameLines()
			entries := append([]spec.TableEntry(nil), c.Values...)
			sort.Slice(entries, func(i, j int) bool { return entries[i].Value < entries[j].Value })
			for _, e := range entries {
				b.tell(`<BitsValue val="%d">%s</BitsValue>`, e.Value, xmlQuote(e.Label))
			}
		})
		b.tell("</Bits>")
	case *spec.String:
		openEncoded(c.Encoding.String())
		b.with(nameLines)
		b.tell("</Bits>")
	case *spec.Integer:
		openEncoded(signedAttr(c.Signed))
		b.with(func() {
			nameLines()
			b.tell("<BitsUnit%s></BitsUnit>", boundsAttrs(c.Constraints))
		})
		b.tell("</Bits>")
	case *spec.Quantity:
		openEncoded(signedAttr(c.Signed))
		b.with(func() {
			nameLines()
			b.tell(`<BitsUnit scale="%s"%s>%s</BitsUnit>`, scaleString(c), boundsAttrs(c.Constraints), xmlQuote(c.Unit))
		})
		b.tell("</Bits>")
	case *spec.Bds:
		b.tell("<BDS/>")
	default:
		// Raw, Dependent and anything else render as plain bits.
		openPlain()
		b.with(nameLines)
		b.tell("</Bits>")
	}
}

func signedAttr(signed bool) string {
	if signed {
		return "signed"
	}
	return "unsigned"
}

// boundsAttrs renders the min/max attributes from the first lower and
// first upper constraint.
func boundsAttrs(constraints []spec.Constraint) string {
	var attrs strings.Builder
	for _, c := range constraints {
		if c.Op == ">=" || c.Op == ">" {
			fmt.Fprintf(&attrs, ` min="%s"`, formatBound(c.Bound))
			break
		}
	}
	for _, c := range constraints {
		if c.Op == "<=" || c.Op == "<" {
			fmt.Fprintf(&attrs, ` max="%s"`, formatBound(c.Bound))
			break
		}
	}
	return attrs.String()
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// scaleString renders the LSB value: fractional scales print with full
// precision and trailing zeros stripped, whole scales in the plain
// float form.
func scaleString(q *spec.Quantity) string {
	if q.FractionalBits > 0 {
		s := strconv.FormatFloat(q.LSB(), 'f', 29, 64)
		s = strings.TrimRight(s, "0")
		if strings.HasSuffix(s, ".") {
			s += "0"
		}
		return s
	}
	s := strconv.FormatFloat(q.Scale.Float(), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// variable renders an Extended layout as a chain of one-chunk Fixed
// parts, each closed by the FX bit.
func (b *builder) variable(ext *spec.Extended, name, title string) error {
	rows := subitemRows(ext.Items)
	b.tell("<Variable>")
	var err error
	b.with(func() {
		chunkBits := ext.FirstBits
		for {
			if chunkBits%8 != 0 {
				err = &spec.AlignmentError{Item: name, Title: title, Bits: chunkBits}
				return
			}
			b.tell(`<Fixed length="%d">`, chunkBits/8)
			from := chunkBits
			b.with(func() {
				for len(rows) > 0 {
					row := rows[0]
					rows = rows[1:]
					if row.bits <= 0 {
						continue
					}
					n := row.bits
					to := from - n + 1
					if to < 2 {
						// Clamp to the FX boundary.
						to = 2
						if to > from {
							break
						}
						n = from - to + 1
					}
					b.bits(row, from, to, title)
					from -= n
					if from <= 1 {
						break
					}
				}
				b.fx()
			})
			b.tell("</Fixed>")
			if len(rows) == 0 {
				break
			}
			chunkBits = ext.ExtentBits
		}
	})
	if err != nil {
		return err
	}
	b.tell("</Variable>")
	return nil
}

func (b *builder) fx() {
	b.tell(`<Bits bit="1" fx="1">`)
	b.with(func() {
		b.tell("<BitsShortName>FX</BitsShortName>")
		b.tell("<BitsName>Extension Indicator</BitsName>")
		b.tell(`<BitsValue val="0">End of Data Item</BitsValue>`)
		b.tell(`<BitsValue val="1">Extension</BitsValue>`)
	})
	b.tell("</Bits>")
}

func (b *builder) repetitive(rep *spec.Repetitive, name, title string) error {
	n, err := spec.BitLength(rep.Element)
	if err != nil {
		return fmt.Errorf("item %s: %w", name, err)
	}
	if n%8 != 0 {
		return &spec.AlignmentError{Item: name, Title: title, Bits: n}
	}
	b.tell("<Repetitive>")
	b.with(func() {
		switch el := rep.Element.(type) {
		case *spec.Group:
			err = b.fixed(subitemRows(el.Items), name, title, false)
		case *spec.Element:
			if isBds(el.Content) {
				b.tell("<BDS/>")
				return
			}
			err = b.fixed([]bitsRow{{name: name, title: title, bits: el.Bits, content: el.Content}}, name, title, false)
		}
	})
	if err != nil {
		return err
	}
	b.tell("</Repetitive>")
	return nil
}

// explicit renders the nested expansion definition when one is wired,
// or an opaque one-octet placeholder.
func (b *builder) explicit(ex *spec.Explicit) error {
	b.tell("<Explicit>")
	var err error
	if ex.Definition != nil {
		b.with(func() {
			err = b.format(ex.Definition.Variation, ex.Definition.Name, ex.Definition.Title)
		})
		if err != nil {
			return err
		}
	} else {
		b.with(func() {
			b.tell(`<Fixed length="1">`)
			b.with(func() {
				b.tell(`<Bits from="8" to="1">`)
				b.with(func() { b.tell("<BitsShortName>VAL</BitsShortName>") })
				b.tell("</Bits>")
			})
			b.tell("</Fixed>")
		})
	}
	b.tell("</Explicit>")
	return nil
}

func (b *builder) compound(cp *spec.Compound) error {
	b.tell("<Compound>")
	var err error
	b.with(func() {
		b.tell("<Variable>")
		b.with(func() {
			if cp.FspecBits > 0 {
				err = b.compoundFixedFspec(cp)
			} else {
				b.compoundChainedFspec(cp)
			}
		})
		b.tell("</Variable>")

		for _, it := range cp.Items {
			b.tell("")
			if it == nil || it.Spare {
				continue
			}
			if err == nil {
				err = b.variation(it.Variation, it.Name, it.Title)
			}
		}
	})
	if err != nil {
		return err
	}
	b.tell("</Compound>")
	return nil
}

// compoundFixedFspec renders a presence map of exactly FspecBits bits
// with no FX chaining.
func (b *builder) compoundFixedFspec(cp *spec.Compound) error {
	if cp.FspecBits%8 != 0 || cp.FspecBits != len(cp.Items) {
		return &spec.SchemaError{Reason: fmt.Sprintf("fixed fspec of %d bits cannot map %d items", cp.FspecBits, len(cp.Items))}
	}
	b.tell(`<Fixed length="%d">`, cp.FspecBits/8)
	bit := len(cp.Items)
	presence := 1
	for _, it := range cp.Items {
		b.with(func() {
			b.tell(`<Bits bit="%d">`, bit)
			b.with(func() {
				if it != nil && !it.Spare {
					b.tell("<BitsShortName>%s</BitsShortName>", xmlQuote(it.Name))
					b.tell("<BitsName>%s</BitsName>", xmlQuote(it.Title))
					b.tell("<BitsPresence>%d</BitsPresence>", presence)
					presence++
				} else {
					b.tell("<BitsShortName>spare</BitsShortName>")
					b.tell("<BitsName>Spare bits set to 0</BitsName>")
				}
			})
			b.tell("</Bits>")
		})
		bit--
	}
	b.tell("</Fixed>")
	return nil
}

// compoundChainedFspec renders FX-chained presence octets, seven slots
// per octet.
func (b *builder) compoundChainedFspec(cp *spec.Compound) {
	items := cp.Items
	presence := 1
	for {
		b.tell(`<Fixed length="1">`)
		bit := 8
		b.with(func() {
			for bit > 1 {
				var it *spec.Subitem
				if len(items) > 0 {
					it = items[0]
					items = items[1:]
				}
				b.tell(`<Bits bit="%d">`, bit)
				b.with(func() {
					if it != nil && !it.Spare {
						b.tell("<BitsShortName>%s</BitsShortName>", xmlQuote(it.Name))
						b.tell("<BitsName>%s</BitsName>", xmlQuote(it.Title))
						b.tell("<BitsPresence>%d</BitsPresence>", presence)
						presence++
					} else {
						b.tell("<BitsShortName>spare</BitsShortName>")
						b.tell("<BitsName>Spare bits set to 0</BitsName>")
					}
				})
				b.tell("</Bits>")
				bit--
			}
			b.tell(`<Bits bit="1" fx="1">`)
			b.with(func() {
				b.tell("<BitsShortName>FX</BitsShortName>")
				b.tell("<BitsName>Extension indicator</BitsName>")
				b.tell(`<BitsValue val="0">no extension</BitsValue>`)
				b.tell(`<BitsValue val="1">extension</BitsValue>`)
			})
			b.tell("</Bits>")
		})
		b.tell("</Fixed>")
		if len(items) == 0 {
			break
		}
	}
}

// uap renders the FRN table, seven slots per presence octet followed by
// the FX slot, padding the tail with unassigned markers.
func (b *builder) uap(cat *spec.Category) {
	b.tell("")
	b.tell("<UAP>")
	b.with(func() {
		items := cat.UAP
		bit, frn := 0, 1
		for {
			chunk := items
			if len(chunk) > 7 {
				chunk = chunk[:7]
			}
			items = items[len(chunk):]
			for _, name := range chunk {
				if name == "" {
					name = "-"
				}
				b.tell(`<UAPItem bit="%d" frn="%d">%s</UAPItem>`, bit, frn, name)
				bit++
				frn++
			}
			if len(items) == 0 {
				for bit%8 != 7 {
					b.tell(`<UAPItem bit="%d" frn="%d">-</UAPItem>`, bit, frn)
					bit++
					frn++
				}
			}
			b.tell(`<UAPItem bit="%d" frn="FX" len="-">-</UAPItem>`, bit)
			bit++
			if len(items) == 0 {
				break
			}
		}
	})
	b.tell("</UAP>")
}
