package spec

import (
	"fmt"
	"strconv"
)

// Category is a compiled ASTERIX category definition: the item catalogue
// plus the UAP ordering that assigns FRNs. Built once by Compile and never
// mutated afterwards, so it is safe to share across goroutines.
type Category struct {
	Number  uint8
	Title   string
	Edition Edition

	// Catalogue holds every data item of the category in source order.
	Catalogue []*DataItem

	// UAP maps FRN (1-based, dense) to item names. Empty strings mark
	// unassigned FRN slots.
	UAP []string

	byName map[string]*DataItem
}

// Edition is a category edition number, e.g. 1.30.
type Edition struct {
	Major int
	Minor int
}

func (e Edition) String() string {
	return strconv.Itoa(e.Major) + "." + strconv.Itoa(e.Minor)
}

// Item looks up a catalogue item by name, e.g. "010".
func (c *Category) Item(name string) (*DataItem, bool) {
	item, ok := c.byName[name]
	return item, ok
}

// ItemByFRN resolves an FRN through the UAP to its catalogue item.
func (c *Category) ItemByFRN(frn int) (*DataItem, bool) {
	if frn < 1 || frn > len(c.UAP) {
		return nil, false
	}
	name := c.UAP[frn-1]
	if name == "" {
		return nil, false
	}
	return c.Item(name)
}

// MaxFRN returns the highest FRN assigned by the UAP.
func (c *Category) MaxFRN() int {
	return len(c.UAP)
}

// FRN returns the field reference number the UAP assigns to an item
// name, or false when the item has no UAP slot.
func (c *Category) FRN(name string) (int, bool) {
	for i, n := range c.UAP {
		if n != "" && n == name {
			return i + 1, true
		}
	}
	return 0, false
}

// DataItem describes one catalogue entry of a category.
type DataItem struct {
	Name       string
	Title      string
	Definition string
	Remark     string
	Variation  Variation
}

// Variation is the structural shape of a data item. Exactly five shapes
// exist: Element, Group, Extended, Repetitive, Explicit and Compound.
// The interface is closed; codecs switch exhaustively over the concrete
// types.
type Variation interface {
	variation()
}

// Element is a single field of a declared bit width with a content rule.
type Element struct {
	Bits    int
	Content ContentRule
}

// Group is a fixed-length ordered composite of subitems, packed MSB-first.
type Group struct {
	Items []*Subitem
}

// Extended is an FX-chained variable-length item: the first chunk carries
// FirstBits bits, every later chunk ExtentBits bits, and the last bit of
// each chunk is the FX continuation flag.
type Extended struct {
	FirstBits  int
	ExtentBits int
	Items      []*Subitem
}

// Repetitive repeats a fixed-size element, prefixed on the wire by a
// one-octet repetition count.
type Repetitive struct {
	Element Variation
}

// Explicit is a length-prefixed item whose first octet gives the total
// item length including the length octet itself. When Definition is set
// (reserved-expansion and special-purpose fields) the codec recurses into
// it instead of treating the payload as opaque.
type Explicit struct {
	Definition *DataItem
}

// Compound is a sparse composite: a leading FSPEC selects which subitems
// are present. FspecBits > 0 means a fixed-length FSPEC of exactly that
// many bits with no FX chaining; zero means FX-chained, 7 bits per octet.
// Nil entries in Items are permanently absent slots that still consume a
// presence bit.
type Compound struct {
	FspecBits int
	Items     []*Subitem
}

func (*Element) variation()    {}
func (*Group) variation()      {}
func (*Extended) variation()   {}
func (*Repetitive) variation() {}
func (*Explicit) variation()   {}
func (*Compound) variation()   {}

// Subitem is one slot inside a Group, Extended or Compound variation.
// Spare subitems carry only a bit width. A nil *Subitem in an items slice
// marks an Extended placeholder or an absent Compound slot.
type Subitem struct {
	Name      string
	Title     string
	Spare     bool
	Bits      int
	Variation Variation
}

// BitLength returns the bit size of a subitem: zero for nil or
// variation-less slots, the declared width for spares, otherwise the
// size of its variation.
func (s *Subitem) BitLength() (int, error) {
	if s == nil {
		return 0, nil
	}
	if s.Spare {
		return s.Bits, nil
	}
	if s.Variation == nil {
		return 0, nil
	}
	return BitLength(s.Variation)
}

// BitLength computes the static bit size of a variation. Only Element,
// Group and Repetitive have one; Extended, Explicit and Compound are
// variable-length and report an error.
func BitLength(v Variation) (int, error) {
	switch vr := v.(type) {
	case *Element:
		return vr.Bits, nil
	case *Group:
		total := 0
		for _, item := range vr.Items {
			n, err := item.BitLength()
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	case *Repetitive:
		return BitLength(vr.Element)
	default:
		return 0, fmt.Errorf("variation %T has no static bit size", v)
	}
}

// ContentRule tells the value codec how to interpret an Element's bits.
// The interface is closed over Raw, Table, String, Integer, Quantity,
// Bds and Dependent.
type ContentRule interface {
	content()
}

// Raw leaves the bits uninterpreted.
type Raw struct{}

// Table maps raw integer values to labels. Decode is the forward lookup,
// encode the inverse; unknown raw values pass through unlabeled.
type Table struct {
	Values []TableEntry
}

// TableEntry is one raw-value/label pair, kept in source order.
type TableEntry struct {
	Value int64
	Label string
}

// Label returns the label for a raw value, if the table defines one.
func (t *Table) Label(value int64) (string, bool) {
	for _, e := range t.Values {
		if e.Value == value {
			return e.Label, true
		}
	}
	return "", false
}

// Value returns the raw value for a label, if the table defines one.
func (t *Table) Value(label string) (int64, bool) {
	for _, e := range t.Values {
		if e.Label == label {
			return e.Value, true
		}
	}
	return 0, false
}

// StringEncoding selects the character set of a String content rule.
type StringEncoding int

// String encodings. ICAO6Bit packs six bits per character and is used for
// callsigns; Octal renders Mode-3/A transponder codes as four octal
// digits.
const (
	ASCII StringEncoding = iota
	ICAO6Bit
	Octal
)

func (e StringEncoding) String() string {
	switch e {
	case ASCII:
		return "ascii"
	case ICAO6Bit:
		return "6bitschar"
	case Octal:
		return "octal"
	}
	return "unknown"
}

// String is a fixed-width character field.
type String struct {
	Encoding StringEncoding
}

// Integer is a plain two's-complement integer field. Constraints are
// advisory bounds surfaced to callers; they become encode errors only in
// strict mode.
type Integer struct {
	Signed      bool
	Constraints []Constraint
}

// Quantity is a scaled fixed-point field: the semantic value is
// raw * Scale / 2^FractionalBits.
type Quantity struct {
	Scale          Number
	FractionalBits int
	Signed         bool
	Unit           string
	Constraints    []Constraint
}

// LSB returns the value of one least significant bit, the resolution of
// the quantity.
func (q *Quantity) LSB() float64 {
	lsb := q.Scale.Float()
	if q.FractionalBits > 0 {
		lsb /= float64(int64(1) << uint(q.FractionalBits))
	}
	return lsb
}

// Bds is an opaque Broadcast Data Services register, positioned but never
// interpreted by the codec.
type Bds struct{}

// Dependent selects a content rule by the value of another field. The
// codec always applies Default; Cases are retained for callers that
// resolve discriminants themselves.
type Dependent struct {
	Default ContentRule
	Cases   []DependentCase
}

// DependentCase binds discriminant values to a content rule.
type DependentCase struct {
	Key     []int64
	Content ContentRule
}

func (*Raw) content()       {}
func (*Table) content()     {}
func (*String) content()    {}
func (*Integer) content()   {}
func (*Quantity) content()  {}
func (*Bds) content()       {}
func (*Dependent) content() {}

// Constraint is an advisory bound on a field value, e.g. "<= 360".
type Constraint struct {
	Op    string
	Bound float64
}

// Check reports whether a value satisfies the constraint.
func (c Constraint) Check(v float64) bool {
	switch c.Op {
	case "<":
		return v < c.Bound
	case "<=":
		return v <= c.Bound
	case ">":
		return v > c.Bound
	case ">=":
		return v >= c.Bound
	}
	return true
}

// NumberKind discriminates the source form of a Number.
type NumberKind int

// Number forms as they appear in schema sources.
const (
	NumberInt NumberKind = iota
	NumberRatio
	NumberReal
)

// Number is a scaling factor from the schema source: an integer, a
// numerator/denominator ratio, or a real literal. The source form is kept
// and evaluated on use.
type Number struct {
	Kind NumberKind
	Num  int64
	Den  int64
	Real float64
}

// Int returns a Number holding a plain integer.
func Int(v int64) Number {
	return Number{Kind: NumberInt, Num: v, Den: 1}
}

// Ratio returns a Number holding num/den.
func Ratio(num, den int64) Number {
	return Number{Kind: NumberRatio, Num: num, Den: den}
}

// Rational returns the number as an exact num/den pair. ok is false for
// real literals, which have no exact form.
func (n Number) Rational() (num, den int64, ok bool) {
	if n.Kind == NumberReal {
		return 0, 0, false
	}
	return n.Num, n.Den, true
}

// Float evaluates the number.
func (n Number) Float() float64 {
	switch n.Kind {
	case NumberRatio:
		return float64(n.Num) / float64(n.Den)
	case NumberReal:
		return n.Real
	default:
		return float64(n.Num)
	}
}

func (n Number) String() string {
	switch n.Kind {
	case NumberRatio:
		return fmt.Sprintf("%d/%d", n.Num, n.Den)
	case NumberReal:
		return strconv.FormatFloat(n.Real, 'f', -1, 64)
	default:
		return strconv.FormatInt(n.Num, 10)
	}
}
