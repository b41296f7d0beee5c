package spec

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseCategory compiles a category definition into its immutable AST.
// Definitions are YAML documents; JSON works through the same decoder
// since YAML 1.2 is a superset of it.
func ParseCategory(data []byte) (*Category, error) {
	return ParseCategoryWithExpansions(data, nil, nil)
}

// ParseCategoryWithExpansions compiles a category definition together
// with optional reserved-expansion and special-purpose field
// definitions, wiring them into the RE and SP items so the codec can
// recurse into their payloads.
func ParseCategoryWithExpansions(data, re, sp []byte) (*Category, error) {
	var root sourceRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing category definition: %w", err)
	}
	src := root.category()

	number, err := src.number()
	if err != nil {
		return nil, err
	}
	cat := &Category{
		Number:  number,
		Title:   src.Title,
		Edition: Edition{Major: src.Edition.Major, Minor: src.Edition.Minor},
		byName:  make(map[string]*DataItem, len(src.Catalogue)),
	}

	for _, it := range src.Catalogue {
		if it == nil {
			continue
		}
		item, err := compileTopItem(it)
		if err != nil {
			return nil, err
		}
		if _, dup := cat.byName[item.Name]; dup {
			return nil, &SchemaError{Item: item.Name, Title: item.Title, Reason: "duplicate catalogue item"}
		}
		cat.Catalogue = append(cat.Catalogue, item)
		cat.byName[item.Name] = item
	}

	if src.UAP == nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("category %d has no uap", number)}
	}
	names, err := src.UAP.items()
	if err != nil {
		return nil, err
	}
	cat.UAP = make([]string, len(names))
	for i, n := range names {
		if n == "-" {
			n = ""
		}
		if n != "" {
			if _, ok := cat.byName[n]; !ok {
				return nil, &SchemaError{Item: n, Reason: fmt.Sprintf("uap FRN %d names an item missing from the catalogue", i+1)}
			}
		}
		cat.UAP[i] = n
	}

	if err := wireExpansion(cat, "RE", re); err != nil {
		return nil, err
	}
	if err := wireExpansion(cat, "SP", sp); err != nil {
		return nil, err
	}
	return cat, nil
}

// wireExpansion compiles an expansion definition and attaches it to the
// named Explicit item of the category, if both exist.
func wireExpansion(cat *Category, name string, data []byte) error {
	if data == nil {
		return nil
	}
	def, err := parseExpansion(name, data)
	if err != nil {
		return err
	}
	item, ok := cat.byName[name]
	if !ok {
		return nil
	}
	ex, ok := item.Variation.(*Explicit)
	if !ok {
		return &SchemaError{Item: name, Title: item.Title, Reason: "expansion given for a non-explicit item"}
	}
	ex.Definition = def
	return nil
}

// parseExpansion compiles a reserved-expansion or special-purpose field
// definition, an item-shaped document possibly wrapped in contents.
func parseExpansion(name string, data []byte) (*DataItem, error) {
	var wrap struct {
		Contents  *sourceItem      `yaml:"contents"`
		Title     string           `yaml:"title"`
		Variation *sourceVariation `yaml:"variation"`
		Rule      *sourceItemRule  `yaml:"rule"`
	}
	if err := yaml.Unmarshal(data, &wrap); err != nil {
		return nil, fmt.Errorf("parsing %s expansion: %w", name, err)
	}
	it := wrap.Contents
	if it == nil {
		it = &sourceItem{Title: wrap.Title, Variation: wrap.Variation, Rule: wrap.Rule}
	}
	it.Name = name
	return compileTopItem(it)
}

func compileTopItem(it *sourceItem) (*DataItem, error) {
	if it.Name == "" {
		return nil, &SchemaError{Title: it.Title, Reason: "catalogue item without a name"}
	}
	if it.Spare {
		return nil, &SchemaError{Item: it.Name, Title: it.Title, Reason: "catalogue item marked spare"}
	}
	v, err := compileItemVariation(it)
	if err != nil {
		return nil, err
	}
	if err := checkAlignment(v, it.Name, it.Title); err != nil {
		return nil, err
	}
	return &DataItem{
		Name:       it.Name,
		Title:      it.Title,
		Definition: it.Definition,
		Remark:     it.Remark,
		Variation:  v,
	}, nil
}

// compileItemVariation normalizes the two item dialects: older files
// carry a variation directly, newer ones wrap it in a ContextFree or
// Dependent rule.
func compileItemVariation(it *sourceItem) (Variation, error) {
	switch {
	case it.Variation != nil:
		return compileVariation(it.Variation, it.Name, it.Title)
	case it.Rule != nil:
		return compileRuleVariation(it.Rule, it.Name, it.Title)
	default:
		return nil, &SchemaError{Item: it.Name, Title: it.Title, Reason: "item has neither variation nor rule"}
	}
}

func compileRuleVariation(rule *sourceItemRule, name, title string) (Variation, error) {
	switch rule.Type {
	case "ContextFree":
		if rule.Value == nil {
			return nil, &SchemaError{Item: name, Title: title, Reason: "ContextFree rule without a value"}
		}
		return compileVariation(rule.Value, name, title)
	case "Dependent":
		// The layout follows the default case; the width of every case
		// is the same by construction.
		if rule.Default == nil || rule.Default.Type != "Element" {
			return nil, &SchemaError{Item: name, Title: title, Reason: "Dependent rule needs an Element default"}
		}
		if rule.Default.Size <= 0 {
			return nil, &SchemaError{Item: name, Title: title, Reason: "Dependent default without a size"}
		}
		def, err := compileContentRule(rule.Default.Rule, name, title)
		if err != nil {
			return nil, err
		}
		var cases []DependentCase
		for _, cs := range rule.Cases {
			if cs.Value == nil || cs.Value.Type != "Element" {
				return nil, &SchemaError{Item: name, Title: title, Reason: "Dependent case is not an Element"}
			}
			content, err := compileContentRule(cs.Value.Rule, name, title)
			if err != nil {
				return nil, err
			}
			cases = append(cases, DependentCase{Key: cs.When, Content: content})
		}
		return &Element{
			Bits:    rule.Default.Size,
			Content: &Dependent{Default: def, Cases: cases},
		}, nil
	default:
		return nil, &SchemaError{Item: name, Title: title, Reason: fmt.Sprintf("unexpected rule type %q", rule.Type)}
	}
}

func compileVariation(sv *sourceVariation, name, title string) (Variation, error) {
	switch sv.Type {
	case "Element":
		if sv.Size <= 0 {
			return nil, &SchemaError{Item: name, Title: title, Reason: "element without a size"}
		}
		content, err := compileContentRule(sv.Rule, name, title)
		if err != nil {
			return nil, err
		}
		return &Element{Bits: sv.Size, Content: content}, nil

	case "Group":
		items, err := compileSubitems(sv.Items, name, title)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, &SchemaError{Item: name, Title: title, Reason: "group without items"}
		}
		return &Group{Items: items}, nil

	case "Extended":
		// The newer dialect leaves the chunk widths implicit; chunks
		// are always whole octets there.
		first, extents := sv.First, sv.Extents
		if first == 0 {
			first = 8
		}
		if extents == 0 {
			extents = 8
		}
		items, err := compileSubitems(sv.Items, name, title)
		if err != nil {
			return nil, err
		}
		return &Extended{FirstBits: first, ExtentBits: extents, Items: items}, nil

	case "Repetitive":
		if sv.Variation == nil {
			return nil, &SchemaError{Item: name, Title: title, Reason: "repetitive without an element"}
		}
		elem, err := compileVariation(sv.Variation, name, title)
		if err != nil {
			return nil, err
		}
		if sv.Rep != nil && sv.Rep.Type == "Fx" {
			// FX-chained repetition is Extended framing around a
			// single subfield.
			sub := &Subitem{Name: name, Title: title, Variation: elem}
			return &Extended{FirstBits: 8, ExtentBits: 8, Items: []*Subitem{sub}}, nil
		}
		switch elem.(type) {
		case *Element, *Group:
		default:
			return nil, &SchemaError{Item: name, Title: title, Reason: fmt.Sprintf("repetition of %s is not supported", sv.Variation.Type)}
		}
		return &Repetitive{Element: elem}, nil

	case "Explicit":
		return &Explicit{}, nil

	case "Compound":
		items, err := compileSubitems(sv.Items, name, title)
		if err != nil {
			return nil, err
		}
		fspec := 0
		if sv.Fspec != nil && *sv.Fspec > 0 {
			fspec = *sv.Fspec
			if fspec%8 != 0 {
				return nil, &AlignmentError{Item: name, Title: title, Bits: fspec}
			}
			if fspec != len(items) {
				return nil, &SchemaError{
					Item:   name,
					Title:  title,
					Reason: fmt.Sprintf("fixed fspec covers %d slots but %d items are declared", fspec, len(items)),
				}
			}
		}
		return &Compound{FspecBits: fspec, Items: items}, nil

	default:
		return nil, &SchemaError{Item: name, Title: title, Reason: fmt.Sprintf("unexpected variation type %q", sv.Type)}
	}
}

// compileSubitems keeps null slots as nil entries; Compound presence
// bits refer to them positionally.
func compileSubitems(src []*sourceItem, parent, title string) ([]*Subitem, error) {
	items := make([]*Subitem, len(src))
	for i, it := range src {
		if it == nil {
			continue
		}
		if it.Spare {
			if it.Length <= 0 {
				return nil, &SchemaError{Item: parent, Title: title, Reason: "spare subitem without a length"}
			}
			items[i] = &Subitem{Spare: true, Bits: it.Length}
			continue
		}
		v, err := compileItemVariation(it)
		if err != nil {
			return nil, err
		}
		items[i] = &Subitem{Name: it.Name, Title: it.Title, Variation: v}
	}
	return items, nil
}

func compileContentRule(sr *sourceContentRule, name, title string) (ContentRule, error) {
	if sr == nil {
		return &Raw{}, nil
	}
	switch sr.Type {
	case "ContextFree":
		return compileContent(sr.contextFree(), name, title)
	case "Dependent":
		def, err := compileDependentArm(sr.Default, name, title)
		if err != nil {
			return nil, err
		}
		var cases []DependentCase
		for _, cs := range sr.Cases {
			arm := cs.Content
			if arm == nil {
				arm = cs.Value
			}
			content, err := compileDependentArm(arm, name, title)
			if err != nil {
				return nil, err
			}
			cases = append(cases, DependentCase{Key: cs.When, Content: content})
		}
		return &Dependent{Default: def, Cases: cases}, nil
	default:
		return nil, &SchemaError{Item: name, Title: title, Reason: fmt.Sprintf("unexpected content rule type %q", sr.Type)}
	}
}

// compileDependentArm accepts either a bare content or an Element
// variation carrying one, which is how defaults appear in the newer
// dialect.
func compileDependentArm(node *yaml.Node, name, title string) (ContentRule, error) {
	if node == nil {
		return &Raw{}, nil
	}
	var probe struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&probe); err != nil {
		return nil, fmt.Errorf("item %s: dependent case: %w", name, err)
	}
	if probe.Type == "Element" {
		var sv sourceVariation
		if err := node.Decode(&sv); err != nil {
			return nil, fmt.Errorf("item %s: dependent case: %w", name, err)
		}
		return compileContentRule(sv.Rule, name, title)
	}
	var sc sourceContent
	if err := node.Decode(&sc); err != nil {
		return nil, fmt.Errorf("item %s: dependent case: %w", name, err)
	}
	return compileContent(&sc, name, title)
}

func compileContent(sc *sourceContent, name, title string) (ContentRule, error) {
	if sc == nil {
		return &Raw{}, nil
	}
	switch sc.Type {
	case "", "Raw":
		return &Raw{}, nil

	case "Table":
		t := &Table{Values: make([]TableEntry, len(sc.Values))}
		for i, e := range sc.Values {
			t.Values[i] = TableEntry{Value: e.Value, Label: e.Label}
		}
		return t, nil

	case "String":
		var enc StringEncoding
		switch sc.Variation {
		case "StringAscii":
			enc = ASCII
		case "StringICAO":
			enc = ICAO6Bit
		case "StringOctal":
			enc = Octal
		default:
			return nil, &SchemaError{Item: name, Title: title, Reason: fmt.Sprintf("unexpected string variation %q", sc.Variation)}
		}
		return &String{Encoding: enc}, nil

	case "Integer":
		constraints, err := compileConstraints(sc.Constraints, name, title)
		if err != nil {
			return nil, err
		}
		return &Integer{Signed: sc.Signed, Constraints: constraints}, nil

	case "Quantity":
		return compileQuantity(sc, name, title)

	case "Bds":
		return &Bds{}, nil

	default:
		return nil, &SchemaError{Item: name, Title: title, Reason: fmt.Sprintf("unexpected content type %q", sc.Type)}
	}
}

// compileQuantity normalizes the two resolution spellings: scaling plus
// fractionalBits, or a single lsb expression. An lsb of the form
// n / 2^f splits exactly into scaling n and f fractional bits; any
// other expression folds into the scaling with no fractional part.
func compileQuantity(sc *sourceContent, name, title string) (ContentRule, error) {
	q := &Quantity{
		Scale:          Int(1),
		FractionalBits: sc.FractionalBits,
		Signed:         sc.Signed,
		Unit:           sc.Unit,
	}
	switch {
	case sc.Scaling != nil:
		scale, err := sc.Scaling.number()
		if err != nil {
			return nil, fmt.Errorf("item %s: scaling: %w", name, err)
		}
		q.Scale = scale
	case sc.LSB != nil:
		lsb := sc.LSB
		if lsb.Type == "Div" && lsb.Denominator != nil && lsb.Denominator.Type == "Pow" && lsb.Denominator.Base == 2 {
			scale, err := lsb.Numerator.number()
			if err != nil {
				return nil, fmt.Errorf("item %s: lsb: %w", name, err)
			}
			q.Scale = scale
			q.FractionalBits = lsb.Denominator.Exponent
		} else {
			scale, err := lsb.number()
			if err != nil {
				return nil, fmt.Errorf("item %s: lsb: %w", name, err)
			}
			q.Scale = scale
			q.FractionalBits = 0
		}
	}
	constraints, err := compileConstraints(sc.Constraints, name, title)
	if err != nil {
		return nil, err
	}
	q.Constraints = constraints
	return q, nil
}

func compileConstraints(src []sourceConstraint, name, title string) ([]Constraint, error) {
	if len(src) == 0 {
		return nil, nil
	}
	out := make([]Constraint, len(src))
	for i, sc := range src {
		switch sc.Type {
		case "<", "<=", ">", ">=":
		default:
			return nil, &SchemaError{Item: name, Title: title, Reason: fmt.Sprintf("unexpected constraint operator %q", sc.Type)}
		}
		bound := 0.0
		if sc.Value != nil {
			n, err := sc.Value.number()
			if err != nil {
				return nil, fmt.Errorf("item %s: constraint bound: %w", name, err)
			}
			bound = n.Float()
		}
		out[i] = Constraint{Op: sc.Type, Bound: bound}
	}
	return out, nil
}

// checkAlignment validates octet alignment at every point where a
// variation starts a fresh byte on the wire: top-level fixed layouts,
// Extended chunk widths, Repetitive elements and each Compound
// subitem.
func checkAlignment(v Variation, name, title string) error {
	switch vr := v.(type) {
	case *Element, *Group:
		n, err := BitLength(v)
		if err != nil {
			return err
		}
		if n%8 != 0 {
			return &AlignmentError{Item: name, Title: title, Bits: n}
		}
	case *Extended:
		if vr.FirstBits <= 0 || vr.FirstBits%8 != 0 {
			return &AlignmentError{Item: name, Title: title, Bits: vr.FirstBits}
		}
		if vr.ExtentBits <= 0 || vr.ExtentBits%8 != 0 {
			return &AlignmentError{Item: name, Title: title, Bits: vr.ExtentBits}
		}
	case *Repetitive:
		n, err := BitLength(vr.Element)
		if err != nil {
			return err
		}
		if n <= 0 || n%8 != 0 {
			return &AlignmentError{Item: name, Title: title, Bits: n}
		}
	case *Explicit:
		if vr.Definition != nil {
			return checkAlignment(vr.Definition.Variation, vr.Definition.Name, vr.Definition.Title)
		}
	case *Compound:
		for _, it := range vr.Items {
			if it == nil || it.Spare {
				continue
			}
			if err := checkAlignment(it.Variation, name+"/"+it.Name, it.Title); err != nil {
				return err
			}
		}
	}
	return nil
}
