package spec

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// The source structs mirror the category definition files before
// compilation. Two dialects are in circulation: older files attach a
// "variation" to each item, newer files wrap it in a "rule" of type
// ContextFree or Dependent. Both decode into the same structs here and
// the compiler normalizes them into one AST.

// sourceRoot is the top level of a definition file. Newer files wrap
// the whole definition in a contents key.
type sourceRoot struct {
	Contents       *sourceCategory `yaml:"contents"`
	sourceCategory `yaml:",inline"`
}

func (r *sourceRoot) category() *sourceCategory {
	if r.Contents != nil {
		return r.Contents
	}
	return &r.sourceCategory
}

type sourceCategory struct {
	// Older files carry number, newer ones carry category.
	Number   *sourceCatNumber `yaml:"number"`
	Category *sourceCatNumber `yaml:"category"`

	Title     string        `yaml:"title"`
	Edition   sourceEdition `yaml:"edition"`
	Catalogue []*sourceItem `yaml:"catalogue"`
	UAP       *sourceUAP    `yaml:"uap"`
}

func (c *sourceCategory) number() (uint8, error) {
	n := c.Category
	if n == nil {
		n = c.Number
	}
	if n == nil {
		return 0, &SchemaError{Reason: "missing category number"}
	}
	if n.value < 0 || n.value > 255 {
		return 0, &SchemaError{Reason: fmt.Sprintf("category number %d out of range", n.value)}
	}
	return uint8(n.value), nil
}

// sourceCatNumber accepts both integer and string forms, e.g. 48 and
// "048".
type sourceCatNumber struct {
	value int
}

func (n *sourceCatNumber) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("category number must be a scalar")
	}
	v, err := strconv.Atoi(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("category number %q: %w", node.Value, err)
	}
	n.value = v
	return nil
}

// sourceEdition accepts both the string form "1.30" and the mapping
// form {major: 1, minor: 30}.
type sourceEdition struct {
	Major int
	Minor int
}

func (e *sourceEdition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		major, minor, ok := strings.Cut(node.Value, ".")
		if !ok {
			return fmt.Errorf("edition %q: want major.minor", node.Value)
		}
		var err error
		if e.Major, err = strconv.Atoi(major); err != nil {
			return fmt.Errorf("edition %q: %w", node.Value, err)
		}
		if e.Minor, err = strconv.Atoi(minor); err != nil {
			return fmt.Errorf("edition %q: %w", node.Value, err)
		}
		return nil
	}
	var m struct {
		Major int `yaml:"major"`
		Minor int `yaml:"minor"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	e.Major, e.Minor = m.Major, m.Minor
	return nil
}

// sourceUAP is either a single UAP (type uap) or a set of variants
// (type uaps); the compiler takes the first variant of a set.
type sourceUAP struct {
	Type       string             `yaml:"type"`
	Items      []string           `yaml:"items"`
	Variations []sourceUAPVariant `yaml:"variations"`
}

type sourceUAPVariant struct {
	Name  string   `yaml:"name"`
	Items []string `yaml:"items"`
}

func (u *sourceUAP) items() ([]string, error) {
	switch u.Type {
	case "uap":
		return u.Items, nil
	case "uaps":
		if len(u.Variations) == 0 {
			return nil, &SchemaError{Reason: "uaps without variations"}
		}
		return u.Variations[0].Items, nil
	default:
		return nil, &SchemaError{Reason: fmt.Sprintf("unexpected uap type %q", u.Type)}
	}
}

// sourceItem is a catalogue item or a subitem of a structured
// variation. Spare subitems carry only a length; list entries may be
// null for unassigned slots.
type sourceItem struct {
	Name       string `yaml:"name"`
	Title      string `yaml:"title"`
	Definition string `yaml:"definition"`
	Remark     string `yaml:"remark"`

	Spare  bool `yaml:"spare"`
	Length int  `yaml:"length"`

	Variation *sourceVariation `yaml:"variation"`
	Rule      *sourceItemRule  `yaml:"rule"`
}

// sourceItemRule is the newer dialect's wrapper around a variation.
type sourceItemRule struct {
	Type    string           `yaml:"type"`
	Value   *sourceVariation `yaml:"value"`
	Default *sourceVariation `yaml:"default"`
	Cases   []sourceItemCase `yaml:"cases"`
}

type sourceItemCase struct {
	When  []int64          `yaml:"when"`
	Value *sourceVariation `yaml:"value"`
}

type sourceVariation struct {
	Type string `yaml:"type"`

	// Element
	Size int                `yaml:"size"`
	Rule *sourceContentRule `yaml:"rule"`

	// Group, Extended and Compound subitems; entries may be null.
	Items []*sourceItem `yaml:"items"`

	// Extended chunk widths; absent in the newer dialect, which always
	// uses octet chunks.
	First   int `yaml:"first"`
	Extents int `yaml:"extents"`

	// Repetitive
	Rep       *sourceRep       `yaml:"rep"`
	Variation *sourceVariation `yaml:"variation"`

	// Compound; null means FX-chained presence octets.
	Fspec *int `yaml:"fspec"`
}

type sourceRep struct {
	Type string `yaml:"type"`
	Size int    `yaml:"size"`
}

// sourceContentRule wraps a content under ContextFree or Dependent.
// The older dialect stores the content under content, the newer one
// under value.
type sourceContentRule struct {
	Type    string            `yaml:"type"`
	Content *sourceContent    `yaml:"content"`
	Value   *sourceContent    `yaml:"value"`
	Default *yaml.Node        `yaml:"default"`
	Cases   []sourceValueCase `yaml:"cases"`
}

func (r *sourceContentRule) contextFree() *sourceContent {
	if r.Content != nil {
		return r.Content
	}
	return r.Value
}

type sourceValueCase struct {
	When    []int64    `yaml:"when"`
	Content *yaml.Node `yaml:"content"`
	Value   *yaml.Node `yaml:"value"`
}

type sourceContent struct {
	Type string `yaml:"type"`

	// Table
	Values []sourceTableEntry `yaml:"values"`

	// String
	Variation string `yaml:"variation"`

	// Integer and Quantity
	Signed      bool               `yaml:"signed"`
	Constraints []sourceConstraint `yaml:"constraints"`

	// Quantity: the older dialect splits the resolution into scaling
	// and fractionalBits, the newer one gives the LSB as one number
	// expression.
	Scaling        *sourceNumber `yaml:"scaling"`
	FractionalBits int           `yaml:"fractionalBits"`
	LSB            *sourceNumber `yaml:"lsb"`
	Unit           string        `yaml:"unit"`
}

// sourceTableEntry is one [value, label] pair of a Table content.
type sourceTableEntry struct {
	Value int64
	Label string
}

func (t *sourceTableEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 2 {
		return fmt.Errorf("table entry must be a [value, label] pair")
	}
	if err := node.Content[0].Decode(&t.Value); err != nil {
		return fmt.Errorf("table entry value: %w", err)
	}
	if err := node.Content[1].Decode(&t.Label); err != nil {
		return fmt.Errorf("table entry label: %w", err)
	}
	return nil
}

type sourceConstraint struct {
	Type  string        `yaml:"type"`
	Value *sourceNumber `yaml:"value"`
}

// sourceNumber is a numeric expression: Integer, Real and Ratio carry
// their payload under value; Div and Pow are structural.
type sourceNumber struct {
	Type        string        `yaml:"type"`
	Value       *yaml.Node    `yaml:"value"`
	Numerator   *sourceNumber `yaml:"numerator"`
	Denominator *sourceNumber `yaml:"denominator"`
	Base        int           `yaml:"base"`
	Exponent    int           `yaml:"exponent"`
}

// number evaluates the expression to a Number, folding Div and Pow into
// exact ratios where possible.
func (n *sourceNumber) number() (Number, error) {
	switch n.Type {
	case "Integer":
		var v int64
		if n.Value != nil {
			if err := n.Value.Decode(&v); err != nil {
				return Number{}, fmt.Errorf("integer value: %w", err)
			}
		}
		return Int(v), nil
	case "Real":
		var f float64
		if n.Value != nil {
			if err := n.Value.Decode(&f); err != nil {
				return Number{}, fmt.Errorf("real value: %w", err)
			}
		}
		return Number{Kind: NumberReal, Real: f}, nil
	case "Ratio":
		var r struct {
			Numerator   int64 `yaml:"numerator"`
			Denominator int64 `yaml:"denominator"`
		}
		if n.Value == nil {
			return Number{}, fmt.Errorf("ratio without value")
		}
		if err := n.Value.Decode(&r); err != nil {
			return Number{}, fmt.Errorf("ratio value: %w", err)
		}
		if r.Denominator == 0 {
			return Number{}, fmt.Errorf("ratio with zero denominator")
		}
		return Ratio(r.Numerator, r.Denominator), nil
	case "Div":
		if n.Numerator == nil || n.Denominator == nil {
			return Number{}, fmt.Errorf("div needs numerator and denominator")
		}
		num, err := n.Numerator.number()
		if err != nil {
			return Number{}, err
		}
		den, err := n.Denominator.number()
		if err != nil {
			return Number{}, err
		}
		return divide(num, den)
	case "Pow":
		return intPow(n.Base, n.Exponent)
	default:
		return Number{}, fmt.Errorf("unexpected number type %q", n.Type)
	}
}

func divide(num, den Number) (Number, error) {
	an, ad, aok := num.Rational()
	bn, bd, bok := den.Rational()
	if aok && bok {
		if bn == 0 {
			return Number{}, fmt.Errorf("division by zero")
		}
		return Ratio(an*bd, ad*bn), nil
	}
	d := den.Float()
	if d == 0 {
		return Number{}, fmt.Errorf("division by zero")
	}
	return Number{Kind: NumberReal, Real: num.Float() / d}, nil
}

func intPow(base, exp int) (Number, error) {
	if exp < 0 || exp > 62 {
		return Number{}, fmt.Errorf("power exponent %d out of range", exp)
	}
	v := int64(1)
	for i := 0; i < exp; i++ {
		v *= int64(base)
	}
	return Int(v), nil
}
