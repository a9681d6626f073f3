package loader

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/dshills/storyflow/flow"
)

// HCL layout:
//
//	waypoints = ["cellar"]
//
//	block "intro" {
//	  command "intro.0" {
//	    kind   = "text"
//	    params = { text = "You wake up." }
//	  }
//	}
//
//	block "cellar" {
//	  parent = "intro"
//	}
var (
	programSchema = &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{{Name: "waypoints"}},
		Blocks:     []hcl.BlockHeaderSchema{{Type: "block", LabelNames: []string{"id"}}},
	}
	blockSchema = &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{{Name: "parent"}},
		Blocks:     []hcl.BlockHeaderSchema{{Type: "command", LabelNames: []string{"id"}}},
	}
	commandSchema = &hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "kind", Required: true},
			{Name: "params"},
		},
	}
)

func decodeHCL(data []byte, filename string) (*Program, error) {
	if filename == "" {
		filename = "program.hcl"
	}
	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}

	content, diags := file.Body.Content(programSchema)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}

	p := &Program{}
	if attr, ok := content.Attributes["waypoints"]; ok {
		var ids []string
		if err := decodeAttr(attr, &ids); err != nil {
			return nil, err
		}
		p.Waypoints = ids
	}

	for _, hb := range content.Blocks {
		b, err := decodeBlock(hb)
		if err != nil {
			return nil, err
		}
		p.Blocks = append(p.Blocks, b)
	}
	return p, nil
}

func decodeBlock(hb *hcl.Block) (*flow.Block, error) {
	content, diags := hb.Body.Content(blockSchema)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}

	b := &flow.Block{ID: hb.Labels[0], Source: blockSpan(hb)}
	if attr, ok := content.Attributes["parent"]; ok {
		if err := decodeAttr(attr, &b.Parent); err != nil {
			return nil, err
		}
	}

	for _, hc := range content.Blocks {
		c, err := decodeCommand(hc)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", b.ID, err)
		}
		b.Commands = append(b.Commands, c)
	}
	return b, nil
}

func decodeCommand(hc *hcl.Block) (*flow.Command, error) {
	content, diags := hc.Body.Content(commandSchema)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}

	c := &flow.Command{ID: hc.Labels[0], Source: blockSpan(hc)}
	if err := decodeAttr(content.Attributes["kind"], &c.Kind); err != nil {
		return nil, err
	}

	if attr, ok := content.Attributes["params"]; ok {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diagError(diags)
		}
		native, err := ctyToNative(v)
		if err != nil {
			return nil, fmt.Errorf("%w: command %q params: %v", ErrInvalidProgram, c.ID, err)
		}
		params, ok := native.(map[string]any)
		if !ok && native != nil {
			return nil, fmt.Errorf("%w: command %q params must be an object", ErrInvalidProgram, c.ID)
		}
		c.Params = params
	}
	return c, nil
}

func decodeAttr(attr *hcl.Attribute, target any) error {
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return diagError(diags)
	}
	fail := func(err error) error {
		return fmt.Errorf("%w: %s: attribute %q: %v", ErrInvalidProgram, attr.Range, attr.Name, err)
	}
	ty, err := gocty.ImpliedType(target)
	if err != nil {
		return fail(err)
	}
	// Tuple literals such as ["a", "b"] only decode into slices after
	// conversion to a list type.
	if v, err = convert.Convert(v, ty); err != nil {
		return fail(err)
	}
	if err := gocty.FromCtyValue(v, target); err != nil {
		return fail(err)
	}
	return nil
}

// blockSpan covers the block header and, for native syntax, its body.
func blockSpan(b *hcl.Block) flow.Span {
	r := b.DefRange
	if body, ok := b.Body.(*hclsyntax.Body); ok {
		r = hcl.RangeBetween(b.DefRange, body.SrcRange)
	}
	return flow.Span{
		File:        r.Filename,
		StartLine:   r.Start.Line,
		StartColumn: r.Start.Column,
		EndLine:     r.End.Line,
		EndColumn:   r.End.Column,
	}
}

func diagError(diags hcl.Diagnostics) error {
	return fmt.Errorf("%w: %s", ErrInvalidProgram, diags.Error())
}

// ctyToNative converts an attribute value to plain Go values: strings,
// float64, bool, []any and map[string]any.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, err
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
