package templates

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/textparse"
)

// InsideComponentKey is the scope key marking that slot lookups are legal.
// A component sets it to true on the scope it renders with.
const InsideComponentKey = "inside_component_operation_identifier"

// DefaultSlot receives a component's whole child block when it declares no
// slot children.
const DefaultSlot = "default"

// Built-in operation names.
const (
	OpGet       = "get"
	OpIf        = "if"
	OpFor       = "for"
	OpComponent = "component"
	OpSlot      = "slot"
	OpComment   = "comment"
)

func builtin(name string) OperationFunc {
	switch name {
	case OpGet:
		return getOperation
	case OpIf:
		return ifOperation
	case OpFor:
		return forOperation
	case OpComponent:
		return componentOperation
	case OpSlot:
		return slotOperation
	case OpComment:
		return commentOperation
	default:
		return nil
	}
}

// ExpectParams returns the parameters of call when there are exactly n.
func ExpectParams(call *OperationCall, n int) ([]string, error) {
	if len(call.Parameters) != n {
		return nil, errors.NewInvalidParamsError(errors.ErrCodeParamCount,
			fmt.Sprintf("expected %d parameters, got %d", n, len(call.Parameters))).
			WithOperation(call.Name)
	}

	return call.Parameters, nil
}

// Lookup resolves a dotted attribute path. Every segment but the last must
// name a Branch.
func Lookup(data ContextMap, attribute string) (ContextTree, error) {
	if attribute == "" {
		return nil, errors.NewInvalidParamsError(errors.ErrCodeAttributeNotFound, "empty attribute path")
	}

	var scope map[string]ContextTree = data
	segments := strings.Split(attribute, ".")
	for i, segment := range segments {
		value, ok := scope[segment]
		if !ok {
			return nil, errors.NewInvalidParamsError(errors.ErrCodeAttributeNotFound,
				fmt.Sprintf("invalid attribute: %s not found in context", segment)).
				WithContext("attribute", attribute)
		}
		if i == len(segments)-1 {
			return value, nil
		}

		branch, ok := value.(Branch)
		if !ok {
			return nil, errors.NewInvalidParamsError(errors.ErrCodeAttributeShape,
				fmt.Sprintf("invalid property access: %s is not an object", strings.Join(segments[:i+1], "."))).
				WithContext("attribute", attribute)
		}
		scope = branch
	}

	return nil, errors.NewInvalidParamsError(errors.ErrCodeAttributeNotFound, "invalid property access")
}

// Display returns the text of a scalar tree.
func Display(tree ContextTree) (string, error) {
	switch v := tree.(type) {
	case Leaf:
		return v.Value.String(), nil
	case Slot:
		return v.Value.String(), nil
	default:
		return "", errors.NewInvalidParamsError(errors.ErrCodeAttributeShape,
			fmt.Sprintf("cannot display %s value", kindOf(tree)))
	}
}

// LookupString resolves attribute and displays it.
func LookupString(data ContextMap, attribute string) (string, error) {
	tree, err := Lookup(data, attribute)
	if err != nil {
		return "", err
	}

	return Display(tree)
}

func kindOf(tree ContextTree) string {
	switch tree.(type) {
	case Leaf:
		return "leaf"
	case Array:
		return "array"
	case Branch:
		return "branch"
	case Slot:
		return "slot"
	default:
		return "unknown"
	}
}

// getOperation handles both "get a.b" and a bare "a.b".
func getOperation(_ context.Context, call *OperationCall, data ContextMap, _ *RenderOptions) (string, error) {
	attribute := call.Name
	if call.Name == OpGet {
		params, err := ExpectParams(call, 1)
		if err != nil {
			return "", err
		}
		attribute = params[0]
	}

	out, err := LookupString(data, attribute)
	if err != nil {
		return "", withOperation(err, call.Name)
	}

	return out, nil
}

func ifOperation(_ context.Context, call *OperationCall, data ContextMap, _ *RenderOptions) (string, error) {
	params, err := ExpectParams(call, 1)
	if err != nil {
		return "", err
	}

	var show bool
	switch params[0] {
	case "true":
		show = true
	case "false":
		show = false
	default:
		tree, err := Lookup(data, params[0])
		if err != nil {
			return "", withOperation(err, call.Name)
		}
		show, err = truthy(tree)
		if err != nil {
			return "", withOperation(err, call.Name)
		}
	}

	if !show {
		return "", nil
	}

	return call.Children, nil
}

// truthy coerces a resolved value for if. An array is truthy when empty.
// TODO: confirm whether non-empty arrays should be the truthy case before
// changing templates that test list presence.
func truthy(tree ContextTree) (bool, error) {
	switch v := tree.(type) {
	case Leaf:
		switch p := v.Value.(type) {
		case Bool:
			return bool(p), nil
		case Str:
			return p != "", nil
		case Num:
			return p != 0, nil
		}
	case Array:
		return len(v) == 0, nil
	}

	return false, errors.NewInvalidParamsError(errors.ErrCodeAttributeShape,
		fmt.Sprintf("cannot use %s value as a condition", kindOf(tree)))
}

func forOperation(ctx context.Context, call *OperationCall, data ContextMap, opts *RenderOptions) (string, error) {
	params, err := ExpectParams(call, 3)
	if err != nil {
		return "", err
	}
	if params[1] != "in" {
		return "", errors.NewInvalidParamsError(errors.ErrCodeParamCount,
			fmt.Sprintf("expected \"<name> in <attribute>\", got %q", strings.Join(params, " "))).
			WithOperation(call.Name)
	}
	element, rangeKey := params[0], params[2]

	tree, err := Lookup(data, rangeKey)
	if err != nil {
		return "", withOperation(err, call.Name)
	}
	items, ok := tree.(Array)
	if !ok {
		return "", errors.NewInvalidParamsError(errors.ErrCodeAttributeShape,
			fmt.Sprintf("invalid range: %s is a %s, not an array", rangeKey, kindOf(tree))).
			WithOperation(call.Name)
	}
	if !call.HasChildren {
		return "", errors.NewInvalidParamsError(errors.ErrCodeMissingChildren,
			"for requires a child block").WithOperation(call.Name)
	}

	var b strings.Builder
	for _, item := range items {
		out, err := render(ctx, call.Children, data.With(element, item), opts)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}

	return b.String(), nil
}

func componentOperation(ctx context.Context, call *OperationCall, data ContextMap, opts *RenderOptions) (string, error) {
	if len(call.Parameters) == 0 {
		return "", errors.NewInvalidParamsError(errors.ErrCodeParamCount,
			"file path not specified").WithOperation(call.Name)
	}
	file := call.Parameters[0]
	if !strings.HasSuffix(file, ".html") {
		return "", errors.NewInvalidParamsError(errors.ErrCodeInvalidPath,
			"invalid file path "+file+": components must be .html files").WithOperation(call.Name)
	}

	scope := data.Clone()
	if len(call.Parameters) > 1 {
		scope = ContextMap{}
		rest := &OperationCall{Name: call.Name, Parameters: call.Parameters[1:]}
		// Values bind whole subtrees; branches and arrays are not stringified.
		for _, kv := range rest.KeyValues() {
			tree, err := Lookup(data, kv.Value)
			if err != nil {
				return "", withOperation(err, call.Name)
			}
			scope[kv.Key] = tree
		}
	}

	if call.HasChildren {
		slots, err := collectSlots(call.Children, opts)
		if err != nil {
			return "", err
		}
		if len(slots) == 0 {
			scope[DefaultSlot] = SlotOf(call.Children)
		}
		for name, content := range slots {
			scope[name] = SlotOf(content)
		}
	}
	scope[InsideComponentKey] = BoolLeaf(true)

	content, err := ReadFile(opts.FS, file)
	if err != nil {
		return "", withOperation(err, call.Name)
	}

	out, err := render(ctx, content, scope, opts)
	if err != nil {
		var we *errors.WebError
		if errors.As(err, &we) && we.FilePath == "" {
			we.WithFile(file)
		}

		return "", err
	}

	return out, nil
}

// collectSlots returns the top-level slot children of a component block.
// Their content is kept unevaluated.
func collectSlots(children string, opts *RenderOptions) (map[string]string, error) {
	slots := map[string]string{}
	for _, m := range textparse.FindAll(children, opts.Opening, opts.Closing) {
		call, ok := ParseOperation(m.Content)
		if !ok || call.Name != OpSlot {
			continue
		}
		params, err := ExpectParams(call, 1)
		if err != nil {
			return nil, err
		}
		slots[params[0]] = call.Children
	}

	return slots, nil
}

func slotOperation(_ context.Context, call *OperationCall, data ContextMap, _ *RenderOptions) (string, error) {
	params, err := ExpectParams(call, 1)
	if err != nil {
		return "", err
	}

	if marker, ok := data[InsideComponentKey].(Leaf); ok {
		if inside, ok := marker.Value.(Bool); ok && !bool(inside) {
			return "", errors.NewInvalidParamsError(errors.ErrCodeSlotOutsideComp,
				"slot function is not loaded from component").WithOperation(call.Name)
		}
	}

	if slot, ok := data[params[0]].(Slot); ok {
		return slot.Value.String(), nil
	}

	return "", nil
}

func commentOperation(context.Context, *OperationCall, ContextMap, *RenderOptions) (string, error) {
	return "", nil
}

func withOperation(err error, name string) error {
	var we *errors.WebError
	if errors.As(err, &we) && we.Operation == "" {
		we.WithOperation(name)
	}

	return err
}
