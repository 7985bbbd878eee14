package latent

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrSyntax is returned for a program that does not parse.
	ErrSyntax = errors.New("invalid latent program")
	// ErrUnknownVariable is returned for a reference to a variable the graph
	// does not declare.
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrUnknownFunction is returned for a call outside the function table.
	ErrUnknownFunction = errors.New("unknown function")
)

var builtins = Functions()

// Program is one compiled latent program.
type Program struct {
	Index  int
	Source string

	expr  hcl.Expression
	vars  []string
	funcs []string
}

// Compile parses src. References must have the form var.<name>.
func Compile(index int, src string) (*Program, error) {
	filename := fmt.Sprintf("latent[%d]", index)
	expr, diags := hclsyntax.ParseExpression([]byte(src), filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w %d: %s", ErrSyntax, index, diags.Error())
	}

	refs, funcs := extractReferencesAndFunctions(expr)
	p := &Program{Index: index, Source: src, expr: expr, funcs: funcs}
	for _, ref := range refs {
		if ref.RootName() != "var" || len(ref) < 2 {
			return nil, fmt.Errorf("%w %d: reference '%s' must be var.<name>", ErrSyntax, index, TraversalKey(ref))
		}
		attr, ok := ref[1].(hcl.TraverseAttr)
		if !ok {
			return nil, fmt.Errorf("%w %d: reference '%s' must be var.<name>", ErrSyntax, index, TraversalKey(ref))
		}
		if len(p.vars) == 0 || p.vars[len(p.vars)-1] != attr.Name {
			p.vars = append(p.vars, attr.Name)
		}
	}
	for _, fn := range funcs {
		if _, ok := builtins[fn]; !ok {
			return nil, fmt.Errorf("%w '%s' in latent program %d", ErrUnknownFunction, fn, index)
		}
	}
	return p, nil
}

// Variables returns the variable names the program reads, sorted.
func (p *Program) Variables() []string { return p.vars }

// CalledFunctions returns the functions the program calls, sorted.
func (p *Program) CalledFunctions() []string { return p.funcs }

// Scope looks up the current value of a variable.
type Scope func(name string) (cty.Value, bool)

// Evaluate runs the program against scope.
func (p *Program) Evaluate(scope Scope) (cty.Value, error) {
	vals := make(map[string]cty.Value, len(p.vars))
	for _, name := range p.vars {
		v, ok := scope(name)
		if !ok {
			return cty.NilVal, fmt.Errorf("latent program %d: %w '%s'", p.Index, ErrUnknownVariable, name)
		}
		vals[name] = v
	}
	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(vals)},
		Functions: builtins,
	}
	v, diags := p.expr.Value(ctx)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("latent program %d: %s", p.Index, diags.Error())
	}
	return v, nil
}

// Table is a graph's latent programs, indexed by program number.
type Table []*Program

// CompileTable compiles every source in order.
func CompileTable(srcs []string) (Table, error) {
	t := make(Table, 0, len(srcs))
	for i, src := range srcs {
		p, err := Compile(i, src)
		if err != nil {
			return nil, err
		}
		t = append(t, p)
	}
	return t, nil
}

// Validate checks every variable reference against declared.
func (t Table) Validate(declared func(name string) bool) error {
	var errs []error
	for _, p := range t {
		for _, name := range p.vars {
			if !declared(name) {
				errs = append(errs, fmt.Errorf("latent program %d: %w '%s'", p.Index, ErrUnknownVariable, name))
			}
		}
	}
	return errors.Join(errs...)
}

// Get returns program i, or nil when out of range.
func (t Table) Get(i uint16) *Program {
	if int(i) >= len(t) {
		return nil
	}
	return t[i]
}

// Sources returns the source text of every program.
func (t Table) Sources() []string {
	out := make([]string, len(t))
	for i, p := range t {
		out[i] = p.Source
	}
	return out
}
