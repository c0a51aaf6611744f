package ssagraph

import (
	"go/types"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// FunctionName returns the graph name of fn. Names never contain a dot,
// since everything before the first dot of a label is the function:
// pkg_Func, pkg_Type_Method, and plain Func for package main.
func FunctionName(fn *ssa.Function) string {
	var parts []string

	if pkg := packageOf(fn); pkg != nil && pkg.Name() != "main" {
		parts = append(parts, pkg.Name())
	}
	if recv := fn.Signature.Recv(); recv != nil {
		if name := typeName(recv.Type()); name != "" {
			parts = append(parts, name)
		}
	}
	parts = append(parts, fn.Name())

	return sanitize(strings.Join(parts, "_"))
}

func packageOf(fn *ssa.Function) *types.Package {
	if fn.Pkg != nil {
		return fn.Pkg.Pkg
	}
	if origin := fn.Origin(); origin != nil && origin.Pkg != nil {
		return origin.Pkg.Pkg
	}
	if obj := fn.Object(); obj != nil {
		return obj.Pkg()
	}
	return nil
}

func typeName(t types.Type) string {
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	switch named := t.(type) {
	case *types.Named:
		return named.Obj().Name()
	case *types.Alias:
		return named.Obj().Name()
	}
	return ""
}

// qualifiedTypeName is typeName with the package prefix used by FunctionName.
func qualifiedTypeName(t types.Type) string {
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	named, ok := t.(*types.Named)
	if !ok {
		return ""
	}
	obj := named.Obj()
	if obj.Pkg() == nil || obj.Pkg().Name() == "main" {
		return obj.Name()
	}
	return obj.Pkg().Name() + "." + obj.Name()
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}

// targetSetName names an indirect call by what it goes through: the
// interface method for dynamic dispatch, or the global or struct field
// holding a function value. Dots separate the parts.
func targetSetName(common *ssa.CallCommon) string {
	if common.IsInvoke() {
		iface := qualifiedTypeName(common.Value.Type())
		if iface == "" {
			iface = "interface"
		}
		return iface + "." + common.Method.Name()
	}

	switch v := common.Value.(type) {
	case *ssa.UnOp:
		return holderName(v.X)
	case *ssa.Field:
		return fieldName(v.X.Type(), v.Field)
	}
	return ""
}

func holderName(v ssa.Value) string {
	switch h := v.(type) {
	case *ssa.Global:
		if h.Pkg != nil && h.Pkg.Pkg.Name() != "main" {
			return h.Pkg.Pkg.Name() + "." + h.Name()
		}
		return h.Name()
	case *ssa.FieldAddr:
		return fieldName(h.X.Type(), h.Field)
	}
	return ""
}

func fieldName(t types.Type, index int) string {
	owner := qualifiedTypeName(t)
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	st, ok := t.Underlying().(*types.Struct)
	if !ok || owner == "" || index >= st.NumFields() {
		return ""
	}
	return owner + "." + st.Field(index).Name()
}
