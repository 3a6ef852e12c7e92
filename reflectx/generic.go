package reflectx

import (
	"reflect"
	"strings"
)

// GenericDef identifies a generic type definition independently of its type arguments.
// Go has no run-time handle for an unbound generic type, so the definition is
// derived from the name of one of its instantiations.
type GenericDef struct {
	PkgPath string
	Name    string
	Arity   int
	// the instantiation is used through a pointer, e.g. *Repo[T]
	Pointer bool
	Kind    reflect.Kind
}

func (d GenericDef) String() string {
	var sb strings.Builder
	if d.Pointer {
		sb.WriteByte('*')
	}
	if d.PkgPath != "" {
		sb.WriteString(d.PkgPath)
		sb.WriteByte('.')
	}
	sb.WriteString(d.Name)
	sb.WriteByte('[')
	for i := 0; i < d.Arity; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('_')
	}
	sb.WriteByte(']')
	return sb.String()
}

// GenericDefOf splits an instantiated generic type into its definition and the
// textual form of its type arguments. ok is false for non-generic types.
func GenericDefOf(t reflect.Type) (def GenericDef, typeArgs string, ok bool) {
	if t == nil {
		return
	}

	named := t
	if t.Kind() == reflect.Pointer {
		named = t.Elem()
		def.Pointer = true
	}

	name := named.Name()
	open := strings.IndexByte(name, '[')
	if open <= 0 || name[len(name)-1] != ']' {
		return GenericDef{}, "", false
	}

	typeArgs = name[open+1 : len(name)-1]
	def.PkgPath = named.PkgPath()
	def.Name = name[:open]
	def.Arity = countTypeArgs(typeArgs)
	def.Kind = named.Kind()
	return def, typeArgs, true
}

// IsGeneric reports whether t is an instantiation of a generic type.
func IsGeneric(t reflect.Type) bool {
	_, _, ok := GenericDefOf(t)
	return ok
}

func countTypeArgs(args string) int {
	if args == "" {
		return 0
	}

	n, depth := 1, 0
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				n++
			}
		}
	}
	return n
}
