// Package signature converts between type signatures ("Ljava/lang/String;",
// "[I", "(IJ)V") and their display names ("java.lang.String", "int[]").
package signature

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned for signatures that cannot be parsed.
var ErrMalformed = errors.New("malformed signature")

var primitiveNames = map[byte]string{
	'Z': "boolean",
	'B': "byte",
	'C': "char",
	'S': "short",
	'I': "int",
	'J': "long",
	'F': "float",
	'D': "double",
	'V': "void",
}

var primitiveSignatures = map[string]byte{
	"boolean": 'Z',
	"byte":    'B',
	"char":    'C',
	"short":   'S',
	"int":     'I',
	"long":    'J',
	"float":   'F',
	"double":  'D',
	"void":    'V',
}

// ToName returns the display name for a type signature. Signatures it does
// not recognise are returned unchanged.
func ToName(sig string) string {
	if sig == "" {
		return sig
	}
	switch sig[0] {
	case '[':
		return ToName(sig[1:]) + "[]"
	case 'L':
		end := strings.IndexAny(sig, "<;")
		if end < 0 {
			return sig
		}
		return strings.ReplaceAll(sig[1:end], "/", ".")
	}
	if len(sig) == 1 {
		if name, ok := primitiveNames[sig[0]]; ok {
			return name
		}
	}
	return sig
}

// FromName returns the signature for a display name such as "int[][]" or
// "java.util.Map$Entry".
func FromName(name string) string {
	dims := 0
	for strings.HasSuffix(name, "[]") {
		name = strings.TrimSuffix(name, "[]")
		dims++
	}

	var b strings.Builder
	b.WriteString(strings.Repeat("[", dims))
	if c, ok := primitiveSignatures[name]; ok {
		b.WriteByte(c)
	} else {
		b.WriteByte('L')
		b.WriteString(strings.ReplaceAll(name, ".", "/"))
		b.WriteByte(';')
	}
	return b.String()
}

// IsPrimitive reports whether sig is a primitive or void signature.
func IsPrimitive(sig string) bool {
	if len(sig) != 1 {
		return false
	}
	_, ok := primitiveNames[sig[0]]
	return ok
}

// IsReference reports whether sig names a class, interface or array type.
func IsReference(sig string) bool {
	return sig != "" && (sig[0] == 'L' || sig[0] == '[')
}

// Component returns the element signature of an array signature, or "" if
// sig is not an array.
func Component(sig string) string {
	if !strings.HasPrefix(sig, "[") {
		return ""
	}
	return sig[1:]
}

// Dimensions returns the number of leading array markers in sig.
func Dimensions(sig string) int {
	n := 0
	for n < len(sig) && sig[n] == '[' {
		n++
	}
	return n
}

// next returns the end offset of the single type signature starting at i.
func next(sig string, i int) (int, error) {
	start := i
	for i < len(sig) && sig[i] == '[' {
		i++
	}
	if i >= len(sig) {
		return 0, fmt.Errorf("%w: %q at %d", ErrMalformed, sig, start)
	}
	switch sig[i] {
	case 'L':
		depth := 0
		for j := i + 1; j < len(sig); j++ {
			switch sig[j] {
			case '<':
				depth++
			case '>':
				depth--
			case ';':
				if depth == 0 {
					return j + 1, nil
				}
			}
		}
		return 0, fmt.Errorf("%w: unterminated class in %q", ErrMalformed, sig)
	default:
		if _, ok := primitiveNames[sig[i]]; ok {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: unexpected %q in %q", ErrMalformed, sig[i], sig)
}

// Method is a parsed method signature.
type Method struct {
	Arguments []string
	Return    string
}

// ParseMethod splits a method signature such as "(I[Ljava/lang/String;)V"
// into its argument and return signatures.
func ParseMethod(sig string) (Method, error) {
	if !strings.HasPrefix(sig, "(") {
		return Method{}, fmt.Errorf("%w: %q", ErrMalformed, sig)
	}

	var m Method
	i := 1
	for i < len(sig) && sig[i] != ')' {
		end, err := next(sig, i)
		if err != nil {
			return Method{}, err
		}
		m.Arguments = append(m.Arguments, sig[i:end])
		i = end
	}
	if i >= len(sig) {
		return Method{}, fmt.Errorf("%w: missing ')' in %q", ErrMalformed, sig)
	}

	end, err := next(sig, i+1)
	if err != nil {
		return Method{}, err
	}
	if end != len(sig) {
		return Method{}, fmt.Errorf("%w: trailing data in %q", ErrMalformed, sig)
	}
	m.Return = sig[i+1:]
	return m, nil
}

// ArgumentNames returns the display names of a method's argument types.
func (m Method) ArgumentNames() []string {
	names := make([]string, len(m.Arguments))
	for i, a := range m.Arguments {
		names[i] = ToName(a)
	}
	return names
}

// ReturnName returns the display name of the method's return type.
func (m Method) ReturnName() string {
	return ToName(m.Return)
}
