package ssi

import (
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ajg/synth"
	"github.com/ajg/synth/value"
)

// env is the environment conditions run in. The variable function v
// returns the value of a template variable, or "" when it is not set.
type env struct {
	lookup func(string) (value.Value, bool)
}

func (e env) V(name string) any {
	v, ok := e.lookup(name)
	if !ok {
		return ""
	}
	return v.Interface()
}

var programs sync.Map // translated source -> *vm.Program

// Eval evaluates an if condition.
//
// Conditions are expr-lang expressions in which $name and ${name} stand
// for variables and a single = compares for equality:
//
//	$user = "admin" && ($level > 2 || !$guest)
//
// The condition holds when its result is truthy.
func Eval(src string, lookup func(string) (value.Value, bool)) (bool, error) {
	code := translate(src)
	p, ok := programs.Load(code)
	if !ok {
		program, err := expr.Compile(code, expr.Env(env{}))
		if err != nil {
			return false, synth.Errorf(synth.ErrInvalidArgument, "invalid expression %q", src).WithCause(err)
		}
		p, _ = programs.LoadOrStore(code, program)
	}
	out, err := vm.Run(p.(*vm.Program), env{lookup: lookup})
	if err != nil {
		return false, synth.Errorf(synth.ErrInvalidArgument, "cannot evaluate %q", src).WithCause(err)
	}
	return value.Of(out).Truth(), nil
}

// translate rewrites variable references into calls of V and lone equals
// signs into ==. Quoted strings are left alone.
func translate(src string) string {
	var b strings.Builder
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '"', '\'', '`':
			end := closing(src, i)
			b.WriteString(src[i:end])
			i = end - 1
		case '$':
			name, width := variable(src[i+1:])
			if width == 0 {
				b.WriteByte(c)
				continue
			}
			b.WriteString(`V("` + name + `")`)
			i += width
		case '=':
			prev := byte(0)
			if i > 0 {
				prev = src[i-1]
			}
			next := byte(0)
			if i+1 < len(src) {
				next = src[i+1]
			}
			if !strings.ContainsRune("=!<>", rune(prev)) && next != '=' {
				b.WriteString("==")
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// closing returns the index just past the string literal starting at i.
func closing(src string, i int) int {
	quote := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			if quote != '`' {
				j++
			}
		case quote:
			return j + 1
		}
	}
	return len(src)
}
