package metadata

import (
	"fmt"
	"reflect"
	"sync"
)

// Constructor is a registered factory function for one record type.
// Accepted shapes: func(args...) *T and func(args...) (*T, error).
type Constructor struct {
	fn     reflect.Value
	owner  reflect.Type
	params []Element
	order  int
}

// Params returns the constructor-parameter elements, in declaration order.
func (c Constructor) Params() []Element { return c.params }

// Arity is the number of parameters.
func (c Constructor) Arity() int { return len(c.params) }

// Outcome of one constructor invocation attempt.
type Outcome struct {
	Instance reflect.Value
	Reason   error
}

// Invoked reports whether the attempt produced an instance.
func (o Outcome) Invoked() bool { return o.Reason == nil && o.Instance.IsValid() }

// Invoke calls the constructor with args. Panics and non-nil error returns
// are reported as a failed outcome.
func (c Constructor) Invoke(args []reflect.Value) (out Outcome) {
	if len(args) != len(c.params) {
		return Outcome{Reason: fmt.Errorf("%s: want %d arguments, got %d", c.owner, len(c.params), len(args))}
	}
	for i, a := range args {
		want := c.fn.Type().In(i)
		if !a.IsValid() {
			args[i] = reflect.Zero(want)
			continue
		}
		if !a.Type().AssignableTo(want) {
			return Outcome{Reason: fmt.Errorf("%s: argument %d: cannot use %s as %s", c.owner, i, a.Type(), want)}
		}
	}

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Reason: fmt.Errorf("%s: constructor panicked: %v", c.owner, r)}
		}
	}()

	res := c.fn.Call(args)
	if len(res) == 2 && !res[1].IsNil() {
		return Outcome{Reason: res[1].Interface().(error)}
	}
	if res[0].IsNil() {
		return Outcome{Reason: fmt.Errorf("%s: constructor returned nil", c.owner)}
	}
	return Outcome{Instance: res[0]}
}

// Constructors is a catalog of registered constructors per record type.
type Constructors struct {
	mu     sync.RWMutex
	byType map[reflect.Type][]Constructor
	next   int
}

// NewConstructors creates an empty catalog.
func NewConstructors() *Constructors {
	return &Constructors{byType: make(map[reflect.Type][]Constructor)}
}

// Register adds constructor functions. Each must return *T or (*T, error).
func (c *Constructors) Register(fns ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, fn := range fns {
		ctor, err := c.newConstructor(fn)
		if err != nil {
			return err
		}
		c.byType[ctor.owner] = append(c.byType[ctor.owner], ctor)
	}
	return nil
}

// MustRegister is Register that panics on error.
func (c *Constructors) MustRegister(fns ...any) {
	if err := c.Register(fns...); err != nil {
		panic(err)
	}
}

// For returns the constructors registered for t in registration order.
func (c *Constructors) For(t reflect.Type) []Constructor {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctors := c.byType[Indirect(t)]
	out := make([]Constructor, len(ctors))
	copy(out, ctors)
	return out
}

func (c *Constructors) newConstructor(fn any) (Constructor, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return Constructor{}, fmt.Errorf("constructor must be a function, got %T", fn)
	}
	ft := v.Type()
	if ft.IsVariadic() {
		return Constructor{}, fmt.Errorf("constructor %s must not be variadic", ft)
	}
	if ft.NumOut() < 1 || ft.NumOut() > 2 {
		return Constructor{}, fmt.Errorf("constructor %s must return *T or (*T, error)", ft)
	}
	if ft.NumOut() == 2 && ft.Out(1) != errorIface {
		return Constructor{}, fmt.Errorf("constructor %s: second result must be error", ft)
	}
	out := ft.Out(0)
	if out.Kind() != reflect.Pointer || out.Elem().Kind() != reflect.Struct {
		return Constructor{}, fmt.Errorf("constructor %s must return a pointer to a struct", ft)
	}

	owner := out.Elem()
	params := make([]Element, ft.NumIn())
	for i := 0; i < ft.NumIn(); i++ {
		params[i] = &paramElement{
			baseElement: baseElement{
				name:  fmt.Sprintf("arg%d", i),
				typ:   ft.In(i),
				owner: owner,
			},
			position: i,
		}
	}

	c.next++
	return Constructor{fn: v, owner: owner, params: params, order: c.next}, nil
}
