package vm

import (
	"fmt"
	"strings"
)

// intrinsic is a core library method implemented natively.
type intrinsic struct {
	name     string
	instance bool
	params   int
	returns  bool
	fn       func(vm *VM, this Value, args []Value) (Value, error)
}

var intrinsics = map[string]*intrinsic{}

func register(in *intrinsic) {
	intrinsics[in.name] = in
}

func init() {
	register(&intrinsic{
		name:     "System.Object::.ctor",
		instance: true,
		fn:       func(*VM, Value, []Value) (Value, error) { return nil, nil },
	})

	register(&intrinsic{
		name:     "System.ValueTuple`2::.ctor",
		instance: true,
		params:   2,
		fn: func(_ *VM, this Value, args []Value) (Value, error) {
			obj, err := receiver(this)
			if err != nil {
				return nil, err
			}

			obj.Fields["Item1"], obj.Fields["Item2"] = args[0], args[1]

			return nil, nil
		},
	})

	register(&intrinsic{
		name:     "System.Exception::.ctor",
		instance: true,
		params:   1,
		fn: func(_ *VM, this Value, args []Value) (Value, error) {
			obj, err := receiver(this)
			if err != nil {
				return nil, err
			}

			obj.Fields["Message"] = args[0]

			return nil, nil
		},
	})

	register(&intrinsic{
		name:     "System.Exception::get_Message",
		instance: true,
		returns:  true,
		fn: func(_ *VM, this Value, _ []Value) (Value, error) {
			obj, err := receiver(this)
			if err != nil {
				return nil, err
			}

			return obj.Fields["Message"], nil
		},
	})

	register(&intrinsic{
		name:    "System.String::Concat",
		params:  2,
		returns: true,
		fn: func(_ *VM, _ Value, args []Value) (Value, error) {
			var b strings.Builder
			for _, arg := range args {
				if arg != nil {
					fmt.Fprint(&b, arg)
				}
			}

			return b.String(), nil
		},
	})
}

func receiver(this Value) (*Object, error) {
	obj, ok := this.(*Object)
	if !ok {
		return nil, fmt.Errorf("%w: receiver %T is not an object", ErrInvalidProgram, this)
	}

	return obj, nil
}
