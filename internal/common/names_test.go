package common_test

import (
	"fmt"

	"ilclone/internal/common"
)

func ExampleNames_Fresh() {
	names := common.NewNames(".ctor", "ctor_Mixin_1")

	fmt.Println(names.Fresh("ctor_Mixin_"))
	fmt.Println(names.Fresh("ctor_Mixin_"))
	fmt.Println(names.Has("ctor_Mixin_3"))

	// Output:
	// ctor_Mixin_2
	// ctor_Mixin_3
	// true
}
