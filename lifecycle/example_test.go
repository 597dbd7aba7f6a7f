package lifecycle_test

import (
	"fmt"

	"github.com/feynman-go/actionkit/lifecycle"
)

func ExampleActor() {
	a := lifecycle.NewActor(nil)
	a.Send(lifecycle.Start("custom value"))
	a.Send(lifecycle.ValidateSuccess())
	a.Send(lifecycle.ProcessSuccess("Processed: custom value"))

	snap := a.Snapshot()
	out, _ := snap.Output()
	fmt.Println(snap.State, out)
	// Output: succeeded Processed: custom value
}
