package launcher

import (
	"testing"

	"go.uber.org/goleak"
)

// leakOptions ignores goroutines started by package init in dependencies
// of the application registry. genai pulls in opencensus, whose view
// worker runs for the life of the process.
var leakOptions = []goleak.Option{
	goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, leakOptions...)
}
