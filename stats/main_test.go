package stats

import (
	"os"
	"testing"

	"github.com/borissharikoff-droid/youtube/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	os.Exit(m.Run())
}
