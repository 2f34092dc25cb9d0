package visualization

import (
	"testing"
)

func TestOpenCommands_SupportedPlatforms(t *testing.T) {
	for _, goos := range []string{"linux", "darwin", "windows"} {
		args, ok := openCommands[goos]
		if !ok || len(args) == 0 {
			t.Errorf("no open command for %s", goos)
		}
	}
}
