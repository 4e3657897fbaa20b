package spawner

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSpawnRunsCommand(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")

	Spawn("touch " + marker)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(marker); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %s to be created by spawned command", marker)
}

func TestSpawnEmptyCommandIsNoop(t *testing.T) {
	Spawn("")
}

func TestSpawnDoesNotBlockCaller(t *testing.T) {
	start := time.Now()
	Spawn("sleep 5")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Spawn blocked the caller for %s", elapsed)
	}
}
