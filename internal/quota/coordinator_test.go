package quota

import (
	"testing"

	"github.com/kcenon/ftscore/internal/ftserrors"
	"github.com/kcenon/ftscore/internal/observability"
)

func TestReserveRejectsUnsafeFilenames(t *testing.T) {
	c := New(0, 0, nil)
	cases := []string{"../escape", "/etc/passwd", "a\x00b", "C:\\Windows"}
	for _, name := range cases {
		if err := c.Reserve(name, 10); err == nil {
			t.Errorf("Reserve(%q) should have been rejected", name)
		} else if ftserrors.KindOf(err) != ftserrors.KindInvalidFilePath {
			t.Errorf("Reserve(%q) kind = %v, want KindInvalidFilePath", name, ftserrors.KindOf(err))
		}
	}
}

func TestReserveRejectsOversizedFile(t *testing.T) {
	c := New(0, 100, nil)
	if err := c.Reserve("big.bin", 200); ftserrors.KindOf(err) != ftserrors.KindFileTooLarge {
		t.Errorf("expected KindFileTooLarge, got %v", err)
	}
}

func TestReserveRejectsOverQuota(t *testing.T) {
	c := New(1000, 0, nil)
	if err := c.Reserve("a.bin", 600); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := c.Reserve("b.bin", 500); ftserrors.KindOf(err) != ftserrors.KindQuotaExceeded {
		t.Errorf("expected KindQuotaExceeded, got %v", err)
	}
}

func TestCommitMovesReservedToCommittedAndCountsFile(t *testing.T) {
	c := New(1000, 0, nil)
	if err := c.Reserve("a.bin", 400); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	c.Commit("a.bin", 400)

	u := c.Usage()
	if u.UsedBytes != 400 {
		t.Errorf("UsedBytes = %d, want 400", u.UsedBytes)
	}
	if u.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1", u.FileCount)
	}

	// a second reserve up to the remaining 600 should now succeed
	if err := c.Reserve("b.bin", 600); err != nil {
		t.Errorf("Reserve after commit should fit remaining quota: %v", err)
	}
}

func TestReleaseReturnsReservedCapacity(t *testing.T) {
	c := New(1000, 0, nil)
	if err := c.Reserve("a.bin", 900); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	c.Release(900)

	if err := c.Reserve("b.bin", 900); err != nil {
		t.Errorf("Reserve after release should succeed: %v", err)
	}
}

func TestThresholdFiresOncePerCrossing(t *testing.T) {
	c := New(1000, 0, []float64{0.5, 0.9})
	var fired []float64
	c.OnThresholdCrossed(func(threshold, usagePercent float64) {
		fired = append(fired, threshold)
	})

	if err := c.Reserve("a.bin", 600); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if len(fired) != 1 || fired[0] != 0.5 {
		t.Fatalf("expected exactly the 0.5 threshold to fire once, got %v", fired)
	}

	if err := c.Reserve("b.bin", 50); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if len(fired) != 1 {
		t.Errorf("threshold should not refire without crossing a new one, got %v", fired)
	}

	c.Release(650)
	c.Reset()
	if err := c.Reserve("c.bin", 600); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if len(fired) != 2 || fired[1] != 0.5 {
		t.Errorf("threshold should refire after Reset, got %v", fired)
	}
}

func TestReserveCommitReleasePublishMetrics(t *testing.T) {
	c := New(1000, 0, nil)
	c.Metrics = observability.NewMetrics()

	if err := c.Reserve("a.bin", 400); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	c.Commit("a.bin", 400)
	c.Release(0)

	if err := c.Reserve("b.bin", 10000); err == nil {
		t.Fatal("expected over-quota reserve to fail")
	}
}

func TestUnlimitedQuotaNeverRejects(t *testing.T) {
	c := New(0, 0, []float64{0.5})
	if err := c.Reserve("huge.bin", 1<<40); err != nil {
		t.Errorf("unlimited quota should never reject: %v", err)
	}
	if u := c.Usage(); u.UsagePercent != 0 {
		t.Errorf("UsagePercent with unlimited quota = %v, want 0", u.UsagePercent)
	}
}
