package telemetry_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bifrost-project/bifrost/mspace"
	"github.com/bifrost-project/bifrost/ring"
	"github.com/bifrost-project/bifrost/telemetry"
)

func newTestRing(t *testing.T, name string) *ring.Ring {
	t.Helper()
	r := ring.New(name, mspace.Host, zaptest.NewLogger(t).Sugar())
	require.NoError(t, r.Resize(1024, 4096, 1))
	t.Cleanup(func() { _ = r.Destroy() })
	return r
}

func TestSinkCollectReflectsRegisteredRings(t *testing.T) {
	sink := telemetry.NewSink()
	a := newTestRing(t, "a")
	b := newTestRing(t, "b")
	sink.Register(a)
	sink.Register(b)

	got := sink.Collect()
	want := map[string]ring.Snapshot{"a": a.Snapshot(), "b": b.Snapshot()}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Collect() mismatch (-want +got):\n%s", diff)
	}
}

func TestSinkUnregisterRemovesRing(t *testing.T) {
	sink := telemetry.NewSink()
	a := newTestRing(t, "a")
	sink.Register(a)
	sink.Unregister("a")

	got := sink.Collect()
	if diff := cmp.Diff(map[string]ring.Snapshot{}, got); diff != "" {
		t.Errorf("Collect() after Unregister mismatch (-want +got):\n%s", diff)
	}
}
