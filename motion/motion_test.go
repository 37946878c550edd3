package motion

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Seednode/partyclient/protocol"
)

const frame = time.Second / 60

func TestTimeConstant_MatchesPerFrameFactor(t *testing.T) {
	ip := NewInterpolator(DefaultTau, 0)

	if got := ip.Alpha(frame); math.Abs(got-DefaultFactor) > 1e-6 {
		t.Errorf("got alpha %v at 60Hz, want %v", got, DefaultFactor)
	}

	// Two 30Hz frames cover what four 120Hz frames do.
	slow := 1 - ip.Alpha(2*frame)
	fast := math.Pow(1-ip.Alpha(frame/2), 4)
	if math.Abs(slow-fast) > 1e-9 {
		t.Errorf("remaining %v at 30Hz, %v at 120Hz", slow, fast)
	}
}

func TestInterpolator_ConvergesWithoutOvershoot(t *testing.T) {
	ip := NewInterpolator(DefaultTau, DefaultEpsilon)
	target := protocol.Vec{X: 500, Y: -200}

	ip.Step(map[string]protocol.Vec{"p1": {}}, frame)

	prev := protocol.Vec{}
	ticks := 0
	for ; ticks < 200; ticks++ {
		v := ip.Step(map[string]protocol.Vec{"p1": target}, frame)["p1"]
		if v.X < prev.X || v.X > target.X || v.Y > prev.Y || v.Y < target.Y {
			t.Fatalf("tick %d: %v overshot or reversed from %v", ticks, v, prev)
		}
		prev = v
		if v == target {
			break
		}
	}

	if prev != target {
		t.Fatalf("did not snap to target within 200 ticks, at %v", prev)
	}
	if ticks > 80 {
		t.Errorf("took %d ticks to converge", ticks)
	}

	for range 100 {
		if v := ip.Step(map[string]protocol.Vec{"p1": target}, frame)["p1"]; v != target {
			t.Fatalf("left target: %v", v)
		}
	}
}

func TestInterpolator_HoldsOnSilence(t *testing.T) {
	ip := NewInterpolator(DefaultTau, DefaultEpsilon)
	targets := map[string]protocol.Vec{"p2": {X: 10, Y: 10}}

	ip.Step(targets, frame)
	for range 500 {
		ip.Step(targets, frame)
	}

	v, ok := ip.Visual("p2")
	if !ok || v != (protocol.Vec{X: 10, Y: 10}) {
		t.Errorf("got %v, want {10 10}", v)
	}
}

func TestInterpolator_FirstSightingAndDeparture(t *testing.T) {
	ip := NewInterpolator(DefaultTau, DefaultEpsilon)

	out := ip.Step(map[string]protocol.Vec{"a": {X: 7, Y: 8}, "b": {X: 1, Y: 1}}, frame)
	if out["a"] != (protocol.Vec{X: 7, Y: 8}) {
		t.Errorf("got %v, want first sighting at target", out["a"])
	}

	out = ip.Step(map[string]protocol.Vec{"a": {X: 7, Y: 8}}, frame)
	if _, ok := out["b"]; ok {
		t.Error("departed player still visible")
	}
	if _, ok := ip.Visual("b"); ok {
		t.Error("departed player still tracked")
	}
}

func TestInterpolator_ZeroDeltaHolds(t *testing.T) {
	ip := NewInterpolator(DefaultTau, DefaultEpsilon)
	ip.Step(map[string]protocol.Vec{"a": {}}, frame)

	if v := ip.Step(map[string]protocol.Vec{"a": {X: 100}}, 0)["a"]; v != (protocol.Vec{}) {
		t.Errorf("got %v, want no movement for zero dt", v)
	}
}

func TestCamera(t *testing.T) {
	vp := Viewport{Width: 800, Height: 600}

	got := Camera(vp, map[string]protocol.Vec{"me": {X: 100, Y: 50}}, "me")
	if want := (protocol.Vec{X: 300, Y: 250}); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	got = Camera(vp, nil, "me")
	if want := (protocol.Vec{X: 0, Y: 0}); got != want {
		t.Errorf("got %v, want %v for default position", got, want)
	}
}

type fakeSource struct {
	mu    sync.Mutex
	pos   map[string]protocol.Vec
	local string
}

func (s *fakeSource) Positions() (map[string]protocol.Vec, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]protocol.Vec, len(s.pos))
	for k, v := range s.pos {
		out[k] = v
	}
	return out, s.local
}

func TestLoop_Tick(t *testing.T) {
	src := &fakeSource{pos: map[string]protocol.Vec{"me": {X: 400, Y: 300}}, local: "me"}

	var frames int
	l := NewLoop(src, LoopOptions{
		Tau:      DefaultTau,
		Epsilon:  DefaultEpsilon,
		Viewport: Viewport{Width: 800, Height: 600},
		OnFrame:  func(Frame) { frames++ },
		Logger:   log.New(io.Discard, "", 0),
	})

	start := time.Unix(0, 0)
	l.Tick(start)

	src.pos["me"] = protocol.Vec{X: 500, Y: 300}
	f := l.Tick(start.Add(frame))

	if got := f.Visual["me"].X; math.Abs(got-410) > 1e-3 {
		t.Errorf("got x %v, want 410", got)
	}
	if f.Camera.X != 400-f.Visual["me"].X {
		t.Errorf("camera %v does not follow %v", f.Camera, f.Visual["me"])
	}
	if f.Seq != 2 || frames != 2 {
		t.Errorf("seq %d frames %d, want 2 and 2", f.Seq, frames)
	}

	latest := l.Latest()
	latest.Visual["me"] = protocol.Vec{}
	if l.Latest().Visual["me"].X == 0 {
		t.Error("Latest returned shared map")
	}
}

func TestLoop_StartStop(t *testing.T) {
	src := &fakeSource{pos: map[string]protocol.Vec{"me": {X: 1, Y: 1}}, local: "me"}
	l := NewLoop(src, LoopOptions{FPS: 200, Logger: log.New(io.Discard, "", 0)})

	if err := l.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := l.Start(context.Background()); !errors.Is(err, ErrRunning) {
		t.Errorf("got %v, want ErrRunning", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for l.Latest().Seq < 3 {
		if time.Now().After(deadline) {
			t.Fatal("loop did not tick")
		}
		time.Sleep(time.Millisecond)
	}

	l.Stop()
	if l.Running() {
		t.Error("still running after Stop")
	}
	seq := l.Latest().Seq
	time.Sleep(30 * time.Millisecond)
	if got := l.Latest().Seq; got != seq {
		t.Errorf("ticked after Stop: %d -> %d", seq, got)
	}
	l.Stop()
}

type recorder struct {
	mu   sync.Mutex
	sent []string
}

func (r *recorder) Post(o protocol.Outbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := protocol.Encode(o.Type, o.Payload)
	if err != nil {
		return err
	}
	r.sent = append(r.sent, string(data))
	return nil
}

func TestKeys_DedupeAndReleaseAll(t *testing.T) {
	r := &recorder{}
	k := NewKeys(r)

	for _, key := range []string{"W", "w", "d", "d"} {
		if err := k.Down(key); err != nil {
			t.Fatal(err)
		}
	}
	if err := k.Up("s"); err != nil {
		t.Fatal(err)
	}
	if err := k.Down("q"); !errors.Is(err, ErrNotMovementKey) {
		t.Errorf("got %v, want ErrNotMovementKey", err)
	}
	if got := strings.Join(k.Held(), ""); got != "dw" {
		t.Errorf("held %q, want dw", got)
	}

	if err := k.ReleaseAll(); err != nil {
		t.Fatal(err)
	}

	want := []string{
		`{"key":"w","type":"keydown"}`,
		`{"key":"d","type":"keydown"}`,
		`{"key":"d","type":"keyup"}`,
		`{"key":"w","type":"keyup"}`,
	}
	if strings.Join(r.sent, "\n") != strings.Join(want, "\n") {
		t.Errorf("got %q, want %q", r.sent, want)
	}
	if len(k.Held()) != 0 {
		t.Error("keys still held after ReleaseAll")
	}
}
