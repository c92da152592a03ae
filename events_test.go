package shadow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type childItem struct {
	*Element
}

func newChildItem() *childItem {
	c := &childItem{}
	c.Element = New(c)
	return c
}

func (c *childItem) Remove() {
	c.Change("delete", map[string]any{"index": c.PropInt("index")})
}

func (c *childItem) Template(Scope) string {
	return `<button onclick="remove">x</button>`
}

type parentList struct {
	*Element
	stop bool

	mu   sync.Mutex
	seen []*Event
}

func newParentList(stop bool) *parentList {
	c := &parentList{stop: stop}
	c.Element = New(c)
	return c
}

func (c *parentList) OnItem(ev *Event) {
	c.mu.Lock()
	c.seen = append(c.seen, ev)
	c.mu.Unlock()
	if c.stop {
		ev.StopPropagation()
	}
}

func (c *parentList) events() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Event(nil), c.seen...)
}

func (c *parentList) Template(Scope) string {
	return `<ul onchange="onItem"><child-item index="2"/></ul>`
}

func mountParent(t *testing.T, stop bool) (*TestResult, *parentList) {
	t.Helper()
	reg := NewRegistry()
	_, err := Link(reg, newChildItem, WithAttrs("index"))
	require.NoError(t, err)

	parent := newParentList(stop)
	result, err := TestMount(parent, TestRegistry(reg))
	require.NoError(t, err)
	t.Cleanup(result.Close)
	return result, parent
}

func TestChangeBubblesToParentHandler(t *testing.T) {
	result, parent := mountParent(t, false)

	child, err := parent.Root().Component("child-item")
	require.NoError(t, err)
	require.NoError(t, child.Base().Root().Fire("button", "click"))

	seen := parent.events()
	require.Len(t, seen, 1)
	ev := seen[0]
	assert.Equal(t, ChangeEvent, ev.Type)
	assert.Equal(t, "delete", ev.EventName)
	assert.Equal(t, map[string]any{"index": float64(2), "eventName": "delete"}, ev.Data)
	assert.Same(t, child, ev.Target)

	assert.True(t, result.HasEvent("delete"))
}

func TestStopPropagationKeepsEventInside(t *testing.T) {
	result, parent := mountParent(t, true)

	child, err := parent.Root().Component("child-item")
	require.NoError(t, err)
	require.NoError(t, child.Base().Change("delete", nil))

	assert.Len(t, parent.events(), 1)
	assert.False(t, result.HasEvent("delete"))
}

func TestChangeWithoutDetails(t *testing.T) {
	result, parent := mountParent(t, false)

	child, err := parent.Root().Component("child-item")
	require.NoError(t, err)
	require.NoError(t, child.Base().Change("refresh", nil))

	require.Len(t, result.Events(), 1)
	assert.Equal(t, map[string]any{"eventName": "refresh"}, result.Events()[0].Data)
}

type picker struct {
	*Element

	mu     sync.Mutex
	picked [][]string
}

func (c *picker) Pick(ev *Event) bool {
	c.mu.Lock()
	c.picked = append(c.picked, ev.Args)
	c.mu.Unlock()
	return true
}

func (c *picker) Template(Scope) string {
	return `<button id="a" onclick="pick('a, b', 2)">A</button><button id="b" onclick="missing()">B</button><input onkeyup="typed">`
}

func TestInlineHandlers(t *testing.T) {
	comp := &picker{}
	comp.Element = New(comp)

	var keys []string
	comp.Handle("typed", func(ev *Event) bool {
		keys = append(keys, ev.Key)
		return false
	})

	result, err := TestMount(comp)
	require.NoError(t, err)
	defer result.Close()

	assert.True(t, result.HTMLContains(`onclick="this.getRootNode().host.pick(event, 'a, b', 2)"`))
	assert.True(t, result.HTMLContains(`onclick="missing()"`))
	assert.Equal(t, 1, result.LogCount("handler function not found in element"))

	require.NoError(t, result.Fire("#a", "click"))
	require.NoError(t, result.Fire("input", "keyup", WithKey("Enter")))

	comp.mu.Lock()
	assert.Equal(t, [][]string{{"a, b", "2"}}, comp.picked)
	comp.mu.Unlock()
	assert.Equal(t, []string{"Enter"}, keys)

	// Unrewritten handlers are never invoked.
	require.NoError(t, result.Fire("#b", "click"))
	comp.mu.Lock()
	assert.Len(t, comp.picked, 1)
	comp.mu.Unlock()
}

func TestElementListeners(t *testing.T) {
	comp := newChildItem()
	var got []string
	remove := comp.AddEventListener("ping", func(ev *Event) {
		got = append(got, ev.Detail)
	})

	comp.DispatchEvent(&Event{Type: "ping", Detail: `{"n":1}`})
	remove()
	comp.DispatchEvent(&Event{Type: "ping", Detail: `{"n":2}`})

	assert.Equal(t, []string{`{"n":1}`}, got)
}

func TestEventArg(t *testing.T) {
	ev := &Event{Args: []string{"all"}}
	assert.Equal(t, "all", ev.Arg(0))
	assert.Equal(t, "", ev.Arg(1))
	assert.Equal(t, "", ev.Arg(-1))
}

type toggler struct {
	*Element
}

func (c *toggler) Keep() bool { return false }

func (c *toggler) Bump() bool { return true }

func (c *toggler) Template(Scope) string {
	return `<button id="keep" onclick="keep">keep</button><button id="bump" onclick="bump">bump</button>`
}

func TestHandlerResultControlsRender(t *testing.T) {
	var commits atomic.Int32
	comp := &toggler{}
	comp.Element = New(comp)
	result, err := TestMount(comp, commitCounter(&commits))
	require.NoError(t, err)
	defer result.Close()

	before := commits.Load()
	require.NoError(t, comp.Root().Fire("#keep", "click"))
	assert.Never(t, func() bool { return commits.Load() != before }, 100*time.Millisecond, 5*time.Millisecond)

	require.NoError(t, comp.Root().Fire("#bump", "click"))
	assert.Eventually(t, func() bool { return commits.Load() > before }, time.Second, 5*time.Millisecond)
}

type reloader struct {
	*Element

	mu   sync.Mutex
	err  error
	took time.Duration
}

func (c *reloader) Reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	err := c.Render(ctx)
	c.mu.Lock()
	c.err, c.took = err, time.Since(start)
	c.mu.Unlock()
}

func (c *reloader) Template(Scope) string {
	return `<button onclick="reload">reload</button>`
}

func TestRenderFromHandlerDoesNotWait(t *testing.T) {
	var commits atomic.Int32
	comp := &reloader{}
	comp.Element = New(comp)
	result, err := TestMount(comp, commitCounter(&commits))
	require.NoError(t, err)
	defer result.Close()

	before := commits.Load()
	require.NoError(t, comp.Root().Fire("button", "click"))

	comp.mu.Lock()
	assert.NoError(t, comp.err)
	assert.Less(t, comp.took, time.Second)
	comp.mu.Unlock()

	assert.Eventually(t, func() bool { return commits.Load() > before }, time.Second, 5*time.Millisecond)
	require.NoError(t, result.Refresh())
	assert.False(t, result.LogContains("deadline exceeded"))
}
