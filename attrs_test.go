package shadow

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterView struct {
	*Element
}

func newCounterView() *counterView {
	c := &counterView{}
	c.Element = New(c)
	return c
}

func (c *counterView) Template(s Scope) string {
	n, _ := c.Prop("count")
	return "<span>" + n + "</span>"
}

// commitCounter counts commits per component.
func commitCounter(n *atomic.Int32) TestOption {
	return TestDocument(WithTracer(func(_ Component, p Phase) {
		if p == PhaseCommit {
			n.Add(1)
		}
	}))
}

func TestAttrToProp(t *testing.T) {
	tests := map[string]string{
		"count":       "count",
		"todo-index":  "todoIndex",
		"data-x-y":    "dataXY",
		"aria-label-": "ariaLabel-",
	}
	for attr, want := range tests {
		assert.Equal(t, want, AttrToProp(attr), attr)
	}
}

func TestPropToAttr(t *testing.T) {
	tests := map[string]string{
		"count":     "count",
		"todoIndex": "todo-index",
		"dataXY":    "data-x-y",
	}
	for prop, want := range tests {
		assert.Equal(t, want, PropToAttr(prop), prop)
	}
}

func TestObservedAttributeTriggersRender(t *testing.T) {
	var commits atomic.Int32
	result, err := TestMount(newCounterView(), TestClass(WithAttrs("count")), commitCounter(&commits))
	require.NoError(t, err)
	defer result.Close()

	before := commits.Load()
	el := result.Component.Base()
	el.SetAttribute("count", "5")

	v, ok := el.Prop("count")
	assert.True(t, ok)
	assert.Equal(t, "5", v)
	assert.Equal(t, 5, el.PropInt("count"))

	require.Eventually(t, func() bool { return commits.Load() > before }, time.Second, 5*time.Millisecond)
	require.NoError(t, result.Refresh())
	assert.True(t, result.HTMLContains("<span>5</span>"))
}

func TestUnobservedAttributeDoesNotRender(t *testing.T) {
	var commits atomic.Int32
	result, err := TestMount(newCounterView(), TestClass(WithAttrs("count")), commitCounter(&commits))
	require.NoError(t, err)
	defer result.Close()

	before := commits.Load()
	result.Component.Base().SetAttribute("title", "hello")

	assert.Never(t, func() bool { return commits.Load() != before }, 50*time.Millisecond, 5*time.Millisecond)
	assert.True(t, result.Component.Base().HasAttribute("title"))
}

func TestSetPropWritesAttribute(t *testing.T) {
	var commits atomic.Int32
	result, err := TestMount(newCounterView(), TestClass(WithAttrs("count")), commitCounter(&commits))
	require.NoError(t, err)
	defer result.Close()

	el := result.Component.Base()
	el.SetProp("count", 7)

	v, ok := el.GetAttribute("count")
	assert.True(t, ok)
	assert.Equal(t, "7", v)

	require.NoError(t, result.Refresh())
	assert.True(t, result.HTMLContains("<span>7</span>"))

	// The property → attribute write must not cycle back into more renders.
	settled := commits.Load()
	assert.Never(t, func() bool { return commits.Load() != settled }, 50*time.Millisecond, 5*time.Millisecond)

	el.SetProp("count", false)
	assert.False(t, el.HasAttribute("count"))
	assert.Equal(t, 0, el.PropInt("count"))
}

func TestPropBool(t *testing.T) {
	el := newCounterView().Base()

	assert.False(t, el.PropBool("done"))
	el.SetAttribute("done", "")
	assert.True(t, el.PropBool("done"))
	el.SetAttribute("done", "false")
	assert.False(t, el.PropBool("done"))
	el.SetAttribute("done", "true")
	assert.True(t, el.PropBool("done"))
}

func TestStateAttribute(t *testing.T) {
	result, err := TestMount(newCounterView())
	require.NoError(t, err)
	defer result.Close()

	el := result.Component.Base()
	el.SetAttribute("state", `{"todos":[1,2],"filter":"all"}`)
	assert.Equal(t, State{"todos": []any{float64(1), float64(2)}, "filter": "all"}, el.State())

	el.SetAttribute("state", "not json")
	assert.Equal(t, "not json", el.State())

	el.RemoveAttribute("state")
	assert.Equal(t, "not json", el.State())
}

func TestStateAttributeSameValueRenders(t *testing.T) {
	var commits atomic.Int32
	result, err := TestMount(newCounterView(), commitCounter(&commits))
	require.NoError(t, err)
	defer result.Close()

	el := result.Component.Base()
	el.SetAttribute("state", `{"n":1}`)
	require.Eventually(t, func() bool { return commits.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, result.Refresh())

	before := commits.Load()
	el.SetAttribute("state", `{"n":1}`)
	assert.Eventually(t, func() bool { return commits.Load() > before }, time.Second, 5*time.Millisecond)
}

func TestStateAttributeOnMount(t *testing.T) {
	comp := newCounterView()
	comp.SetAttribute("state", `{"n":3}`)

	result, err := TestMount(comp)
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, State{"n": float64(3)}, comp.State())
}
