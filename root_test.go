package shadow

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unmounts atomic.Int32

type rowItem struct {
	*Element
}

func newRowItem() *rowItem {
	c := &rowItem{}
	c.Element = New(c)
	return c
}

func (c *rowItem) Unmounted() {
	unmounts.Add(1)
}

func (c *rowItem) Template(Scope) string {
	label, _ := c.Prop("label")
	return "<em>" + label + "</em>"
}

type tableView struct {
	*Element
}

func (c *tableView) Template(s Scope) string {
	out := `<section id="rows">`
	for _, label := range s.Slice("rows") {
		out += `<row-item label="` + label.(string) + `"><row-item label="nested"/></row-item>`
	}
	return out + `</section><p class="note">plain</p>`
}

func mountTable(t *testing.T, rows ...any) (*TestResult, *tableView) {
	t.Helper()
	reg := NewRegistry()
	MustLink(reg, newRowItem, WithAttrs("label"))

	comp := &tableView{}
	comp.Element = New(comp, WithState(State{"rows": rows}))
	result, err := TestMount(comp, TestRegistry(reg))
	require.NoError(t, err)
	t.Cleanup(result.Close)
	return result, comp
}

func TestRootMountsChildren(t *testing.T) {
	_, comp := mountTable(t, "one", "two")

	children := comp.Root().Children()
	require.Len(t, children, 2)
	for i, want := range []string{"one", "two"} {
		el := children[i].Base()
		label, _ := el.Prop("label")
		assert.Equal(t, want, label)
		assert.True(t, el.IsMounted())
		assert.False(t, el.FirstRender())
		assert.Equal(t, "<em>"+want+"</em>", el.Root().Markup())
		assert.Same(t, comp.Document(), el.Document())
	}
}

func TestRootReplacesChildrenOnCommit(t *testing.T) {
	result, comp := mountTable(t, "one", "two")
	old := comp.Root().Children()
	before := unmounts.Load()

	comp.SetState(State{"rows": []any{"three"}})
	require.NoError(t, result.Refresh())

	assert.GreaterOrEqual(t, unmounts.Load(), before+2)
	for _, c := range old {
		assert.False(t, c.Base().IsMounted())
	}
	children := comp.Root().Children()
	require.Len(t, children, 1)
	label, _ := children[0].Base().Prop("label")
	assert.Equal(t, "three", label)
}

func TestRootQuerySelector(t *testing.T) {
	_, comp := mountTable(t, "one", "two")
	root := comp.Root()

	n, err := root.QuerySelector("p.note")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "p", n.Data)

	all, err := root.QuerySelectorAll("#rows > row-item")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err = root.QuerySelector("table")
	require.NoError(t, err)
	assert.Nil(t, n)

	_, err = root.QuerySelector("p[")
	assert.Error(t, err)

	c, err := root.Component(`row-item[label="two"]`)
	require.NoError(t, err)
	label, _ := c.Base().Prop("label")
	assert.Equal(t, "two", label)

	_, err = root.Component("p.note")
	assert.Error(t, err)
	_, err = root.Component("table")
	assert.Error(t, err)
	assert.Error(t, root.Fire("table", "click"))
}

func TestRootHTMLAndStyle(t *testing.T) {
	_, comp := mountTable(t, "one")
	root := comp.Root()

	assert.Same(t, comp.Base(), root.Host())
	assert.Contains(t, root.HTML(), `<p class="note">plain</p>`)
	assert.Contains(t, root.Markup(), `<row-item label="nested"></row-item>`)
	assert.Empty(t, root.Style())
}

type unquotedList struct {
	*Element
}

func (c *unquotedList) Template(Scope) string {
	return `<ul><row-item label=solo/><li id="after">after</li></ul>`
}

func TestRootUnquotedSelfClosingChild(t *testing.T) {
	reg := NewRegistry()
	MustLink(reg, newRowItem, WithAttrs("label"))

	comp := &unquotedList{}
	comp.Element = New(comp)
	result, err := TestMount(comp, TestRegistry(reg))
	require.NoError(t, err)
	t.Cleanup(result.Close)
	root := comp.Root()

	n, err := root.QuerySelector("ul > li#after")
	require.NoError(t, err)
	assert.NotNil(t, n)

	n, err = root.QuerySelector("row-item li")
	require.NoError(t, err)
	assert.Nil(t, n)

	c, err := root.Component("row-item")
	require.NoError(t, err)
	label, _ := c.Base().Prop("label")
	assert.Equal(t, "solo", label)
}
