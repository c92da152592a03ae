package shadow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lifecycleView struct {
	*Element

	mu     sync.Mutex
	events []string
}

func newLifecycleView() *lifecycleView {
	c := &lifecycleView{}
	c.Element = New(c)
	return c
}

func (c *lifecycleView) record(s string) {
	c.mu.Lock()
	c.events = append(c.events, s)
	c.mu.Unlock()
}

func (c *lifecycleView) Mounted(ctx context.Context) {
	c.record("mounted")
}

func (c *lifecycleView) Unmounted() {
	c.record("unmounted")
}

func (c *lifecycleView) Template(Scope) string {
	c.record("template")
	return "<p>lifecycle</p>"
}

func (c *lifecycleView) log() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func newTestDocument(reg *Registry) *Document {
	return NewDocument(
		WithRegistry(reg),
		WithClock(ImmediateClock{}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDocumentMountLifecycle(t *testing.T) {
	reg := NewRegistry()
	MustLink(reg, newLifecycleView)
	doc := newTestDocument(reg)
	defer doc.Close()

	comp := newLifecycleView()
	require.NoError(t, doc.Mount(testContext(t), comp))

	assert.True(t, comp.IsMounted())
	assert.Equal(t, "lifecycle-view", comp.Tag())
	assert.Equal(t, []string{"mounted", "template"}, comp.log())
	assert.Equal(t, []Component{comp}, doc.Components())
	assert.NotNil(t, comp.Context())

	ctx := comp.Context()
	require.NoError(t, doc.Unmount(comp))
	assert.Equal(t, []string{"mounted", "template", "unmounted"}, comp.log())
	assert.False(t, comp.IsMounted())
	assert.Error(t, ctx.Err())
	assert.Empty(t, doc.Components())

	assert.ErrorIs(t, doc.Unmount(comp), ErrNotMounted)
}

func TestDocumentRemount(t *testing.T) {
	reg := NewRegistry()
	MustLink(reg, newLifecycleView)
	doc := newTestDocument(reg)
	defer doc.Close()

	comp := newLifecycleView()
	require.NoError(t, doc.Mount(testContext(t), comp))
	assert.ErrorIs(t, doc.Mount(testContext(t), comp), ErrAlreadyMounted)

	require.NoError(t, doc.Unmount(comp))
	require.NoError(t, doc.Mount(testContext(t), comp))
	assert.True(t, comp.IsMounted())

	other := newTestDocument(reg)
	defer other.Close()
	assert.ErrorIs(t, other.Mount(testContext(t), comp), ErrAlreadyMounted)
}

func TestDocumentMountErrors(t *testing.T) {
	doc := newTestDocument(NewRegistry())
	defer doc.Close()

	err := doc.Mount(testContext(t), newLifecycleView())
	assert.ErrorIs(t, err, ErrUnregistered)

	err = doc.Mount(testContext(t), &lifecycleView{})
	assert.ErrorIs(t, err, ErrNoElement)
	assert.True(t, IsUsageError(err))

	_, err = doc.Create(testContext(t), "no-such-tag")
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestDocumentCreate(t *testing.T) {
	reg := NewRegistry()
	MustLink(reg, newRowItem, WithAttrs("label"))
	doc := newTestDocument(reg)
	defer doc.Close()

	comp, err := doc.Create(testContext(t), "row-item", Attribute{Name: "label", Value: "made"})
	require.NoError(t, err)
	assert.Equal(t, "<em>made</em>", comp.Base().Root().Markup())
}

func TestDocumentClose(t *testing.T) {
	reg := NewRegistry()
	MustLink(reg, newLifecycleView)
	doc := NewDocument(WithRegistry(reg), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	comp := newLifecycleView()
	require.NoError(t, doc.Mount(testContext(t), comp))
	doc.Close()

	assert.False(t, comp.IsMounted())
	assert.Empty(t, doc.Components())
	assert.Contains(t, comp.log(), "unmounted")
}
