package shadow

import (
	"context"
	"log/slog"
	"regexp"
	"sync"

	"github.com/pthm/shadow/lib/markup"
)

// Phase identifies a step of the render pipeline reported to a Tracer.
type Phase int

const (
	// PhaseGateReady is reported once the resource gate has settled.
	PhaseGateReady Phase = iota
	// PhaseHide is reported when the element is hidden for its first render.
	PhaseHide
	// PhaseCommit is reported after new content replaces the render root.
	PhaseCommit
	// PhaseReveal is reported when the element is shown after its first
	// render.
	PhaseReveal
)

func (p Phase) String() string {
	switch p {
	case PhaseGateReady:
		return "gate-ready"
	case PhaseHide:
		return "hide"
	case PhaseCommit:
		return "commit"
	case PhaseReveal:
		return "reveal"
	default:
		return "unknown"
	}
}

// Tracer observes render phases. It is called synchronously from the
// render goroutine and must not block.
type Tracer func(c Component, p Phase)

// scheduler coalesces render requests. At most one pass runs at a time;
// requests arriving while a pass runs are served together by one follow-up
// pass.
type scheduler struct {
	mu      sync.Mutex
	running bool
	dirty   bool
	waiters []chan error
}

// Render renders the element and returns once the new content has been
// committed (and, on the first render, revealed). Concurrent calls share
// passes: a call made while a pass is running waits for the next one.
//
// A pass cannot evaluate while one of the element's handlers or its
// Mounted hook is running. Called from there, Render schedules the pass and
// returns nil without waiting for it. Templates and BeforeUpdate must not
// call Render.
func (e *Element) Render(ctx context.Context) error {
	if e.turnHeld() {
		if !e.IsMounted() {
			return ErrNotMounted
		}
		e.requestRender(nil)
		return nil
	}

	done := make(chan error, 1)
	e.requestRender(done)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// requestRender schedules a pass without waiting for it. done, if non-nil,
// receives the result of the pass that serves the request.
func (e *Element) requestRender(done chan error) {
	if !e.IsMounted() {
		if done != nil {
			done <- ErrNotMounted
		}
		return
	}

	s := &e.sched
	s.mu.Lock()
	s.dirty = true
	if done != nil {
		s.waiters = append(s.waiters, done)
	}
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go e.renderLoop()
}

func (e *Element) renderLoop() {
	s := &e.sched
	for {
		s.mu.Lock()
		if !s.dirty {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.dirty = false
		waiters := s.waiters
		s.waiters = nil
		s.mu.Unlock()

		err := e.renderOnce()
		for _, w := range waiters {
			w <- err
		}
	}
}

// renderOnce runs one pass of the pipeline: wait for the gate, evaluate,
// preprocess and commit, with the hide/reveal choreography on the first
// render only.
func (e *Element) renderOnce() error {
	e.mu.Lock()
	if !e.mounted {
		e.mu.Unlock()
		return ErrNotMounted
	}
	ctx, gate, root, doc, logger := e.ctx, e.gate, e.root, e.doc, e.logger
	first := e.firstRender
	e.mu.Unlock()

	css, err := gate.Wait(ctx)
	if err != nil {
		return err
	}
	doc.trace(e.self, PhaseGateReady)

	styles, body, err := e.evaluate(ctx)
	if err != nil {
		logger.Error("render failed", "err", err)
		return err
	}
	warnBlockingCSS(logger, styles)

	body = markup.Process(body, e, logger)
	style := css
	if styles != "" {
		if style != "" {
			style += "\n"
		}
		style += styles
	}

	if !first {
		if err := root.commit(ctx, style, body); err != nil {
			return err
		}
		doc.trace(e.self, PhaseCommit)
		return nil
	}

	e.setHidden(true)
	doc.trace(e.self, PhaseHide)
	if err := doc.clock.NextFrame(ctx); err != nil {
		return err
	}
	if err := root.commit(ctx, style, body); err != nil {
		return err
	}
	doc.trace(e.self, PhaseCommit)
	if err := doc.clock.NextFrame(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.hidden = false
	e.firstRender = false
	e.mu.Unlock()
	doc.trace(e.self, PhaseReveal)
	return nil
}

func (e *Element) setHidden(v bool) {
	e.mu.Lock()
	e.hidden = v
	e.mu.Unlock()
}

// evaluate produces the style and markup text under the element's turn.
func (e *Element) evaluate(ctx context.Context) (styles, body string, err error) {
	e.turn.Lock()
	defer e.turn.Unlock()

	e.mu.Lock()
	pre := e.preUpdate
	e.preUpdate = false
	e.mu.Unlock()
	if pre {
		if u, ok := e.self.(PreUpdater); ok {
			u.BeforeUpdate()
		}
	}

	s := e.scope()
	tmpl, sty := producers(e.self, s.Name)
	if sty != nil {
		if styles, err = Evaluate(ctx, sty, s); err != nil {
			return "", "", err
		}
	}
	if body, err = Evaluate(ctx, tmpl, s); err != nil {
		return "", "", err
	}
	return styles, body, nil
}

var (
	remoteImport = regexp.MustCompile(`(?i)@import\s+(?:url\(\s*)?['"]?\s*(?:https?:)?//`)
	fontFace     = regexp.MustCompile(`(?i)@font-face`)
)

// warnBlockingCSS logs a warning for style constructs that block rendering
// and so defeat the resource gate.
func warnBlockingCSS(logger *slog.Logger, styles string) {
	if styles == "" {
		return
	}
	if remoteImport.MatchString(styles) {
		logger.Warn("remote @import in styles blocks rendering; declare it in CSSImports")
	}
	if fontFace.MatchString(styles) {
		logger.Warn("@font-face in styles blocks rendering; declare fonts in CSSImports")
	}
}
