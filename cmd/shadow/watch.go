package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pthm/shadow/lib/generator"
)

// debounce collapses bursts of writes (editors often save in several
// steps) into one regeneration.
const debounce = 150 * time.Millisecond

// watch regenerates the registration tables whenever a Go source file in
// one of the matched packages changes. It returns when ctx is done.
func watch(ctx context.Context, gen *generator.Generator, pats []string, log *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs, err := gen.Packages(pats...)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			return err
		}
	}
	log.Info("watching for changes", "packages", len(dirs))

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, gen.Output()) {
				continue
			}
			pending[filepath.Dir(ev.Name)] = true
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("watch error", "err", err)
		case <-timer.C:
			for dir := range pending {
				if err := gen.Generate(dir); err != nil {
					log.Error("regeneration failed", "package", dir, "err", err)
				}
			}
			clear(pending)
		}
	}
}

// relevant reports whether ev touches a source file the generator reads.
// output is the generated file name, whose own writes are ignored.
func relevant(ev fsnotify.Event, output string) bool {
	name := filepath.Base(ev.Name)
	if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") ||
		name == output || name == generator.DefaultOutput {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
