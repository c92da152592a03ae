package shadowecho

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pthm/shadow"
)

type greetingCard struct {
	*shadow.Element
}

func newGreetingCard() *greetingCard {
	c := &greetingCard{}
	c.Element = shadow.New(c)
	return c
}

func (c *greetingCard) Template(s shadow.Scope) string {
	return `<p class="greeting">Hello, ` + s.String("name") + `!</p>`
}

func newTestDocument(t *testing.T) *shadow.Document {
	t.Helper()
	reg := shadow.NewRegistry()
	if _, err := shadow.Link(reg, newGreetingCard, shadow.WithTag("greeting-card")); err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	doc := NewDocument(shadow.WithRegistry(reg))
	t.Cleanup(doc.Close)
	return doc
}

func TestMount(t *testing.T) {
	e := echo.New()
	doc := newTestDocument(t)
	Mount(e, "/greet", doc, "greeting-card")

	req := httptest.NewRequest(http.MethodGet, "/greet?state="+url.QueryEscape(`{"name":"Ada"}`), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{
		`<greeting-card state=`,
		`<template shadowrootmode="open">`,
		`Hello, Ada!`,
		`</template></greeting-card>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if n := len(doc.Components()); n != 0 {
		t.Errorf("expected request instance to be unmounted, %d remain", n)
	}
}

func TestMountGroup(t *testing.T) {
	e := echo.New()
	doc := newTestDocument(t)
	g := e.Group("/app")
	MountGroup(g, "/greet", doc, "greeting-card")

	req := httptest.NewRequest(http.MethodGet, "/app/greet", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Hello, !") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestUnknownTagIsNotFound(t *testing.T) {
	e := echo.New()
	doc := newTestDocument(t)
	Mount(e, "/missing", doc, "missing-card")

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCustomAttrs(t *testing.T) {
	e := echo.New()
	doc := newTestDocument(t)
	Mount(e, "/greet/:name", doc, "greeting-card", WithAttrs(func(c echo.Context) []shadow.Attribute {
		return []shadow.Attribute{{Name: "state", Value: `{"name":"` + c.Param("name") + `"}`}}
	}))

	req := httptest.NewRequest(http.MethodGet, "/greet/Grace", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "Hello, Grace!") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}
