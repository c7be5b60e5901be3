package editclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/doodle/editproxy"
)

func TestSubmit_OK(t *testing.T) {
	var got editproxy.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/edit2" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"editedImage":"data:image/png;base64,AAAA","responseText":null}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/"})
	resp, err := c.Submit(context.Background(), editproxy.Request{Image: "data:image/png;base64,xx", Command: "add clouds"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Command != "add clouds" || got.Image != "data:image/png;base64,xx" {
		t.Errorf("server got %+v", got)
	}
	if resp.EditedImage == nil || *resp.EditedImage != "data:image/png;base64,AAAA" {
		t.Errorf("editedImage = %v", resp.EditedImage)
	}
	if resp.ResponseText != nil {
		t.Errorf("responseText = %v, want nil", *resp.ResponseText)
	}
}

func TestSubmit_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Failed to generate image","details":"quota"}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL, Path: "edit"}).Submit(context.Background(), editproxy.Request{Command: "x"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != 500 || se.Message != "Failed to generate image" || se.Details != "quota" {
		t.Errorf("se = %+v", se)
	}
}

func TestSubmit_PlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Submit(context.Background(), editproxy.Request{Command: "x"})
	var se *StatusError
	if !errors.As(err, &se) || se.Message != "bad gateway" {
		t.Fatalf("err = %v", err)
	}
}

func TestSubmit_OversizedErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(strings.Repeat("x", maxErrorBody+1)))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Submit(context.Background(), editproxy.Request{Command: "x"})
	var se *StatusError
	if !errors.As(err, &se) || se.Message != "Service Unavailable" {
		t.Fatalf("err = %v", err)
	}
}

func TestSubmit_AgainstProxy(t *testing.T) {
	// WHAT: The client round-trips against the real handler.
	// WHY: Field names must match on both sides of the wire.
	svc := editproxy.New(editproxy.Config{Generator: nullGen{}, SaveDir: t.TempDir()})
	srv := httptest.NewServer(svc.Handler(editproxy.VariantEdit2))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Path: "/"})
	resp, err := c.Submit(context.Background(), editproxy.Request{Command: "draw apple"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.EditedImage != nil || resp.ResponseText != nil {
		t.Errorf("resp = %+v", resp)
	}
	_, err = c.Submit(context.Background(), editproxy.Request{Command: ""})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}
