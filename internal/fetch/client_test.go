package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"saludables/internal/model"
)

func TestFetchDecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/digesa-pool.json" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("unexpected auth header")
		}
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"status":200,"updated":"2026-01-10T07:05:00Z","count":2,"data":[
			{"id":"p1","strNombre":"Piscina Municipal","strLatitud":"-12.05","strLongitud":"-77.03","keyCalidadSanitaria":"s"},
			{"id":"p2","strNombre":"Piscina Club","strLatitud":"x","strLongitud":"-77.1","keyCalidadSanitaria":"ns"}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/data/", nil)
	if got := c.URL(model.Pool); got != srv.URL+"/data/digesa-pool.json" {
		t.Fatalf("url = %s", got)
	}
	items, err := c.Fetch(context.Background(), model.Pool)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != "p1" || items[1].SanitaryKey != "ns" {
		t.Fatalf("items = %+v", items)
	}
}

func TestFetchEmptyDataIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":200,"data":[],"count":0}`))
	}))
	defer srv.Close()
	items, err := New(srv.URL, nil).Fetch(context.Background(), model.Beach)
	if err != nil || len(items) != 0 {
		t.Fatalf("items=%v err=%v", items, err)
	}
}

func TestFetchFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server_error", http.StatusInternalServerError, `{}`, ErrNetwork},
		{"not_found", http.StatusNotFound, ``, ErrNetwork},
		{"bad_json", http.StatusOK, `{"data":`, ErrMalformed},
		{"missing_data", http.StatusOK, `{"status":200}`, ErrMalformed},
		{"data_not_array", http.StatusOK, `{"data":{"id":"1"}}`, ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			_, err := New(srv.URL, nil).Fetch(context.Background(), model.Beach)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestFetchStatusErrorCarriesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	_, err := New(srv.URL, nil).Fetch(context.Background(), model.Beach)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("err = %v", err)
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	_, err := New(url, nil).Fetch(context.Background(), model.Beach)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("err = %v", err)
	}
}
