package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"saludables/internal/liststore"
	"saludables/internal/model"
)

type source map[model.Category][]model.Item

func (s source) GetItems(ctx context.Context, c model.Category) ([]model.Item, error) {
	return s[c], nil
}

func newServer(t *testing.T, qps int) (*httptest.Server, *liststore.Store) {
	t.Helper()
	src := source{
		model.Beach: {
			{ID: "b1", Name: "Agua Dulce", SanitaryKey: "s", Latitude: "-12.16", Longitude: "-77.03"},
			{ID: "b2", Name: "Playa Sucia", SanitaryKey: "ns"},
		},
		model.Pool: {{ID: "p1", Name: "Piscina Municipal", SanitaryKey: "s"}},
	}
	st := liststore.New(context.Background(), src, nil, nil)
	srv := httptest.NewServer(BuildRoutes(st, qps))
	t.Cleanup(srv.Close)
	return srv, st
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()
	var v T
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestRefreshAndList(t *testing.T) {
	srv, _ := newServer(t, 10)
	res := post(t, srv.URL+"/refresh?category=beach", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	rr := decode[refreshResult](t, res)
	if rr.Count != 2 || rr.Loading || rr.Error != "" {
		t.Fatalf("refresh = %+v", rr)
	}

	res, err := http.Get(srv.URL + "/list?category=beach")
	if err != nil {
		t.Fatal(err)
	}
	list := decode[[]model.RankedItem](t, res)
	if len(list) != 1 || list[0].ID != "b1" {
		t.Fatalf("list = %+v", list)
	}

	res, _ = http.Get(srv.URL + "/all")
	if all := decode[[]model.RankedItem](t, res); len(all) != 1 {
		t.Fatalf("all = %+v", all)
	}
}

func TestInvalidCategory(t *testing.T) {
	srv, _ := newServer(t, 10)
	for _, u := range []string{"/list?category=lake", "/list", "/digest?category=x", "/watch?category=x"} {
		res, err := http.Get(srv.URL + u)
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d", u, res.StatusCode)
		}
	}
	res := post(t, srv.URL+"/refresh?category=lake", "")
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("refresh status = %d", res.StatusCode)
	}
}

func TestRefreshGate(t *testing.T) {
	srv, _ := newServer(t, 1)
	codes := map[int]int{}
	for i := 0; i < 3; i++ {
		res := post(t, srv.URL+"/refresh?category=pool", "")
		res.Body.Close()
		codes[res.StatusCode]++
	}
	if codes[http.StatusTooManyRequests] == 0 {
		t.Fatalf("codes = %v", codes)
	}
}

func TestTokenBucketRefills(t *testing.T) {
	now := time.Unix(100, 0)
	tb := NewTokenBucket(2)
	tb.now = func() time.Time { return now }
	tb.lastSec = now.Unix()
	if !tb.Allow() || !tb.Allow() || tb.Allow() {
		t.Fatal("capacity not enforced")
	}
	now = now.Add(time.Second)
	if !tb.Allow() {
		t.Fatal("bucket not refilled")
	}
}

func TestFilterFavoritesState(t *testing.T) {
	srv, st := newServer(t, 10)
	if err := st.Refresh(context.Background(), model.Beach); err != nil {
		t.Fatal(err)
	}
	state := decode[liststore.State](t, post(t, srv.URL+"/filter", `{"health":false,"query":"playa"}`))
	if state.Health || state.Filter != "playa" {
		t.Fatalf("state = %+v", state)
	}
	res, _ := http.Get(srv.URL + "/list?category=beach")
	if list := decode[[]model.RankedItem](t, res); len(list) != 1 || list[0].ID != "b2" {
		t.Fatalf("list = %+v", list)
	}

	res = post(t, srv.URL+"/filter", `{`)
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad body status = %d", res.StatusCode)
	}

	fav := decode[favoriteResult](t, post(t, srv.URL+"/favorites/b1/toggle", ""))
	if fav.ID != "b1" || !fav.Favorite {
		t.Fatalf("toggle = %+v", fav)
	}
	res, _ = http.Get(srv.URL + "/favorites/b1")
	if fav := decode[favoriteResult](t, res); !fav.Favorite {
		t.Fatalf("get = %+v", fav)
	}
	res, _ = http.Get(srv.URL + "/state")
	if state := decode[liststore.State](t, res); len(state.Favorites) != 1 {
		t.Fatalf("state = %+v", state)
	}
}

func TestDigest(t *testing.T) {
	srv, st := newServer(t, 10)
	if err := st.Refresh(context.Background(), model.Pool); err != nil {
		t.Fatal(err)
	}
	res, err := http.Get(srv.URL + "/digest?category=pool")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	sc := bufio.NewScanner(res.Body)
	sc.Scan()
	if sc.Text() != "AVAILABLE_POOLS_JSON:" {
		t.Fatalf("header = %q", sc.Text())
	}
}

func readEvent(t *testing.T, r *bufio.Reader) []model.RankedItem {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
			var v []model.RankedItem
			if err := json.Unmarshal([]byte(data), &v); err != nil {
				t.Fatal(err)
			}
			return v
		}
	}
}

func TestWatchStream(t *testing.T) {
	srv, st := newServer(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/watch?category=beach", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if ct := res.Header.Get("content-type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}
	r := bufio.NewReader(res.Body)
	if first := readEvent(t, r); len(first) != 0 {
		t.Fatalf("initial = %+v", first)
	}
	if st.ViewWatchers(model.Beach) != 1 {
		t.Fatalf("watchers = %d", st.ViewWatchers(model.Beach))
	}
	if err := st.Refresh(context.Background(), model.Beach); err != nil {
		t.Fatal(err)
	}
	if next := readEvent(t, r); len(next) != 1 || next[0].ID != "b1" {
		t.Fatalf("update = %+v", next)
	}

	cancel()
	res.Body.Close()
	deadline := time.Now().Add(2 * time.Second)
	for st.ViewWatchers(model.Beach) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not released after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
