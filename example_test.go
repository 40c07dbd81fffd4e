package qscrape_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/adamwoolhether/qscrape"
	"github.com/adamwoolhether/qscrape/session"
)

func ExampleNewCookieSession() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "user", Value: "gopher"})
			return
		}
		c, err := r.Cookie("user")
		if err != nil {
			fmt.Fprint(w, "hello stranger")
			return
		}
		fmt.Fprintf(w, "hello %s", c.Value)
	}))
	defer ts.Close()

	s, err := qscrape.NewCookieSession(session.WithUserAgent("example/1.0"))
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	ctx := context.Background()
	if _, err := s.Post(ctx, ts.URL+"/login", map[string]string{"user": "gopher"}); err != nil {
		fmt.Println("error:", err)
		return
	}

	text, err := s.Get(ctx, ts.URL+"/home", nil)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(text)
	// Output: hello gopher
}
