package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"uzimasmart/internal/ports"
)

var (
	_ ports.SMSSender = (*Client)(nil)
	_ ports.SMSSender = LogSender{}
)

func newTestClient(url string) *Client {
	c := NewClient(Options{Username: "sandbox", APIKey: "key", SenderID: "UZIMA", BaseURL: url})
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestSendPostsForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messaging" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apiKey") != "key" {
			t.Errorf("apiKey header = %q", r.Header.Get("apiKey"))
		}
		if err := r.ParseForm(); err != nil {
			t.Error(err)
			return
		}
		if got := r.PostForm.Get("to"); got != "+254712345678,+254722000000" {
			t.Errorf("to = %q", got)
		}
		if r.PostForm.Get("from") != "UZIMA" || r.PostForm.Get("username") != "sandbox" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 1/2","Recipients":[
			{"number":"+254712345678","status":"Success","statusCode":101,"messageId":"a"},
			{"number":"+254722000000","status":"InvalidPhoneNumber","statusCode":403}]}}`))
	}))
	defer server.Close()

	err := newTestClient(server.URL).Send(context.Background(), []string{"+254712345678", "+254722000000"}, "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSendFailures(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
		want   string
	}{
		"http error":       {http.StatusUnauthorized, "The supplied authentication is invalid", "status 401"},
		"nobody accepted":  {http.StatusCreated, `{"SMSMessageData":{"Message":"InvalidSenderId","Recipients":[]}}`, "no recipient"},
		"garbage response": {http.StatusOK, "<html>", "parse response"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()
			err := newTestClient(server.URL).Send(context.Background(), []string{"+254712345678"}, "hi")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestSendNobodyIsNoop(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	if err := c.Send(context.Background(), nil, "hi"); err != nil {
		t.Errorf("err = %v", err)
	}
}
