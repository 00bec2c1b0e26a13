package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// FakeResponse describes the behaviour of a single fake upstream call.
type FakeResponse struct {
	Delay  time.Duration
	Status int
	Body   string
}

// FakeSource is an httptest server standing in for the upstream creator
// listing, with a scripted sequence of responses.
type FakeSource struct {
	server    *httptest.Server
	mu        sync.Mutex
	responses []FakeResponse
	index     int
	calls     int
	lastReq   http.Header
}

// NewFakeSource starts a fake upstream following the given response plan.
// Once the plan is exhausted the last response repeats. With no plan it
// answers 200 with an empty array.
func NewFakeSource(responses ...FakeResponse) *FakeSource {
	if len(responses) == 0 {
		responses = []FakeResponse{{Status: http.StatusOK, Body: "[]"}}
	}

	fs := &FakeSource{
		responses: responses,
	}

	fs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := fs.next(r.Header.Clone())
		if resp.Delay > 0 {
			timer := time.NewTimer(resp.Delay)
			select {
			case <-timer.C:
			case <-r.Context().Done():
				timer.Stop()
				return
			}
		}

		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if resp.Body != "" {
			_, _ = w.Write([]byte(resp.Body))
		}
	}))

	return fs
}

// Creators returns a 200 response whose body is the JSON encoding of records.
func Creators(records ...map[string]any) FakeResponse {
	if records == nil {
		records = []map[string]any{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		panic(err)
	}
	return FakeResponse{Status: http.StatusOK, Body: string(raw)}
}

func (f *FakeSource) next(header http.Header) FakeResponse {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.lastReq = header
	if f.index >= len(f.responses) {
		return f.responses[len(f.responses)-1]
	}

	resp := f.responses[f.index]
	f.index++
	return resp
}

// URL returns the base URL for the fake source.
func (f *FakeSource) URL() string {
	if f == nil || f.server == nil {
		return ""
	}
	return f.server.URL
}

// Calls returns the number of requests handled so far.
func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastHeader returns the request headers of the most recent call.
func (f *FakeSource) LastHeader() http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

// SetResponses replaces the response plan and resets the cursor. The call
// count is kept.
func (f *FakeSource) SetResponses(responses ...FakeResponse) {
	if f == nil {
		return
	}
	if len(responses) == 0 {
		responses = []FakeResponse{{Status: http.StatusOK, Body: "[]"}}
	}
	f.mu.Lock()
	f.responses = responses
	f.index = 0
	f.mu.Unlock()
}

// Close terminates the hosted httptest server.
func (f *FakeSource) Close() {
	if f == nil || f.server == nil {
		return
	}
	f.server.Close()
}
