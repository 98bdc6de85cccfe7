package dashboard

import (
	"context"
	"sync"

	"github.com/xela07ax/vintrade-console/internal/apiclient"
)

// fakeAPI отвечает по имени запроса (Request.Name).
type fakeAPI struct {
	mu       sync.Mutex
	handlers map[string]func(apiclient.Request) ([]byte, error)
	calls    []apiclient.Request
	noTokens bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{handlers: make(map[string]func(apiclient.Request) ([]byte, error))}
}

func (f *fakeAPI) on(name string, h func(apiclient.Request) ([]byte, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
}

func (f *fakeAPI) reply(name, body string) {
	f.on(name, func(apiclient.Request) ([]byte, error) { return []byte(body), nil })
}

func (f *fakeAPI) Do(ctx context.Context, r apiclient.Request) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, r)
	h := f.handlers[r.Name]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &apiclient.TransportError{Op: r.Method + " " + r.Path, Err: err}
	}
	if h == nil {
		return nil, &apiclient.APIError{Status: 404, Detail: "no handler for " + r.Name}
	}
	return h(r)
}

func (f *fakeAPI) HasTokenSource() bool { return !f.noTokens }

func (f *fakeAPI) requests(name string) []apiclient.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiclient.Request
	for _, r := range f.calls {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
