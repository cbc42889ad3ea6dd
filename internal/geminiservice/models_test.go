package geminiservice

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listing = `{"models":[
	{"name":"models/gemini-x","supportedGenerationMethods":["generateContent"]},
	{"name":"models/text-embedding","supportedGenerationMethods":["embedContent"]},
	{"name":"models/gemini-y","supportedGenerationMethods":["generateContent"]}
]}`

func TestListModels_FiltersAndStripsPrefix(t *testing.T) {
	srv := newFakeUpstream(t, &fakeUpstream{models: listing})
	client := newTestClient(srv.URL, Options{})

	ids, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-x", "gemini-y"}, ids)
}

func TestListModels_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-2xx", http.StatusInternalServerError, listing},
		{"malformed body", http.StatusOK, `{"models":`},
		{"no generateContent models", http.StatusOK, `{"models":[{"name":"models/e","supportedGenerationMethods":["embedContent"]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeUpstream(t, &fakeUpstream{listStatus: tt.status, models: tt.body})
			client := newTestClient(srv.URL, Options{})

			_, err := client.ListModels(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCapabilityListUnavailable))
		})
	}
}

func TestCandidates_PrimaryFirstThenListed(t *testing.T) {
	srv := newFakeUpstream(t, &fakeUpstream{models: listing})
	client := newTestClient(srv.URL, Options{PrimaryModel: "gemini-y"})

	assert.Equal(t, []string{"gemini-y", "gemini-x"}, client.Candidates(context.Background()))
}

func TestCandidates_ListingFailureUsesDefaults(t *testing.T) {
	srv := newFakeUpstream(t, &fakeUpstream{listStatus: http.StatusServiceUnavailable})
	client := newTestClient(srv.URL, Options{
		PrimaryModel:   "primary",
		FallbackModels: []string{"fb-1", "primary", "fb-2"},
	})

	assert.Equal(t, []string{"primary", "fb-1", "fb-2"}, client.Candidates(context.Background()))
}

func TestCandidates_UnreachableUpstreamNeverEmpty(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1", Options{Timeout: 200 * time.Millisecond})

	ids := client.Candidates(context.Background())
	assert.NotEmpty(t, ids)
}

func TestCandidates_Capped(t *testing.T) {
	srv := newFakeUpstream(t, &fakeUpstream{models: listing})
	client := newTestClient(srv.URL, Options{PrimaryModel: "p", MaxCandidates: 2})

	assert.Equal(t, []string{"p", "gemini-x"}, client.Candidates(context.Background()))
}

func TestCandidates_CachesSuccessfulListing(t *testing.T) {
	f := &fakeUpstream{models: listing}
	srv := newFakeUpstream(t, f)
	client := newTestClient(srv.URL, Options{ModelCacheTTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, []string{"gemini-x", "gemini-y"}, client.Candidates(context.Background()))
		}()
	}
	wg.Wait()

	f.mu.Lock()
	before := f.listCalls
	f.mu.Unlock()
	assert.GreaterOrEqual(t, before, 1)

	client.Candidates(context.Background())

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, before, f.listCalls)
}

func TestCandidates_SharedListingSurvivesFirstCallerCancel(t *testing.T) {
	f := &fakeUpstream{models: listing, listDelay: 200 * time.Millisecond}
	srv := newFakeUpstream(t, f)
	client := newTestClient(srv.URL, Options{ModelCacheTTL: time.Minute})

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		client.Candidates(firstCtx)
	}()

	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.listCalls == 1
	}, time.Second, 5*time.Millisecond)

	second := make(chan []string, 1)
	go func() { second <- client.Candidates(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.Equal(t, []string{"gemini-x", "gemini-y"}, <-second)
	wg.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 1, f.listCalls)
}

func TestCandidates_NoCacheListsEveryInvocation(t *testing.T) {
	f := &fakeUpstream{models: listing}
	srv := newFakeUpstream(t, f)
	client := newTestClient(srv.URL, Options{})

	client.Candidates(context.Background())
	client.Candidates(context.Background())

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 2, f.listCalls)
}

func TestCandidates_CachedListIsACopy(t *testing.T) {
	srv := newFakeUpstream(t, &fakeUpstream{models: listing})
	client := newTestClient(srv.URL, Options{ModelCacheTTL: time.Minute})

	first := client.Candidates(context.Background())
	first[0] = "mutated"
	assert.Equal(t, []string{"gemini-x", "gemini-y"}, client.Candidates(context.Background()))
}
