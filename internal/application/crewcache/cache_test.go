package crewcache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewportal/internal/application/crewcache"
	"crewportal/internal/domain/crew"
	"crewportal/internal/domain/session"
)

type fakeFetcher struct {
	mu      sync.Mutex
	records map[string]*crew.Member
	err     error
	calls   []string
	tokens  []string
	block   chan struct{}
}

func (f *fakeFetcher) FetchProfile(_ context.Context, token, psn string) (*crew.Member, error) {
	f.mu.Lock()
	f.calls = append(f.calls, psn)
	f.tokens = append(f.tokens, token)
	block, err := f.block, f.err
	rec := f.records[psn]
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func memberSession(username string) session.Session {
	u := session.NewUser(username)
	return session.Session{Mode: session.ModeMember, User: &u, AccessToken: "tok"}
}

// TestSync_SkipsWhenLoadedForSamePSN tests that normalization prevents refetches.
func TestSync_SkipsWhenLoadedForSamePSN(t *testing.T) {
	api := &fakeFetcher{records: map[string]*crew.Member{"KLM12345": {PSN: "KLM12345", FirstName: "Jan"}}}
	c := crewcache.New(api)
	ctx := context.Background()

	m, err := c.Sync(ctx, memberSession("klm12345"))
	require.NoError(t, err)
	assert.Equal(t, "Jan", m.FirstName)
	assert.Equal(t, []string{"tok"}, api.tokens)

	u := session.User{Username: " klm12345 ", StaffIdentity: "  KLM12345"}
	_, err = c.Sync(ctx, session.Session{Mode: session.ModeMember, User: &u})
	require.NoError(t, err)
	assert.Equal(t, 1, api.callCount(), "same normalized PSN must not refetch")
}

// TestSync_RefetchesOnPSNChange tests that a different identity is fetched.
func TestSync_RefetchesOnPSNChange(t *testing.T) {
	api := &fakeFetcher{records: map[string]*crew.Member{
		"KLM12345": {PSN: "KLM12345"},
		"HV654321": {PSN: "HV654321"},
	}}
	c := crewcache.New(api)
	ctx := context.Background()

	_, _ = c.Sync(ctx, memberSession("KLM12345"))
	m, err := c.Sync(ctx, memberSession("HV654321"))
	require.NoError(t, err)
	assert.Equal(t, "HV654321", m.PSN)
	assert.Equal(t, "HV654321", c.LoadedFor())
	assert.Equal(t, []string{"KLM12345", "HV654321"}, api.calls)
}

// TestSync_NoRecordFetchesAgain tests that a nil record does not count as cached.
func TestSync_NoRecordFetchesAgain(t *testing.T) {
	api := &fakeFetcher{records: map[string]*crew.Member{}}
	c := crewcache.New(api)
	ctx := context.Background()

	m, err := c.Sync(ctx, memberSession("KLM12345"))
	require.NoError(t, err)
	assert.Nil(t, m)
	_, _ = c.Sync(ctx, memberSession("KLM12345"))
	assert.Equal(t, 2, api.callCount())
}

// TestSync_GuestAndBreachClear tests the paths that clear without fetching.
func TestSync_GuestAndBreachClear(t *testing.T) {
	api := &fakeFetcher{records: map[string]*crew.Member{"KLM12345": {PSN: "KLM12345"}}}
	c := crewcache.New(api)
	ctx := context.Background()

	_, _ = c.Sync(ctx, memberSession("KLM12345"))
	require.NotNil(t, c.Current())

	m, err := c.Sync(ctx, session.Guest())
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Nil(t, c.Current())

	_, _ = c.Sync(ctx, memberSession("KLM12345"))
	require.NotNil(t, c.Current())
	_, err = c.Sync(ctx, session.Session{Mode: session.ModeMember})
	require.NoError(t, err)
	assert.Nil(t, c.Current())
	assert.Equal(t, 2, api.callCount())
}

// TestLoadCrew_FailureKeepsCache tests that a failed fetch keeps stale data.
func TestLoadCrew_FailureKeepsCache(t *testing.T) {
	api := &fakeFetcher{records: map[string]*crew.Member{"KLM12345": {PSN: "KLM12345", FirstName: "Jan"}}}
	c := crewcache.New(api)
	ctx := context.Background()

	_, err := c.LoadCrew(ctx, memberSession("KLM12345"), "")
	require.NoError(t, err)

	api.err = errors.New("upstream down")
	_, err = c.LoadCrew(ctx, memberSession("KLM12345"), "")
	require.Error(t, err)
	require.NotNil(t, c.Current())
	assert.Equal(t, "Jan", c.Current().FirstName)
}

// TestLoadCrew_Override tests the identity override and the empty identity case.
func TestLoadCrew_Override(t *testing.T) {
	api := &fakeFetcher{records: map[string]*crew.Member{"HV654321": {PSN: "HV654321"}}}
	c := crewcache.New(api)
	ctx := context.Background()

	m, err := c.LoadCrew(ctx, session.Guest(), " hv654321 ")
	require.NoError(t, err)
	assert.Equal(t, "HV654321", m.PSN)

	m, err = c.LoadCrew(ctx, session.Guest(), "")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Nil(t, c.Current(), "empty identity clears")
	assert.Equal(t, 1, api.callCount())
}

// TestLoadCrew_StaleResultDiscarded tests that a slow earlier fetch cannot overwrite a newer one.
func TestLoadCrew_StaleResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	api := &fakeFetcher{
		records: map[string]*crew.Member{"KLM12345": {PSN: "KLM12345"}, "HV654321": {PSN: "HV654321"}},
		block:   release,
	}
	c := crewcache.New(api)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.LoadCrew(ctx, memberSession("KLM12345"), "")
	}()
	require.Eventually(t, func() bool { return api.callCount() == 1 }, time.Second, time.Millisecond)

	api.mu.Lock()
	api.block = nil
	api.mu.Unlock()

	_, err := c.LoadCrew(ctx, memberSession("HV654321"), "")
	require.NoError(t, err)

	close(release)
	<-done
	assert.Equal(t, "HV654321", c.Current().PSN)
	assert.Equal(t, "HV654321", c.LoadedFor())
}
