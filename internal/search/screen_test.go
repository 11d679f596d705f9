package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchFunc func(ctx context.Context, q string) ([]Result, error)

func (f searchFunc) Search(ctx context.Context, q string) ([]Result, error) { return f(ctx, q) }

func staticSearcher(results []Result, err error) Searcher {
	return searchFunc(func(context.Context, string) ([]Result, error) { return results, err })
}

func TestScreenSubmitStoresResults(t *testing.T) {
	want := []Result{{ID: 1}, {ID: 2}}
	s := NewScreen(staticSearcher(want, nil))
	got, err := s.Submit(context.Background(), "cat")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	v := s.View()
	assert.Equal(t, want, v.Results)
	assert.Equal(t, "cat", v.Query)
	assert.False(t, v.Loading)
	assert.Empty(t, v.Error)
	assert.Empty(t, v.Notice)

	r, ok := s.Result(1)
	assert.True(t, ok)
	assert.Equal(t, int64(2), r.ID)
	_, ok = s.Result(2)
	assert.False(t, ok)
}

func TestScreenEmptyResultsNotice(t *testing.T) {
	s := NewScreen(staticSearcher(nil, nil))
	_, err := s.Submit(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Equal(t, MsgNoResults, s.View().Notice)
}

func TestScreenErrorKeepsPreviousResults(t *testing.T) {
	prev := []Result{{ID: 7}}
	fail := false
	s := NewScreen(searchFunc(func(context.Context, string) ([]Result, error) {
		if fail {
			return nil, &Error{Kind: KindRateLimit, Status: 429, Err: errors.New("slow down")}
		}
		return prev, nil
	}))
	_, err := s.Submit(context.Background(), "cat")
	require.NoError(t, err)

	fail = true
	_, err = s.Submit(context.Background(), "dog")
	require.Error(t, err)
	v := s.View()
	assert.Equal(t, prev, v.Results)
	assert.Equal(t, MsgRateLimit, v.Error)
	assert.Empty(t, v.Notice)
}

func TestScreenBlankQuerySetsValidationMessage(t *testing.T) {
	called := false
	s := NewScreen(searchFunc(func(context.Context, string) ([]Result, error) {
		called = true
		return nil, nil
	}))
	_, err := s.Submit(context.Background(), "")
	require.Error(t, err)
	assert.False(t, called)
	assert.Equal(t, MsgEmptyQuery, s.View().Error)
}

func TestScreenSupersededSubmitDiscarded(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	s := NewScreen(searchFunc(func(ctx context.Context, q string) ([]Result, error) {
		if q == "slow" {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return []Result{{ID: 99}}, nil
		}
		return []Result{{ID: 1}}, nil
	}))

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "slow")
		done <- err
	}()
	<-started
	assert.True(t, s.View().Loading)

	got, err := s.Submit(context.Background(), "fast")
	require.NoError(t, err)
	assert.Equal(t, []Result{{ID: 1}}, got)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded search did not return")
	}
	assert.Equal(t, []Result{{ID: 1}}, s.View().Results)
}

func TestScreenCloseCancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	s := NewScreen(searchFunc(func(ctx context.Context, q string) ([]Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "cat")
		done <- err
	}()
	<-started
	s.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("closed search did not return")
	}
	assert.Empty(t, s.View().Results)
	_, err := s.Submit(context.Background(), "again")
	assert.ErrorIs(t, err, ErrClosed)
}
