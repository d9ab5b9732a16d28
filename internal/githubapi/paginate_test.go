package githubapi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-github/v50/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedList simulates a three-page listing call.
func pagedList(pages [][]string) (ListFunc[string], *int) {
	calls := new(int)
	fn := func(ctx context.Context, opts *github.ListOptions) ([]string, *github.Response, error) {
		*calls++
		page := opts.Page
		if page == 0 {
			page = 1
		}
		if page > len(pages) {
			return nil, &github.Response{NextPage: 0}, nil
		}
		next := page + 1
		if next > len(pages) {
			next = 0
		}
		return pages[page-1], &github.Response{NextPage: next}, nil
	}
	return fn, calls
}

func TestPaginate_SpansAllPages(t *testing.T) {
	fn, calls := pagedList([][]string{{"a", "b"}, {"c"}, {"d", "e"}})

	var got []string
	for item, err := range Paginate(t.Context(), fn) {
		require.NoError(t, err)
		got = append(got, item)
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
	assert.Equal(t, 3, *calls)
}

func TestPaginate_LazyStop(t *testing.T) {
	fn, calls := pagedList([][]string{{"a", "b"}, {"c"}, {"d"}})

	var got []string
	for item, err := range Paginate(t.Context(), fn) {
		require.NoError(t, err)
		got = append(got, item)
		if len(got) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"a", "b"}, got)
	// Stopping after the first page must not fetch later pages.
	assert.Equal(t, 1, *calls)
}

func TestPaginate_Restartable(t *testing.T) {
	fn, _ := pagedList([][]string{{"a"}, {"b"}})
	seq := Paginate(t.Context(), fn)

	for range 2 {
		var got []string
		for item, err := range seq {
			require.NoError(t, err)
			got = append(got, item)
		}
		assert.Equal(t, []string{"a", "b"}, got)
	}
}

func TestPaginate_PageError(t *testing.T) {
	failing := func(ctx context.Context, opts *github.ListOptions) ([]string, *github.Response, error) {
		if opts.Page >= 2 {
			return nil, nil, errors.New("boom on page 2")
		}
		return []string{"a"}, &github.Response{NextPage: 2}, nil
	}

	var got []string
	var gotErr error
	for item, err := range Paginate(t.Context(), failing) {
		if err != nil {
			gotErr = err
			break
		}
		got = append(got, item)
	}

	assert.Equal(t, []string{"a"}, got)
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "boom on page 2")
}

func TestPaginateAll(t *testing.T) {
	fn, _ := pagedList([][]string{{"x"}, {"y", "z"}})

	all, err := PaginateAll(t.Context(), fn)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, all)

	_, err = PaginateAll(t.Context(), func(ctx context.Context, opts *github.ListOptions) ([]string, *github.Response, error) {
		return nil, nil, fmt.Errorf("list failed")
	})
	assert.Error(t, err)
}
