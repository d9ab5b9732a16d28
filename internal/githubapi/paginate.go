package githubapi

import (
	"context"
	"iter"

	"github.com/google/go-github/v50/github"
)

// ListFunc fetches one page of a listing API call.
type ListFunc[T any] func(ctx context.Context, opts *github.ListOptions) ([]T, *github.Response, error)

// Paginate returns a lazy sequence over every item of a listing call,
// spanning all pages. The sequence is finite and can be restarted by
// ranging over it again, but a single iteration cannot be rewound. A
// page-fetch failure is yielded as the final element's error.
func Paginate[T any](ctx context.Context, fn ListFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		opts := &github.ListOptions{PerPage: 100}
		for {
			items, resp, err := fn(ctx, opts)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if resp == nil || resp.NextPage == 0 {
				return
			}
			opts.Page = resp.NextPage
		}
	}
}

// PaginateAll collects every item of a listing call into a slice.
func PaginateAll[T any](ctx context.Context, fn ListFunc[T]) ([]T, error) {
	var all []T
	for item, err := range Paginate(ctx, fn) {
		if err != nil {
			return nil, err
		}
		all = append(all, item)
	}
	return all, nil
}
