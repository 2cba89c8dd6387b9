package objectstore

import (
	"context"
	"errors"
)

// ErrStopWalk can be returned by a WalkFunc to end a walk early without error.
var ErrStopWalk = errors.New("objectstore: stop walk")

// WalkFunc is called for every object visited by Walk.
type WalkFunc func(obj ObjectMeta) error

// Walk visits every object under prefix, following cursors until the listing
// is exhausted. Returning ErrStopWalk from fn stops the walk and Walk returns nil.
// Any other error from fn or from the store aborts the walk and is returned.
func Walk(ctx context.Context, store Store, prefix string, fn WalkFunc) error {
	var cursor Cursor
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := store.ListPage(ctx, prefix, cursor)
		if err != nil {
			return err
		}

		for _, obj := range page.Objects {
			if err := fn(obj); err != nil {
				if errors.Is(err, ErrStopWalk) {
					return nil
				}
				return err
			}
		}

		if page.Done() {
			return nil
		}
		cursor = page.NextCursor
	}
}

// ListAll collects every object under prefix.
func ListAll(ctx context.Context, store Store, prefix string) ([]ObjectMeta, error) {
	var result []ObjectMeta
	err := Walk(ctx, store, prefix, func(obj ObjectMeta) error {
		result = append(result, obj)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
