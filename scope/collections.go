package scope

import "context"

// ForEach runs fn once per item, concurrently, inside a Sync scope: the
// first failure cancels the rest and is what ForEach returns. concurrency
// <= 0 means unbounded; a positive value bounds it with a Limiter the way
// Baxromumarov-scoped's ForEach uses WithLimit.
func ForEach[T any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, item T) error) error {
	_, err := Sync(ctx, func(tc *TaskContext) (struct{}, error) {
		var limiter *Limiter
		if concurrency > 0 {
			limiter = tc.Limit(concurrency)
		}
		for _, item := range items {
			item := item
			StartTask[struct{}](tc, func(ctx context.Context, sig *Signal) (struct{}, error) {
				if limiter == nil {
					return struct{}{}, fn(ctx, item)
				}
				return RunLimited(limiter, func(ctx context.Context) (struct{}, error) {
					return struct{}{}, fn(ctx, item)
				})
			})
		}
		return struct{}{}, nil
	})
	return err
}

// Map runs fn once per item, concurrently, and collects the results in
// input order. On the first failure, every other item's task is
// cancelled and Map returns nil and that error.
func Map[T, R any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	tasks := make([]*Task[R], len(items))
	_, err := Sync(ctx, func(tc *TaskContext) (struct{}, error) {
		var limiter *Limiter
		if concurrency > 0 {
			limiter = tc.Limit(concurrency)
		}
		for i, item := range items {
			i, item := i, item
			tasks[i] = StartTask[R](tc, func(ctx context.Context, sig *Signal) (R, error) {
				if limiter == nil {
					return fn(ctx, item)
				}
				return RunLimited(limiter, func(ctx context.Context) (R, error) {
					return fn(ctx, item)
				})
			})
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]R, len(items))
	for i, t := range tasks {
		v, _ := t.Result()
		results[i] = v
	}
	return results, nil
}
