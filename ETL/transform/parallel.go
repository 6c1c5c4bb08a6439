package transform

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ctxCheckEvery - как часто обработчик проверяет отмену контекста
const ctxCheckEvery = 1024

// mapConcurrently применяет fn к каждому элементу, разбивая вход на непрерывные
// куски по числу обработчиков. Результат сохраняет порядок входа.
// fn не должна иметь общего изменяемого состояния.
func mapConcurrently[In, Out any](ctx context.Context, workers int, in []In, fn func(In) Out) ([]Out, error) {
	out := make([]Out, len(in))
	if len(in) == 0 {
		return out, nil
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (len(in) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(in); start += chunk {
		end := min(start+chunk, len(in))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if (i-start)%ctxCheckEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				out[i] = fn(in[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
