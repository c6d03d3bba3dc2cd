package utils

import "sync"

// ParallelMap 以最多 concurrency 个 goroutine 并发执行 fn，
// 返回结果与输入顺序一一对应。
//
// 设计说明：
//   - 单元素或 concurrency <= 1 时直接串行，避免无谓的 goroutine 开销；
//   - 结果按输入下标写入预分配切片，天然保序，无需额外排序；
//   - 任务通过下标通道分发，goroutine 数量固定，不随输入规模增长。
func ParallelMap[T any, R any](input []T, concurrency int, fn func(T) R) []R {
	n := len(input)
	if n == 0 {
		return nil
	}

	result := make([]R, n)
	if n == 1 || concurrency <= 1 {
		for i, v := range input {
			result[i] = fn(v)
		}
		return result
	}

	if concurrency > n {
		concurrency = n
	}

	indexCh := make(chan int, n)
	for i := 0; i < n; i++ {
		indexCh <- i
	}
	close(indexCh)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for w := 0; w < concurrency; w++ {
		go func() {
			defer wg.Done()
			for i := range indexCh {
				result[i] = fn(input[i])
			}
		}()
	}
	wg.Wait()

	return result
}
