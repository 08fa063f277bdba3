// Package notify реализует простую рассылку значений подписчикам.
package notify

import (
	"slices"
	"sync"
)

// Broadcaster хранит подписчиков и синхронно вызывает их при Publish.
// Нулевое значение готово к использованию.
type Broadcaster[T any] struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(T)
}

// Subscribe регистрирует обработчик и возвращает функцию отписки.
// Повторный вызов отписки ничего не делает.
func (b *Broadcaster[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(T))
	}
	id := b.next
	b.next++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish вызывает обработчики в порядке подписки вне блокировки,
// поэтому обработчик может отписаться из самого себя.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	fns := make(map[int]func(T), len(b.subs))
	for id, fn := range b.subs {
		fns[id] = fn
	}
	b.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		fns[id](v)
	}
}

// Len количество активных подписчиков.
func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
