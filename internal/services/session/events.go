package session

import (
	"context"
	"time"

	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
)

const eventTimeout = 30 * time.Second

// enqueue не блокируется: шлюз может порождать события, пока операция
// держит opMu.
func (m *Manager) enqueue(e models.AuthEvent) {
	m.qmu.Lock()
	m.queue = append(m.queue, e)
	m.qmu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *Manager) dequeue() (models.AuthEvent, bool) {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	if len(m.queue) == 0 {
		return models.AuthEvent{}, false
	}
	e := m.queue[0]
	m.queue = m.queue[1:]
	return e, true
}

func (m *Manager) loop() {
	defer close(m.stopped)
	for {
		select {
		case <-m.loopCtx.Done():
			return
		case <-m.signal:
		}
		for {
			e, ok := m.dequeue()
			if !ok {
				break
			}
			m.handleEvent(e)
		}
	}
}

// handleEvent сверяет событие с текущей сессией шлюза. Устаревшие события
// (signed_in после выхода, signed_out после нового входа) отбрасываются.
func (m *Manager) handleEvent(e models.AuthEvent) {
	const op = "session.handleEvent"
	log := m.log.With(sl.Op(op), "event", string(e.Type))

	ctx, cancel := context.WithTimeout(m.loopCtx, eventTimeout)
	defer cancel()

	m.opMu.Lock()
	defer m.opMu.Unlock()

	cur := m.gw.Session()
	local := m.currentUserID()

	switch e.Type {
	case models.EventSignedOut:
		if cur != nil || local == "" {
			return
		}
		log.Info("signed out by gateway", sl.UserID(local))
		m.clearCache(ctx)
		m.setLocal(nil, nil)
		m.publish()

	case models.EventSignedIn, models.EventTokenRefreshed, models.EventUserUpdated:
		if cur == nil {
			return
		}
		if local == cur.User.ID {
			m.mu.Lock()
			m.session = cur.Clone()
			m.mu.Unlock()
			m.writeSession(ctx, cur)
			return
		}
		log.Info("gateway switched user", sl.UserID(cur.User.ID))
		if err := m.establish(ctx, cur); err != nil {
			log.Warn("profile load failed", sl.Err(err))
		}
	}
}
