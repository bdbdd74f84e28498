package service

import (
	"sync"
	"sync/atomic"
	"time"

	"smiling-nurse-go/pkg/llm"
	"smiling-nurse-go/pkg/log"
)

// liveSession 是一个进行中会话的内存态。
// messages 持有包括系统提示词在内的完整上下文，按会话粒度由 mu 串行化访问。
// lastUsed 以原子方式读写：回合处理只持有 mu，清理协程只持有注册表锁，
// 两把锁互不覆盖对方的访问。
type liveSession struct {
	mu             sync.Mutex
	userID         uint
	messages       []llm.Message
	assistantTurns int
	freeForm       bool
	lastUsed       atomic.Int64 // Unix 纳秒
}

// sessionRegistry 管理所有进行中的会话。
// 进程重启后内存态丢失，对应会话只能重新开始。
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*liveSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*liveSession)}
}

func (r *sessionRegistry) Put(sessionID string, s *liveSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.touch()
	r.sessions[sessionID] = s
}

func (r *sessionRegistry) Get(sessionID string) (*liveSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

func (r *sessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// StartJanitor 定期清理超过 ttl 未活动的会话，防止被遗弃的会话常驻内存。
func (r *sessionRegistry) StartJanitor(ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for range ticker.C {
			r.sweep(ttl)
		}
	}()
}

func (r *sessionRegistry) sweep(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl).UnixNano()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.lastUsed.Load() < cutoff {
			delete(r.sessions, id)
			log.Infof("清理超时会话: sessionId=%s", id)
		}
	}
}

func (s *liveSession) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}
