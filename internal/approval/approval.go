package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrPending is returned when a new approval is requested while one is
	// still live. The queue holds at most one request; callers surface the
	// conflict to the dApp instead of silently queueing.
	ErrPending  = errors.New("another approval is pending")
	ErrRejected = errors.New("approval rejected by user")
)

// Type classifies what the user is being asked to confirm.
type Type string

const (
	TypeUnlock  Type = "unlock"
	TypeConnect Type = "connect"
	TypeSign    Type = "sign"
	TypeSendTx  Type = "sendTransaction"
	TypeChain   Type = "switchChain"
)

// Approval is a pending user-confirmation request gating a privileged
// action.
type Approval struct {
	ID     string         `json:"id"`
	Type   Type           `json:"type"`
	Origin string         `json:"origin"`
	Data   map[string]any `json:"data,omitempty"`
}

type outcome struct {
	data     map[string]any
	rejected bool
	reason   string
}

// Service holds at most one live approval. Create parks the request until
// the UI resolves or rejects it; resolving or rejecting an id that is not
// the live one is a no-op so a stale UI can never terminate a newer
// request.
type Service struct {
	mu      sync.Mutex
	seq     uint64
	current *Approval
	done    chan outcome
}

func NewService() *Service {
	return &Service{}
}

// Current returns the live approval, or nil when none is pending.
func (s *Service) Current() *Approval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Create registers a new approval and returns it together with a wait
// function that blocks until resolution. Returns ErrPending if an approval
// is already live.
func (s *Service) Create(typ Type, origin string, data map[string]any) (*Approval, func(context.Context) (map[string]any, error), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, nil, ErrPending
	}

	s.seq++
	ap := &Approval{
		ID:     fmt.Sprintf("approval-%d", s.seq),
		Type:   typ,
		Origin: origin,
		Data:   data,
	}
	done := make(chan outcome, 1)
	s.current = ap
	s.done = done

	wait := func(ctx context.Context) (map[string]any, error) {
		select {
		case out := <-done:
			if out.rejected {
				if out.reason != "" {
					return nil, fmt.Errorf("%w: %s", ErrRejected, out.reason)
				}
				return nil, ErrRejected
			}
			return out.data, nil
		case <-ctx.Done():
			s.clear(ap.ID)
			return nil, ctx.Err()
		}
	}
	return ap, wait, nil
}

// Resolve completes the live approval with response data. A non-matching id
// is a silent no-op.
func (s *Service) Resolve(id string, data map[string]any) {
	s.finish(id, outcome{data: data})
}

// Reject terminates the live approval with a cancellation reason. A
// non-matching id is a silent no-op.
func (s *Service) Reject(id string, reason string) {
	s.finish(id, outcome{rejected: true, reason: reason})
}

func (s *Service) finish(id string, out outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != id {
		return
	}
	s.done <- out
	s.current = nil
	s.done = nil
}

// clear drops a still-live approval whose waiter gave up.
func (s *Service) clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.ID == id {
		s.current = nil
		s.done = nil
	}
}
