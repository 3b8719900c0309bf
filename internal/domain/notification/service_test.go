package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/onepay/onepay-api/internal/pkg/fcm"
)

type fakeTokenStore struct {
	mu      sync.Mutex
	tokens  map[string][]uuid.UUID
	deleted []string
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string][]uuid.UUID{}}
}

func (f *fakeTokenStore) UpsertToken(ctx context.Context, userID uuid.UUID, token, platform string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = append(f.tokens[token], userID)
	return nil
}

func (f *fakeTokenStore) TokensForUsers(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for token, owners := range f.tokens {
		for _, owner := range owners {
			for _, want := range userIDs {
				if owner == want {
					out = append(out, token)
				}
			}
		}
	}
	return out, nil
}

func (f *fakeTokenStore) AllTokens(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for token := range f.tokens {
		out = append(out, token)
	}
	return out, nil
}

func (f *fakeTokenStore) DeleteToken(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, token)
	delete(f.tokens, token)
	return nil
}

// fakeSender records sends and fails the tokens listed in failWith
type fakeSender struct {
	mu       sync.Mutex
	sent     []string
	failWith map[string]error
	delay    time.Duration

	inFlight    int32
	maxInFlight int32
}

func (f *fakeSender) Send(ctx context.Context, accessToken string, msg *fcm.Message) (string, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, cur) {
			break
		}
	}
	defer atomic.AddInt32(&f.inFlight, -1)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err, ok := f.failWith[msg.Token]; ok {
		return "", err
	}

	f.mu.Lock()
	f.sent = append(f.sent, msg.Token)
	f.mu.Unlock()
	return "projects/test/messages/" + msg.Token, nil
}

type fakeTokenSource struct {
	calls int32
}

func (f *fakeTokenSource) Token(ctx context.Context) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return "access-token", nil
}

func TestDispatch_UnregisteredTokenDroppedAndPruned(t *testing.T) {
	store := newFakeTokenStore()
	sender := &fakeSender{failWith: map[string]error{"stale": fcm.ErrUnregistered}}
	source := &fakeTokenSource{}
	svc := NewService(store, sender, source, 8)

	tokens := []string{"stale"}
	for i := 0; i < 9; i++ {
		tokens = append(tokens, fmt.Sprintf("token-%d", i))
	}

	result, err := svc.Dispatch(context.Background(), tokens, "title", "body", nil)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if result.Sent != 9 {
		t.Fatalf("sent = %d, want 9 of 10 with one unregistered", result.Sent)
	}
	if result.Dropped != 1 {
		t.Fatalf("dropped = %d, want 1", result.Dropped)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "stale" {
		t.Fatalf("pruned tokens = %v, want [stale]", store.deleted)
	}
}

func TestDispatch_DeduplicatesTokens(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(newFakeTokenStore(), sender, &fakeTokenSource{}, 8)

	result, err := svc.Dispatch(context.Background(),
		[]string{"a", "b", "a", "", "b", "a"}, "title", "body", nil)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if result.Requested != 2 || result.Sent != 2 {
		t.Fatalf("requested=%d sent=%d, want 2 and 2", result.Requested, result.Sent)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sender saw %d sends, want 2", len(sender.sent))
	}
}

func TestDispatch_OneAccessTokenPerDispatch(t *testing.T) {
	source := &fakeTokenSource{}
	svc := NewService(newFakeTokenStore(), &fakeSender{}, source, 4)

	var tokens []string
	for i := 0; i < 20; i++ {
		tokens = append(tokens, fmt.Sprintf("token-%d", i))
	}
	if _, err := svc.Dispatch(context.Background(), tokens, "t", "b", nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("token source called %d times, want 1", source.calls)
	}
}

func TestDispatch_ConcurrencyBounded(t *testing.T) {
	sender := &fakeSender{delay: 10 * time.Millisecond}
	svc := NewService(newFakeTokenStore(), sender, &fakeTokenSource{}, 3)

	var tokens []string
	for i := 0; i < 30; i++ {
		tokens = append(tokens, fmt.Sprintf("token-%d", i))
	}
	if _, err := svc.Dispatch(context.Background(), tokens, "t", "b", nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if max := atomic.LoadInt32(&sender.maxInFlight); max > 3 {
		t.Fatalf("observed %d concurrent sends, cap is 3", max)
	}
}

func TestDispatch_RealErrorSurfacesAfterWait(t *testing.T) {
	boom := errors.New("backend exploded")
	sender := &fakeSender{
		delay:    5 * time.Millisecond,
		failWith: map[string]error{"token-0": boom},
	}
	svc := NewService(newFakeTokenStore(), sender, &fakeTokenSource{}, 4)

	var tokens []string
	for i := 0; i < 12; i++ {
		tokens = append(tokens, fmt.Sprintf("token-%d", i))
	}
	result, err := svc.Dispatch(context.Background(), tokens, "t", "b", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want the send error", err)
	}
	if result == nil {
		t.Fatal("partial result must be returned alongside the error")
	}
	// Wait returned, so nothing may still be in flight
	if n := atomic.LoadInt32(&sender.inFlight); n != 0 {
		t.Fatalf("%d sends still in flight after Wait", n)
	}
}

// abortingSender fails one token immediately and reports another as
// unregistered only after the batch has already been cancelled
type abortingSender struct {
	stale string
	boom  error
}

func (s *abortingSender) Send(ctx context.Context, accessToken string, msg *fcm.Message) (string, error) {
	if msg.Token == s.stale {
		time.Sleep(20 * time.Millisecond)
		return "", fcm.ErrUnregistered
	}
	return "", s.boom
}

func TestDispatch_PrunesStaleTokenWhenBatchAborts(t *testing.T) {
	store := newFakeTokenStore()
	boom := errors.New("backend exploded")
	sender := &abortingSender{stale: "stale", boom: boom}
	svc := NewService(store, sender, &fakeTokenSource{}, 8)

	_, err := svc.Dispatch(context.Background(), []string{"bad", "stale"}, "t", "b", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want the send error", err)
	}
	// pruning must not run on the cancelled group context
	if len(store.deleted) != 1 || store.deleted[0] != "stale" {
		t.Fatalf("pruned tokens = %v, want [stale] despite the aborted batch", store.deleted)
	}
}

func TestDispatch_EmptyTargetsSkipsTokenExchange(t *testing.T) {
	source := &fakeTokenSource{}
	svc := NewService(newFakeTokenStore(), &fakeSender{}, source, 8)

	result, err := svc.Dispatch(context.Background(), nil, "t", "b", nil)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if result.Requested != 0 || result.Sent != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if source.calls != 0 {
		t.Fatalf("token exchanged for an empty dispatch")
	}
}

func TestNotifyUsers_ResolvesOnlyTargetUsers(t *testing.T) {
	store := newFakeTokenStore()
	alice, bob := uuid.New(), uuid.New()
	_ = store.UpsertToken(context.Background(), alice, "alice-phone", "android")
	_ = store.UpsertToken(context.Background(), bob, "bob-phone", "ios")

	sender := &fakeSender{}
	svc := NewService(store, sender, &fakeTokenSource{}, 8)

	result, err := svc.NotifyUsers(context.Background(), []uuid.UUID{alice}, "t", "b", nil)
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if result.Sent != 1 || len(sender.sent) != 1 || sender.sent[0] != "alice-phone" {
		t.Fatalf("sent = %v, want only alice-phone", sender.sent)
	}
}
