package notification

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/onepay/onepay-api/internal/pkg/fcm"
)

// TokenStore is the device-token registry surface
type TokenStore interface {
	UpsertToken(ctx context.Context, userID uuid.UUID, token, platform string) error
	TokensForUsers(ctx context.Context, userIDs []uuid.UUID) ([]string, error)
	AllTokens(ctx context.Context) ([]string, error)
	DeleteToken(ctx context.Context, token string) error
}

// Sender delivers one push message
type Sender interface {
	Send(ctx context.Context, accessToken string, msg *fcm.Message) (string, error)
}

// AccessTokenSource yields a valid OAuth access token
type AccessTokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Service fans push notifications out to device tokens. One access token is
// acquired per dispatch and shared by every send in it.
type Service struct {
	tokens      TokenStore
	sender      Sender
	source      AccessTokenSource
	concurrency int
}

func NewService(tokens TokenStore, sender Sender, source AccessTokenSource, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = 8
	}
	return &Service{
		tokens:      tokens,
		sender:      sender,
		source:      source,
		concurrency: concurrency,
	}
}

// RegisterToken stores a device token for the user
func (s *Service) RegisterToken(ctx context.Context, userID uuid.UUID, token, platform string) error {
	return s.tokens.UpsertToken(ctx, userID, token, platform)
}

// NotifyUsers dispatches one message to every device of the given users
func (s *Service) NotifyUsers(ctx context.Context, userIDs []uuid.UUID, title, body string, data map[string]string) (*DispatchResult, error) {
	tokens, err := s.tokens.TokensForUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	return s.Dispatch(ctx, tokens, title, body, data)
}

// Broadcast dispatches one message to every registered device
func (s *Service) Broadcast(ctx context.Context, title, body string, data map[string]string) (*DispatchResult, error) {
	tokens, err := s.tokens.AllTokens(ctx)
	if err != nil {
		return nil, err
	}
	return s.Dispatch(ctx, tokens, title, body, data)
}

// Dispatch sends the message to each distinct token, at most `concurrency`
// in flight. An unregistered token is dropped and pruned, never an error.
// The first real send failure cancels the remaining sends, and the group
// waits for everything already in flight before returning.
func (s *Service) Dispatch(ctx context.Context, tokens []string, title, body string, data map[string]string) (*DispatchResult, error) {
	seen := make(map[string]struct{}, len(tokens))
	targets := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		targets = append(targets, t)
	}

	result := &DispatchResult{Requested: len(targets)}
	if len(targets) == 0 {
		return result, nil
	}

	accessToken, err := s.source.Token(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	sem := make(chan struct{}, s.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for _, token := range targets {
		token := token
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			name, err := s.sender.Send(gctx, accessToken, &fcm.Message{
				Token: token,
				Title: title,
				Body:  body,
				Data:  data,
			})
			if errors.Is(err, fcm.ErrUnregistered) {
				// prune on the caller's context: gctx may already be
				// cancelled when another send in the batch has failed
				s.prune(ctx, token)
				mu.Lock()
				result.Dropped++
				mu.Unlock()
				return nil
			}
			if err != nil {
				return err
			}

			mu.Lock()
			result.Sent++
			result.Names = append(result.Names, name)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().
			Err(err).
			Int("requested", result.Requested).
			Int("sent", result.Sent).
			Msg("push dispatch aborted")
		return result, err
	}

	log.Info().
		Int("requested", result.Requested).
		Int("sent", result.Sent).
		Int("dropped", result.Dropped).
		Msg("push dispatch complete")
	return result, nil
}

// prune drops a stale token from the registry, best-effort
func (s *Service) prune(ctx context.Context, token string) {
	if err := s.tokens.DeleteToken(ctx, token); err != nil {
		log.Warn().Err(err).Msg("failed to prune unregistered token")
	}
}
