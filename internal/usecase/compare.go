package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"gitduel/internal/domain"
)

// Comparer aggregates the two profiles of a comparison.
type Comparer struct {
	fetcher domain.ProfileFetcher
	logger  *slog.Logger
}

// NewComparer creates a Comparer backed by fetcher.
func NewComparer(fetcher domain.ProfileFetcher, logger *slog.Logger) *Comparer {
	return &Comparer{fetcher: fetcher, logger: logger}
}

// ValidateUsernames checks that both names are present and distinct.
// Comparison is case-insensitive, matching GitHub logins.
func ValidateUsernames(id1, id2 string) error {
	id1, id2 = strings.TrimSpace(id1), strings.TrimSpace(id2)
	if id1 == "" || id2 == "" {
		return domain.NewDomainError("Comparer.FetchPair", domain.ErrInvalidInput, "Both username1 and username2 are required")
	}
	if strings.EqualFold(id1, id2) {
		return domain.NewDomainError("Comparer.FetchPair", domain.ErrInvalidInput, "Please provide two different usernames")
	}
	return nil
}

// FetchPair fetches both profiles concurrently. The first failure cancels the
// other fetch and is returned.
func (c *Comparer) FetchPair(ctx context.Context, id1, id2 string) (domain.ProfilePair, error) {
	if err := ValidateUsernames(id1, id2); err != nil {
		return domain.ProfilePair{}, err
	}

	var pair domain.ProfilePair
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.fetcher.FetchProfile(gctx, strings.TrimSpace(id1))
		if err != nil {
			return err
		}
		pair.First = *p
		return nil
	})
	g.Go(func() error {
		p, err := c.fetcher.FetchProfile(gctx, strings.TrimSpace(id2))
		if err != nil {
			return err
		}
		pair.Second = *p
		return nil
	})

	if err := g.Wait(); err != nil {
		c.logger.Warn("profile comparison failed", "user1", id1, "user2", id2, "error", err)
		return domain.ProfilePair{}, fmt.Errorf("compare %s vs %s: %w", id1, id2, err)
	}
	c.logger.Info("profiles fetched", "user1", pair.First.Username, "user2", pair.Second.Username)
	return pair, nil
}
