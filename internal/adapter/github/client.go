// Package github aggregates GitHub profiles through the GraphQL API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"gitduel/internal/domain"
	"gitduel/internal/infra/config"
	"gitduel/internal/infra/tracer"
)

// Compile-time interface assertion.
var _ domain.ProfileFetcher = (*Client)(nil)

const (
	defaultEndpoint = "https://api.github.com/graphql"
	defaultTimeout  = 20 * time.Second
	defaultSince    = "2020-01-01"

	maxErrorBody = 4096
)

// Client fetches profiles from the GitHub GraphQL API. Outgoing requests are
// paced by a token bucket shared by all callers.
type Client struct {
	endpoint string
	token    string
	since    time.Time
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewClient creates a Client from cfg. Zero values fall back to defaults;
// a non-positive rate disables pacing.
func NewClient(cfg config.GitHubConfig, logger *slog.Logger) (*Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	sinceStr := cfg.ContributionsSince
	if sinceStr == "" {
		sinceStr = defaultSince
	}
	since, err := time.Parse(time.DateOnly, sinceStr)
	if err != nil {
		return nil, fmt.Errorf("github: contributions_since %q: %w", sinceStr, err)
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	return &Client{
		endpoint: endpoint,
		token:    cfg.Token,
		since:    since,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
	}, nil
}

// --- GraphQL wire types ---

const profileQuery = `query getUserData($username: String!, $since: DateTime!) {
  user(login: $username) {
    login
    name
    bio
    avatarUrl
    location
    company
    websiteUrl
    followers { totalCount }
    following { totalCount }
    createdAt
    updatedAt
    repositories(first: 50, orderBy: {field: STARGAZERS, direction: DESC}, ownerAffiliations: OWNER) {
      totalCount
      nodes {
        name
        description
        stargazerCount
        forkCount
        watchers { totalCount }
        primaryLanguage { name }
        languages(first: 10) { edges { size node { name } } }
        updatedAt
      }
    }
    contributionsCollection(from: $since) {
      totalCommitContributions
      restrictedContributionsCount
    }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data struct {
		User *gqlUser `json:"user"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type graphqlError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type totalCount struct {
	TotalCount int `json:"totalCount"`
}

type gqlUser struct {
	Login        string     `json:"login"`
	Name         string     `json:"name"`
	Bio          string     `json:"bio"`
	AvatarURL    string     `json:"avatarUrl"`
	Location     string     `json:"location"`
	Company      string     `json:"company"`
	WebsiteURL   string     `json:"websiteUrl"`
	Followers    totalCount `json:"followers"`
	Following    totalCount `json:"following"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	Repositories struct {
		TotalCount int       `json:"totalCount"`
		Nodes      []gqlRepo `json:"nodes"`
	} `json:"repositories"`
	ContributionsCollection struct {
		TotalCommitContributions     int `json:"totalCommitContributions"`
		RestrictedContributionsCount int `json:"restrictedContributionsCount"`
	} `json:"contributionsCollection"`
}

type gqlRepo struct {
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	StargazerCount  int        `json:"stargazerCount"`
	ForkCount       int        `json:"forkCount"`
	Watchers        totalCount `json:"watchers"`
	PrimaryLanguage *struct {
		Name string `json:"name"`
	} `json:"primaryLanguage"`
	Languages struct {
		Edges []struct {
			Size int `json:"size"`
			Node struct {
				Name string `json:"name"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"languages"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FetchProfile implements domain.ProfileFetcher.
func (c *Client) FetchProfile(ctx context.Context, username string) (*domain.Profile, error) {
	ctx, span := tracer.StartSpan(ctx, "github.fetch_profile",
		trace.WithAttributes(tracer.StringAttr("github.username", username)),
	)
	defer span.End()

	profile, err := c.fetch(ctx, username)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	return profile, nil
}

func (c *Client) fetch(ctx context.Context, username string) (*domain.Profile, error) {
	const op = "GitHub.FetchProfile"

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.WrapOp(op, err)
	}

	body, err := json.Marshal(graphqlRequest{
		Query: profileQuery,
		Variables: map[string]any{
			"username": username,
			"since":    c.since.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: marshal query: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.WrapOp(op, ctxErr)
		}
		return nil, domain.NewDomainError(op, domain.ErrProviderError,
			fmt.Sprintf("Failed to fetch data for %q: %v", username, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, mapStatus(op, username, resp, raw)
	}

	var gql graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gql); err != nil {
		return nil, domain.NewDomainError(op, domain.ErrProviderError,
			fmt.Sprintf("Failed to fetch data for %q: decode response: %v", username, err))
	}

	if len(gql.Errors) > 0 {
		first := gql.Errors[0]
		if first.Type == "NOT_FOUND" {
			return nil, notFound(op, username)
		}
		msg := first.Message
		if msg == "" {
			msg = "Failed to fetch GitHub data"
		}
		return nil, domain.NewDomainError(op, domain.ErrProviderError, msg)
	}
	if gql.Data.User == nil {
		return nil, notFound(op, username)
	}

	profile := aggregate(gql.Data.User)
	c.logger.Debug("github profile fetched",
		"username", profile.Username,
		"repos", len(gql.Data.User.Repositories.Nodes),
		"duration", time.Since(start),
	)
	return profile, nil
}

func notFound(op, username string) error {
	return domain.NewDomainError(op, domain.ErrNotFound, fmt.Sprintf("User %q not found on GitHub", username))
}

// mapStatus converts a non-200 GitHub response into a domain error.
func mapStatus(op, username string, resp *http.Response, body []byte) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return notFound(op, username)
	case http.StatusForbidden, http.StatusTooManyRequests:
		rl := &domain.RateLimitError{Op: op}
		if reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil && reset > 0 {
			rl.ResetAt = time.Unix(reset, 0).UTC()
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			rl.RetryAfter = time.Duration(secs) * time.Second
		}
		return rl
	case http.StatusUnauthorized:
		return domain.NewDomainError(op, domain.ErrAuthInvalid, "Invalid GitHub token. Please check your configuration.")
	}
	return domain.NewDomainError(op, domain.ErrProviderError,
		fmt.Sprintf("Failed to fetch data for %q: status %d: %s", username, resp.StatusCode, bytes.TrimSpace(body)))
}
