package domain

import (
	"context"
	"time"
)

// LanguageStat is one entry of a profile's language breakdown.
type LanguageStat struct {
	Name  string `json:"language"`
	Bytes int    `json:"bytes"`
}

// RepoSummary is the subset of repository data shown in comparisons.
type RepoSummary struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	Language    string    `json:"language"`
	Updated     time.Time `json:"updated"`
}

// Profile is the aggregated view of one GitHub account.
type Profile struct {
	Username       string         `json:"username"`
	Name           string         `json:"name"`
	Bio            string         `json:"bio"`
	AvatarURL      string         `json:"avatarUrl"`
	Location       string         `json:"location"`
	Company        string         `json:"company"`
	Blog           string         `json:"blog"`
	Followers      int            `json:"followers"`
	Following      int            `json:"following"`
	PublicRepos    int            `json:"publicRepos"`
	TotalCommits   int            `json:"totalCommits"`
	TotalStars     int            `json:"totalStars"`
	TotalForks     int            `json:"totalForks"`
	TotalWatchers  int            `json:"totalWatchers"`
	AccountCreated time.Time      `json:"accountCreated"`
	LastUpdated    time.Time      `json:"lastUpdated"`
	Languages      map[string]int `json:"languages"`
	TopLanguages   []LanguageStat `json:"topLanguages"`
	Repos          []RepoSummary  `json:"repos"`
}

// ProfilePair is the input of every comparison and roast.
type ProfilePair struct {
	First  Profile `json:"profile1"`
	Second Profile `json:"profile2"`
}

// ProfileFetcher resolves a username into an aggregated profile.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, username string) (*Profile, error)
}
