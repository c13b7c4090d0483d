package github

import (
	"cmp"
	"slices"

	"gitduel/internal/domain"
)

const (
	topLanguageCount = 10
	topRepoCount     = 10
)

// Placeholders for empty profile fields.
const (
	noBio        = "No bio available"
	notSpecified = "Not specified"
	noLanguage   = "N/A"
)

// aggregate folds the GraphQL user into a Profile. Repositories arrive
// sorted by stars, so the first ones are the top repos.
func aggregate(u *gqlUser) *domain.Profile {
	p := &domain.Profile{
		Username:       u.Login,
		Name:           orDefault(u.Name, u.Login),
		Bio:            orDefault(u.Bio, noBio),
		AvatarURL:      u.AvatarURL,
		Location:       orDefault(u.Location, notSpecified),
		Company:        orDefault(u.Company, notSpecified),
		Blog:           u.WebsiteURL,
		Followers:      u.Followers.TotalCount,
		Following:      u.Following.TotalCount,
		PublicRepos:    u.Repositories.TotalCount,
		TotalCommits:   u.ContributionsCollection.TotalCommitContributions + u.ContributionsCollection.RestrictedContributionsCount,
		AccountCreated: u.CreatedAt,
		LastUpdated:    u.UpdatedAt,
		Languages:      make(map[string]int),
	}

	for _, r := range u.Repositories.Nodes {
		p.TotalStars += r.StargazerCount
		p.TotalForks += r.ForkCount
		p.TotalWatchers += r.Watchers.TotalCount
		for _, e := range r.Languages.Edges {
			p.Languages[e.Node.Name] += e.Size
		}
	}

	p.TopLanguages = topLanguages(p.Languages, topLanguageCount)

	n := min(len(u.Repositories.Nodes), topRepoCount)
	p.Repos = make([]domain.RepoSummary, 0, n)
	for _, r := range u.Repositories.Nodes[:n] {
		lang := noLanguage
		if r.PrimaryLanguage != nil && r.PrimaryLanguage.Name != "" {
			lang = r.PrimaryLanguage.Name
		}
		p.Repos = append(p.Repos, domain.RepoSummary{
			Name:        r.Name,
			Description: r.Description,
			Stars:       r.StargazerCount,
			Forks:       r.ForkCount,
			Language:    lang,
			Updated:     r.UpdatedAt,
		})
	}
	return p
}

// topLanguages returns the n largest languages by bytes. Ties break by name
// so the order is stable.
func topLanguages(langs map[string]int, n int) []domain.LanguageStat {
	stats := make([]domain.LanguageStat, 0, len(langs))
	for name, bytes := range langs {
		stats = append(stats, domain.LanguageStat{Name: name, Bytes: bytes})
	}
	slices.SortFunc(stats, func(a, b domain.LanguageStat) int {
		if c := cmp.Compare(b.Bytes, a.Bytes); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
