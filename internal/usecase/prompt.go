package usecase

import (
	"fmt"
	"strings"

	"gitduel/internal/domain"
)

const (
	neutralSystemPrompt = "GitHub profile comparison assistant. Provide concise, humanized comparisons."
	roastSystemPrompt   = `You are a hilarious Indian roaster with a desi accent. You roast people in a funny, savage way using Indian English expressions like "yaar", "bhai", "arre", "bro", etc. Make it entertaining, detailed, and humanized.`

	roastOpener  = "You are a funny Indian roaster with a desi accent. "
	roastClosing = "Be savage but funny. Make it long, detailed, and entertaining. Use Indian English expressions naturally."
	roastStyle   = `brutally but humorously in Indian style (use phrases like "yaar", "bhai", "arre", etc.).`
)

// promptLanguages is how many top languages each profile contributes.
const promptLanguages = 5

// BuildPrompt returns the system and user prompt for one generation. It is
// pure: the same profiles and mode always yield the same text.
func BuildPrompt(pair domain.ProfilePair, mode domain.Mode) (system, user string) {
	a, b := pair.First, pair.Second
	switch mode {
	case domain.ModeRoastFirst:
		return roastSystemPrompt, roastOne(a, b, false)
	case domain.ModeRoastSecond:
		return roastSystemPrompt, roastOne(b, a, true)
	case domain.ModeRoastBoth:
		return roastSystemPrompt, roastBoth(a, b)
	}
	return neutralSystemPrompt, neutral(a, b)
}

// BuildParams turns a GenerationRequest into provider parameters. An empty
// model leaves the provider default in place.
func BuildParams(req domain.GenerationRequest, model string) domain.GenerationParams {
	system, user := BuildPrompt(req.Profiles, req.Mode)
	temperature, maxTokens := domain.SamplingFor(req.Mode)
	return domain.GenerationParams{
		Model:        model,
		SystemPrompt: system,
		Prompt:       user,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		Stream:       true,
	}
}

func neutral(a, b domain.Profile) string {
	var sb strings.Builder
	sb.WriteString("Compare GitHub profiles:\n\n")
	for _, p := range []domain.Profile{a, b} {
		fmt.Fprintf(&sb, "%s: %s | %d followers, %d following | %d repos | %d stars | %d commits | Languages: %s\n\n",
			p.Username, p.Name, p.Followers, p.Following, p.PublicRepos, p.TotalStars, p.TotalCommits, topLanguages(p))
	}
	sb.WriteString("Provide a concise comparison covering: commonalities, who leads in what areas, language expertise, and overall insights. Keep it friendly and conversational.")
	return sb.String()
}

// roastOne roasts target while praising hero. heroFirst keeps the stats in
// profile order when the hero is the first profile.
func roastOne(target, hero domain.Profile, heroFirst bool) string {
	var sb strings.Builder
	sb.WriteString(roastOpener)
	fmt.Fprintf(&sb, "Create a hilarious, savage roast of %s while making %s look like an absolute legend and hero.\n\n",
		target.Username, hero.Username)

	if heroFirst {
		writeStats(&sb, hero, " (THE HERO)")
		writeStats(&sb, target, "")
	} else {
		writeStats(&sb, target, "")
		writeStats(&sb, hero, " (THE HERO)")
	}

	fmt.Fprintf(&sb, "Roast %s %s Make %s look amazing and superior. %s",
		target.Username, roastStyle, hero.Username, roastClosing)
	return sb.String()
}

func roastBoth(a, b domain.Profile) string {
	var sb strings.Builder
	sb.WriteString(roastOpener)
	fmt.Fprintf(&sb, "Create a hilarious, savage roast comparing both %s and %s. Roast both of them but in a fun, competitive way. Make it entertaining and savage.\n\n",
		a.Username, b.Username)
	writeStats(&sb, a, "")
	writeStats(&sb, b, "")
	fmt.Fprintf(&sb, "Roast both %s Compare them, roast their weaknesses, make fun of their stats. %s", roastStyle, roastClosing)
	return sb.String()
}

func writeStats(sb *strings.Builder, p domain.Profile, tag string) {
	fmt.Fprintf(sb, "%s Stats%s: %d followers | %d repos | %d stars | %d commits | Languages: %s\n\n",
		p.Username, tag, p.Followers, p.PublicRepos, p.TotalStars, p.TotalCommits, topLanguages(p))
}

func topLanguages(p domain.Profile) string {
	n := min(len(p.TopLanguages), promptLanguages)
	if n == 0 {
		return "None"
	}
	names := make([]string, n)
	for i := range n {
		names[i] = p.TopLanguages[i].Name
	}
	return strings.Join(names, ", ")
}
