package collector

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/zombar/socialpulse/internal/models"
)

// Template pools keyed by the kind of voice speaking about the company.
// Drawn roughly 20/40/25/15 so the mix resembles a real mention stream:
// official announcements are rare, employee and bystander chatter dominates.
var sampleTemplates = []struct {
	kind   string
	weight int
	texts  []string
}{
	{"company_page", 20, []string{
		"Excited to announce our latest innovation at {company}! Our new platform reduces processing time by 70%. #innovation #growth",
		"We're proud to share that {company} has reached a new milestone: over 1 million customers served worldwide! #milestone #team",
		"Join our team! {company} is hiring talented engineers in Amsterdam and Berlin. #hiring #careers",
		"{company} achieved carbon-neutral operations ahead of our 2025 target. Proud day for the whole team. #sustainability",
	}},
	{"employee", 40, []string{
		"Another great day at {company}! Working on innovative solutions with an amazing team. #proudtowork #engineering",
		"Six months at {company} and loving every moment. The culture here is incredible! #companyculture",
		"Grateful to be part of the {company} team working on sustainable technology. Making a real impact! #impact",
		"Celebrating a major milestone with my {company} colleagues today. Teamwork made this possible! #teamwork",
		"Learned so much at today's engineering summit hosted by {company}. Innovation drives success. #growth",
	}},
	{"mention", 25, []string{
		"Just had an amazing experience with {company}! Their customer service exceeded expectations. #customerexperience",
		"Impressed by {company}'s commitment to sustainability. This is how you build a lasting business! #esg",
		"Partnering with {company} has been a game-changer for our business this quarter. #partnership",
		"Disappointed by the latest {company} outage, second time this month. Reliability matters. #downtime",
		"The {company} price increase is hard to justify, support quality went down while costs went up 20%.",
	}},
	{"hashtag", 15, []string{
		"The latest trends in #ai are fascinating. Adoption is growing and the tooling keeps improving. #futureoftech",
		"Why #digitaltransformation matters now more than ever: companies need modern platforms to stay competitive. #insights",
		"My take on the #cloud space: the market is maturing fast and pricing pressure is real. #technology",
	}},
}

// A few non-English voices so language handling gets exercised end to end.
var sampleTranslations = map[string][]string{
	"fr": {
		"Le produit de {company} est excellent, les équipes sont très contentes du support. #innovation",
		"La nouvelle offre de {company} est une vraie réussite, les résultats sont impressionnants.",
	},
	"nl": {
		"Het nieuwe platform van {company} is geweldig, de resultaten zijn erg goed. #innovatie",
		"De samenwerking met {company} is een groot succes, het team is zeer tevreden.",
	},
}

var sampleAuthors = []string{
	"Alex Johnson", "Jordan Smith", "Taylor Brown", "Morgan Davis",
	"Casey Wilson", "Riley Garcia", "Avery Martinez", "Quinn Anderson",
	"Sarah Miller", "Michael Thompson", "Emily Clark", "David Lewis",
}

// languageShare is the fraction of generated posts per language; the
// remainder is English.
var languageShare = []struct {
	lang  string
	share float64
}{
	{"fr", 0.10},
	{"nl", 0.10},
}

// SampleGenerator fabricates a plausible stream of posts about a company.
// The same seed always produces the same posts, which keeps demos and tests
// reproducible without any external service.
type SampleGenerator struct {
	seed int64
}

func NewSampleGenerator(seed int64) *SampleGenerator {
	return &SampleGenerator{seed: seed}
}

// Collect generates n posts mentioning company. Timestamps are spread over
// the last 30 days; everything else is a pure function of the seed.
func (g *SampleGenerator) Collect(_ context.Context, company string, n int) ([]models.Post, error) {
	if n <= 0 {
		return []models.Post{}, nil
	}

	rng := rand.New(rand.NewSource(g.seed))
	now := time.Now().UTC()
	slug := slugify(company)

	posts := make([]models.Post, 0, n)
	for i := 0; i < n; i++ {
		lang := pickLanguage(rng)
		content, tags := g.render(rng, company, lang)
		likes := 10 + rng.Intn(191)

		posts = append(posts, models.Post{
			ID:        fmt.Sprintf("sample_%s_%03d", slug, i),
			Author:    sampleAuthors[rng.Intn(len(sampleAuthors))],
			Content:   content,
			Language:  lang,
			CreatedAt: now.Add(-time.Duration(rng.Intn(30*24)) * time.Hour),
			Source:    SourceSample,
			Company:   company,
			Hashtags:  tags,
			Likes:     likes,
			Comments:  rng.Intn(likes/5 + 1),
			Shares:    rng.Intn(likes/10 + 1),
		})
	}
	return posts, nil
}

func (g *SampleGenerator) render(rng *rand.Rand, company, lang string) (string, []string) {
	var template string
	if translations, ok := sampleTranslations[lang]; ok {
		template = translations[rng.Intn(len(translations))]
	} else {
		pool := pickTemplatePool(rng)
		template = pool[rng.Intn(len(pool))]
	}

	content := strings.ReplaceAll(template, "{company}", company)

	var tags []string
	for _, field := range strings.Fields(content) {
		if tag := strings.TrimPrefix(field, "#"); tag != field {
			tags = append(tags, strings.Trim(tag, ".,!?"))
		}
	}
	return content, tags
}

func pickTemplatePool(rng *rand.Rand) []string {
	total := 0
	for _, pool := range sampleTemplates {
		total += pool.weight
	}
	pick := rng.Intn(total)
	for _, pool := range sampleTemplates {
		if pick < pool.weight {
			return pool.texts
		}
		pick -= pool.weight
	}
	return sampleTemplates[0].texts
}

func pickLanguage(rng *rand.Rand) string {
	roll := rng.Float64()
	for _, candidate := range languageShare {
		if roll < candidate.share {
			return candidate.lang
		}
		roll -= candidate.share
	}
	return "en"
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "company"
	}
	return b.String()
}
