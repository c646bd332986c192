package main

import (
	"time"

	"github.com/google/uuid"

	"cyberwhale/internal/challenges"
	"cyberwhale/internal/knowledge"
	"cyberwhale/internal/products"
)

// seedChallenges returns a collection of demo CTF challenges for local
// development. Flags are intentionally guessable so the submission flow can
// be exercised without a hint sheet.
func seedChallenges() []challenges.Challenge {
	now := time.Now().UTC()

	minutes := func(m int) *int { return &m }

	seed := []struct {
		title       string
		description string
		category    challenges.Category
		difficulty  challenges.Difficulty
		points      int
		tags        []string
		flag        string
		timeLimit   *int
	}{
		{
			title:       "Inspector Gadget",
			description: "The flag is hiding in plain sight on the landing page. View the source, Luke.",
			category:    challenges.CategoryWeb,
			difficulty:  challenges.DifficultyBeginner,
			points:      50,
			tags:        []string{"html", "recon"},
			flag:        "flag{view_source_wins}",
		},
		{
			title:       "Caesar's Last Stand",
			description: "An intercepted message reads: iodj{urw_wkluwhhq}. The general was fond of shifting blame.",
			category:    challenges.CategoryCrypto,
			difficulty:  challenges.DifficultyBeginner,
			points:      75,
			tags:        []string{"classical", "substitution"},
			flag:        "flag{rot_thirteen}",
		},
		{
			title:       "Packet Detective",
			description: "Somewhere in this capture a password crossed the wire in cleartext. Find the FTP login.",
			category:    challenges.CategoryNetwork,
			difficulty:  challenges.DifficultyIntermediate,
			points:      150,
			tags:        []string{"wireshark", "pcap", "ftp"},
			flag:        "flag{cleartext_creds}",
		},
		{
			title:       "Stack the Odds",
			description: "A tiny echo server with an even tinier buffer. Overflow it and take control of the return address.",
			category:    challenges.CategoryPwn,
			difficulty:  challenges.DifficultyAdvanced,
			points:      400,
			tags:        []string{"overflow", "binary"},
			flag:        "flag{ret2win}",
			timeLimit:   minutes(120),
		},
		{
			title:       "Who Is This Whale",
			description: "A social profile picture, a username, and a public repo. Piece together the operator's city.",
			category:    challenges.CategoryOSINT,
			difficulty:  challenges.DifficultyIntermediate,
			points:      200,
			tags:        []string{"recon", "social"},
			flag:        "flag{geolocation_by_exif}",
		},
		{
			title:       "Bits Between the Pixels",
			description: "This vacation photo weighs far more than it should. The least significant bits tell a story.",
			category:    challenges.CategorySteganography,
			difficulty:  challenges.DifficultyIntermediate,
			points:      175,
			tags:        []string{"lsb", "image"},
			flag:        "flag{hidden_in_noise}",
		},
	}

	out := make([]challenges.Challenge, 0, len(seed))
	for i, s := range seed {
		created := now.Add(time.Duration(i) * time.Minute)
		out = append(out, challenges.Challenge{
			ID:          uuid.New(),
			Title:       s.title,
			Description: s.description,
			Category:    s.category,
			Difficulty:  s.difficulty,
			Points:      s.points,
			Tags:        s.tags,
			FlagHash:    challenges.HashFlag(s.flag),
			TimeLimit:   s.timeLimit,
			CreatedAt:   created,
			UpdatedAt:   created,
		})
	}
	return out
}

// seedArticles returns demo knowledge base entries.
func seedArticles() []knowledge.Article {
	now := time.Now().UTC()

	seed := []struct {
		title    string
		summary  string
		body     string
		category string
		tags     []string
	}{
		{
			title:    "What Actually Happens During a TLS Handshake",
			summary:  "A walk through the messages exchanged before any application data flows.",
			body:     "<p>Every HTTPS connection starts with a negotiation. The client sends a hello listing the cipher suites it supports, the server picks one and proves its identity with a certificate, and both sides derive the session keys that will protect the rest of the conversation.</p><p>Understanding each message makes packet captures far less intimidating, and it explains why downgrade attacks target this exact phase.</p>",
			category: "network",
			tags:     []string{"tls", "protocols"},
		},
		{
			title:    "SQL Injection Beyond the Single Quote",
			summary:  "Why parameterized queries close the whole bug class, not just the obvious payloads.",
			body:     "<p>Most introductions stop at <code>' OR '1'='1</code>, but the vulnerability is structural: user input reaching the query parser. Blind, time-based, and second-order variants all share that root cause.</p><p>Parameterized statements keep data out of the parser entirely, which is why they work where escaping routinely fails.</p>",
			category: "web",
			tags:     []string{"sqli", "appsec"},
		},
		{
			title:    "A Field Guide to Password Storage",
			summary:  "From plaintext disasters to memory-hard hashing.",
			body:     "<p>The history of breached password databases is a tour of mistakes: plaintext, unsalted MD5, fast SHA-256. Modern practice is a deliberately slow, salted, memory-hard function such as argon2id, tuned so a single guess costs real resources.</p>",
			category: "crypto",
			tags:     []string{"hashing", "authentication"},
		},
	}

	out := make([]knowledge.Article, 0, len(seed))
	for i, s := range seed {
		created := now.Add(time.Duration(i) * time.Minute)
		out = append(out, knowledge.Article{
			ID:         uuid.New(),
			Title:      s.title,
			Summary:    s.summary,
			Body:       s.body,
			Category:   s.category,
			Tags:       s.tags,
			Author:     "CyberWhale Team",
			ReadMinute: knowledge.ReadMinutes(s.body),
			CreatedAt:  created,
			UpdatedAt:  created,
		})
	}
	return out
}

// seedProducts returns the storefront catalog.
func seedProducts() []products.Product {
	now := time.Now().UTC()

	return []products.Product{
		{
			ID:          uuid.New(),
			Name:        "Web Exploitation Fundamentals",
			Description: "A self-paced video course covering the OWASP Top 10 with hands-on labs.",
			Kind:        products.KindCourse,
			PriceCents:  4999,
			Currency:    "USD",
			Available:   true,
			CreatedAt:   now,
		},
		{
			ID:          uuid.New(),
			Name:        "CyberWhale Pro",
			Description: "Monthly subscription unlocking expert challenges and priority assistant access.",
			Kind:        products.KindSubscription,
			PriceCents:  999,
			Currency:    "USD",
			Available:   true,
			CreatedAt:   now,
		},
		{
			ID:          uuid.New(),
			Name:        "Hardware Hacking Starter Kit",
			Description: "Logic analyzer, UART adapter, and a deliberately vulnerable router to practice on.",
			Kind:        products.KindTool,
			PriceCents:  12900,
			Currency:    "USD",
			Available:   false,
			CreatedAt:   now,
		},
		{
			ID:          uuid.New(),
			Name:        "Whale Hoodie",
			Description: "Heavyweight hoodie with the CyberWhale crest. Ships worldwide.",
			Kind:        products.KindMerchandise,
			PriceCents:  5400,
			Currency:    "USD",
			Available:   true,
			CreatedAt:   now,
		},
	}
}
