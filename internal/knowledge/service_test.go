package knowledge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCreateSanitizesBody(t *testing.T) {
	svc := NewService(NewInMemoryRepository(nil))

	created, err := svc.Create(context.Background(), CreateInput{
		Title:    "XSS Prevention",
		Summary:  "Why output encoding matters",
		Body:     `<p>Always encode output.</p><script>alert("pwned")</script>`,
		Category: "Web Security",
		Author:   "admin",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if strings.Contains(created.Body, "<script>") {
		t.Fatalf("script tag survived sanitization: %q", created.Body)
	}
	if !strings.Contains(created.Body, "<p>Always encode output.</p>") {
		t.Fatalf("safe markup stripped: %q", created.Body)
	}
	if created.Category != "web security" {
		t.Fatalf("category = %q, want lowercased", created.Category)
	}
	if created.ReadMinute < 1 {
		t.Fatalf("ReadMinute = %d, want at least 1", created.ReadMinute)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(NewInMemoryRepository(nil))
	ctx := context.Background()

	valid := CreateInput{
		Title:    "Threat Modeling",
		Body:     "<p>Start with the data flows.</p>",
		Category: "fundamentals",
	}

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"empty title", func(in *CreateInput) { in.Title = " " }},
		{"empty body", func(in *CreateInput) { in.Body = "" }},
		{"empty category", func(in *CreateInput) { in.Category = "" }},
		{"too many tags", func(in *CreateInput) { in.Tags = make([]string, maxTags+1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid
			input.Tags = []string{"intro"}
			tt.mutate(&input)

			if _, err := svc.Create(ctx, input); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}

	if _, err := svc.Create(ctx, valid); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
}

func TestReadMinutes(t *testing.T) {
	tests := []struct {
		name  string
		words int
		want  int
	}{
		{"empty body", 0, 1},
		{"short note", 50, 1},
		{"exact page", 200, 1},
		{"long article", 1000, 5},
		{"partial page rounds up", 201, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.TrimSpace(strings.Repeat("word ", tt.words))
			if got := ReadMinutes(body); got != tt.want {
				t.Fatalf("ReadMinutes(%d words) = %d, want %d", tt.words, got, tt.want)
			}
		})
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository(nil)
	svc := NewService(repo)

	base := time.Now().UTC()
	seed := []Article{
		{ID: uuid.New(), Title: "Old Web Post", Category: "web", CreatedAt: base.Add(-time.Hour)},
		{ID: uuid.New(), Title: "New Web Post", Category: "web", CreatedAt: base},
		{ID: uuid.New(), Title: "Crypto Primer", Category: "crypto", CreatedAt: base.Add(-time.Minute)},
	}
	for _, article := range seed {
		if _, err := repo.Create(ctx, article); err != nil {
			t.Fatalf("seed article: %v", err)
		}
	}

	web := "web"
	list, err := svc.List(ctx, ListOptions{Category: &web})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("category filter returned %d, want 2", len(list))
	}
	if list[0].Title != "New Web Post" {
		t.Fatalf("List() not sorted newest first: %s", list[0].Title)
	}

	query := "primer"
	list, err = svc.List(ctx, ListOptions{Query: &query})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].Title != "Crypto Primer" {
		t.Fatalf("query filter returned %v", list)
	}
}

func TestGetUnknownArticle(t *testing.T) {
	svc := NewService(NewInMemoryRepository(nil))

	if _, err := svc.Get(context.Background(), uuid.New()); err != ErrNotFound {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}
