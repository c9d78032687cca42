package parse

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/negcheck/internal/model"
)

func rec(c model.Category, entity, title, url string) model.RawRecord {
	return model.RawRecord{Category: c, Entity: entity, Title: title, URL: url}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []model.RawRecord
	}{
		{
			name: "labelled title and url without entity",
			text: "1. BR\nTitle: ACME pays bribe\nURL: http://example.com/a",
			want: []model.RawRecord{
				rec(model.CategoryBribe, model.UnknownEntity, "ACME pays bribe", "http://example.com/a"),
			},
		},
		{
			name: "entity on head line and trailing punctuation on url",
			text: "2) FR Acme Holdings\nTitle - Acme fraud probe widens\nLink: https://news.example.org/acme.",
			want: []model.RawRecord{
				rec(model.CategoryFraud, "Acme Holdings", "Acme fraud probe widens", "https://news.example.org/acme"),
			},
		},
		{
			name: "bare title label without colon ends entity lookahead",
			text: "1. BR\nTitle\nACME pays bribe\nURL: http://example.com/a",
			want: []model.RawRecord{
				rec(model.CategoryBribe, model.UnknownEntity, "ACME pays bribe", "http://example.com/a"),
			},
		},
		{
			name: "entity on next line and title after empty label",
			text: "3- CA\nBJC Healthcare\nTitle:\nCartel fines announced\nhttps://example.com/cartel",
			want: []model.RawRecord{
				rec(model.CategoryCartel, "BJC Healthcare", "Cartel fines announced", "https://example.com/cartel"),
			},
		},
		{
			name: "empty title label ends entity lookahead",
			text: "1. ML\nTitle:\nBank fined for laundering\nURL: http://x.test/1",
			want: []model.RawRecord{
				rec(model.CategoryMoneyLaundering, model.UnknownEntity, "Bank fined for laundering", "http://x.test/1"),
			},
		},
		{
			name: "back to back heads without fields",
			text: "1. BR Acme\n2. BR Beta\n",
			want: nil,
		},
		{
			name: "next head stops the field scan",
			text: "1. BR Acme\nTitle: A\n2. FR Beta\nURL: http://b.test",
			want: []model.RawRecord{
				rec(model.CategoryBribe, "Acme", "A", ""),
				rec(model.CategoryFraud, "Beta", "", "http://b.test"),
			},
		},
		{
			name: "category header stops the field scan",
			text: "1. LI Acme\nTitle: Suit filed\nFraud\nURL: http://c.test",
			want: []model.RawRecord{
				rec(model.CategoryLitigation, "Acme", "Suit filed", ""),
			},
		},
		{
			name: "clarification and unknown codes are ignored",
			text: "1. CO Clarification\nURL: http://co.test\n2. XY Something\nURL: http://xy.test",
			want: nil,
		},
		{
			name: "non-data labels are skipped",
			text: "1. AB Acme\nFinding: none\nComment: see http://comment.test\nTitle: Abuse claims\nURL: http://d.test",
			want: []model.RawRecord{
				rec(model.CategoryAbuse, "Acme", "Abuse claims", "http://d.test"),
			},
		},
		{
			name: "same code twice gives independent records",
			text: "1. BR A\nURL: http://a.test\n2. BR B\nURL: http://b.test",
			want: []model.RawRecord{
				rec(model.CategoryBribe, "A", "", "http://a.test"),
				rec(model.CategoryBribe, "B", "", "http://b.test"),
			},
		},
		{
			name: "whitespace is normalised",
			text: "1.\tBR  Acme  Corp\r\nTitle:  Acme  bribe\r\n",
			want: []model.RawRecord{
				rec(model.CategoryBribe, "Acme Corp", "Acme bribe", ""),
			},
		},
		{
			name: "title label on the head line",
			text: "4. EX1 Title: Antitrust probe opened\nMegaCorp\nURL: http://e.test",
			want: []model.RawRecord{
				rec(model.CategoryAntitrust, "MegaCorp", "Antitrust probe opened", "http://e.test"),
			},
		},
		{
			name: "bare url is not an entity",
			text: "1. FR\nhttps://f.test/story\nTitle: Something",
			want: []model.RawRecord{
				rec(model.CategoryFraud, model.UnknownEntity, "Something", "https://f.test/story"),
			},
		},
		{
			name: "first url wins",
			text: "1. CR Acme\nURL: http://first.test\nhttp://second.test",
			want: []model.RawRecord{
				rec(model.CategoryCorrupt, "Acme", "", "http://first.test"),
			},
		},
		{
			name: "unstructured text",
			text: "lorem ipsum\n2024 was a year\nhttp://stray.test",
			want: nil,
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if !reflect.DeepEqual(got.Records, tt.want) {
				t.Errorf("records mismatch\n got: %+v\nwant: %+v", got.Records, tt.want)
			}
			if len(got.Counts) != len(model.Categories) {
				t.Errorf("expected counts for %d categories, got %d", len(model.Categories), len(got.Counts))
			}
		})
	}
}

func TestParse_Counts(t *testing.T) {
	text := strings.Join([]string{
		"Bribe",
		"1. BR Acme",
		"URL: http://a.test",
		"2. BR Beta",
		"Title: Beta kickbacks",
		"Cartel",
		"3. CA Gamma",
		"URL: http://c.test",
	}, "\n")

	res := Parse(text)
	if len(res.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(res.Records))
	}
	if res.Counts[model.CategoryBribe] != 2 {
		t.Errorf("expected 2 bribe records, got %d", res.Counts[model.CategoryBribe])
	}
	if res.Counts[model.CategoryCartel] != 1 {
		t.Errorf("expected 1 cartel record, got %d", res.Counts[model.CategoryCartel])
	}
	if res.Counts[model.CategoryFraud] != 0 {
		t.Errorf("expected 0 fraud records, got %d", res.Counts[model.CategoryFraud])
	}
}

func TestParse_OnlyKnownCategories(t *testing.T) {
	text := "1. BR A\nURL: http://a.test\n2. ZZ B\nURL: http://b.test\n3. CO C\nURL: http://c.test"
	for _, r := range Parse(text).Records {
		if !r.Category.Valid() {
			t.Errorf("record with invalid category: %+v", r)
		}
	}
}

func TestParser_FieldWindow(t *testing.T) {
	text := "1. BR Acme\nfiller\nfiller\nfiller\nURL: http://late.test"

	narrow := New(model.ParserConfig{FieldWindow: 3})
	if got := narrow.Parse(text).Records; len(got) != 0 {
		t.Errorf("expected url outside a 3-line window to be missed, got %+v", got)
	}

	wide := New(model.ParserConfig{FieldWindow: 4})
	got := wide.Parse(text).Records
	if len(got) != 1 || got[0].URL != "http://late.test" {
		t.Errorf("expected url inside a 4-line window, got %+v", got)
	}
}

func TestParser_EntityLookahead(t *testing.T) {
	text := "1. BR\n\nURL: http://a.test\nTitle: x\nAcme Corp"

	short := New(model.ParserConfig{EntityLookahead: 2})
	if got := short.Parse(text).Records; len(got) != 1 || got[0].Entity != model.UnknownEntity {
		t.Errorf("expected Unknown entity with short lookahead, got %+v", got)
	}

	long := New(model.ParserConfig{EntityLookahead: 5})
	if got := long.Parse(text).Records; len(got) != 1 || got[0].Entity != "Acme Corp" {
		t.Errorf("expected Acme Corp with long lookahead, got %+v", got)
	}
}

func TestLines(t *testing.T) {
	got := Lines("  a\tb  \r\nc   d\n\n")
	want := []string{"a b", "c d", "", ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}
