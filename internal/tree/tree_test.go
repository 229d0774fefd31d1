package tree

import (
	"testing"

	"github.com/tidwall/gjson"
)

const notebookID = "0a1b2c3d-1111-2222-3333-444455556666"

func TestFindDeepRecordAmongDecoys(t *testing.T) {
	// The real record sits four levels down. Decoys: a short array with a
	// valid id, a long array whose id slot is a number, and a 36-char id
	// without separators.
	doc := `[
		[
			["short", null, "` + notebookID + `"],
			[1, 2, 3, 4, 5, 6, 7],
			{"k": [
				[
					["Deep Notebook"], null, "` + notebookID + `", "📘", null, [1], "tail"
				]
			]},
			["x", null, "abcdefghijabcdefghijabcdefghijabcdef", null, null, null]
		]
	]`

	got := Find(gjson.Parse(doc), NotebookShape.Match)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	rec := NotebookShape.Extract(got[0], "Untitled")
	if rec.ID != notebookID || rec.Title != "Deep Notebook" || rec.Icon != "📘" {
		t.Errorf("record = %+v", rec)
	}
}

func TestFindDoesNotDescendIntoMatches(t *testing.T) {
	doc := `[["a","b","` + notebookID + `",null,null,["n",null,"` + notebookID + `",null,null,null]]]`
	got := Find(gjson.Parse(doc), NotebookShape.Match)
	if len(got) != 1 {
		t.Fatalf("expected only the outer record, got %d", len(got))
	}
}

func TestFindCustomPredicate(t *testing.T) {
	doc := `{"a":[1,{"b":"target"}],"c":"target"}`
	got := Find(gjson.Parse(doc), func(n gjson.Result) bool { return n.Str == "target" })
	if len(got) != 2 {
		t.Errorf("expected 2 matches, got %d", len(got))
	}
}

func TestExtractTitleFallback(t *testing.T) {
	node := gjson.Parse(`["", null, "` + notebookID + `", null, null, null]`)
	rec := NotebookShape.Extract(node, "Untitled notebook")
	if rec.Title != "Untitled notebook" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.Icon != "" {
		t.Errorf("icon = %q", rec.Icon)
	}
}

func TestFilterTitles(t *testing.T) {
	records := []Record{
		{ID: "1", Title: "Sample Economics Primer"},
		{ID: "2", Title: "My Research"},
		{ID: "3", Title: "БІОЛОГІЯ 101"},
		{ID: "4", Title: "Quarterly plan"},
	}

	got := FilterTitles(records, []string{"economics", "біологія"})
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "4" {
		t.Errorf("filtered = %+v", got)
	}

	if all := FilterTitles(records, nil); len(all) != 4 {
		t.Errorf("nil denylist should keep everything, got %d", len(all))
	}
	if len(records) != 4 || records[0].ID != "1" {
		t.Error("input slice must not be modified")
	}
}

func TestRecordsAppliesDefaultShape(t *testing.T) {
	doc := `[[[["One"],null,"` + notebookID + `","🙂",null,null],["Two",null,"` + notebookID + `",null,null,null]]]`
	recs := NotebookShape.Records(gjson.Parse(doc), "Untitled")
	if len(recs) != 2 || recs[0].Title != "One" || recs[1].Title != "Two" {
		t.Errorf("records = %+v", recs)
	}
}
