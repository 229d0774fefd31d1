package notebooklm

import (
	"context"
	"testing"

	"notebooklm-mcp-server/internal/rpc"
)

func TestSourcePackets(t *testing.T) {
	tests := []struct {
		name string
		req  AddSourceRequest
		want string
	}{
		{
			name: "text with default title",
			req:  AddSourceRequest{Kind: SourceText, Content: "hello"},
			want: `[null,["Pasted Text","hello"],null,2,null,null,null,null,null,null,1]`,
		},
		{
			name: "web url",
			req:  AddSourceRequest{Kind: SourceURL, Content: "https://example.org/a"},
			want: `[null,null,["https://example.org/a"],null,null,null,null,null,null,null,1]`,
		},
		{
			name: "video url",
			req:  AddSourceRequest{Kind: SourceURL, Content: "https://youtu.be/xyz"},
			want: `[null,null,null,null,null,null,null,["https://youtu.be/xyz"],null,null,1]`,
		},
		{
			name: "drive doc",
			req:  AddSourceRequest{Kind: SourceDrive, Content: "doc123", Title: "Plan"},
			want: `[["doc123","application/vnd.google-apps.document",1,"Plan"],null,null,null,null,null,null,null,null,null,1]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := sourcePacket(tt.req)
			if err != nil {
				t.Fatal(err)
			}
			got, _ := rpc.MarshalCompact(p)
			if got != tt.want {
				t.Errorf("packet = %s\nwant     %s", got, tt.want)
			}
		})
	}

	if _, err := sourcePacket(AddSourceRequest{Kind: "pdf", Content: "x"}); err == nil {
		t.Error("unknown kind should fail")
	}
	if _, err := sourcePacket(AddSourceRequest{Kind: SourceText}); err == nil {
		t.Error("empty content should fail")
	}
}

func TestAddSourceParsesNestedID(t *testing.T) {
	fc := newFakeCaller()
	fc.responses[rpc.MethodAddSource] = `[[[["src-uuid"],"Article Title",[null,2]]]]`
	added, err := New(fc).AddSource(context.Background(), "nb", AddSourceRequest{Kind: SourceURL, Content: "https://a.b"})
	if err != nil {
		t.Fatal(err)
	}
	if added.ID != "src-uuid" || added.Title != "Article Title" || added.Kind != SourceURL {
		t.Errorf("added = %+v", added)
	}
	c := fc.last(t)
	if c.Path != "/notebook/nb" {
		t.Errorf("path = %s", c.Path)
	}
	want := `[[[null,null,["https://a.b"],null,null,null,null,null,null,null,1]],"nb",[2],[1,null,null,null,null,null,null,null,null,null,[1]]]`
	if c.Params != want {
		t.Errorf("params = %s", c.Params)
	}
}

func TestAddSourceFlatFallback(t *testing.T) {
	fc := newFakeCaller()
	fc.responses[rpc.MethodAddSource] = `["flat-id","Flat"]`
	added, err := New(fc).AddSource(context.Background(), "nb", AddSourceRequest{Kind: SourceText, Content: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if added.ID != "flat-id" || added.Title != "Flat" {
		t.Errorf("added = %+v", added)
	}
}

func TestSourceMutations(t *testing.T) {
	fc := newFakeCaller()
	api := New(fc)
	ctx := context.Background()

	if _, err := api.RenameSource(ctx, "nb", "s1", "T"); err != nil {
		t.Fatal(err)
	}
	if c := fc.last(t); c.Params != `["nb",[["s1","T"]],[2]]` || c.Method != rpc.MethodRenameSource {
		t.Errorf("rename = %+v", c)
	}

	if _, err := api.DeleteSource(ctx, "nb", "s1"); err != nil {
		t.Fatal(err)
	}
	if c := fc.last(t); c.Params != `["nb",["s1"]]` {
		t.Errorf("delete = %+v", c)
	}

	fc.responses[rpc.MethodSyncDrive] = `[null,null,null,[null,[1718000000,0]]]`
	res, err := api.SyncDriveSource(ctx, "nb", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if res.SyncedAt != 1718000000 || res.SourceID != "s1" {
		t.Errorf("sync = %+v", res)
	}
	if c := fc.last(t); c.Params != `[null,["s1"],[2]]` {
		t.Errorf("sync params = %s", c.Params)
	}

	fc.responses[rpc.MethodCheckFreshness] = `[["s1",true]]`
	raw, err := api.CheckFreshness(ctx, "nb", []string{"s1", "s2"})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `[["s1",true]]` {
		t.Errorf("freshness = %s", raw)
	}
	if _, err := api.CheckFreshness(ctx, "nb", nil); err == nil {
		t.Error("empty id list should fail")
	}
}
