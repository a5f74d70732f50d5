package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cercia-labs/cercia-core/internal/platform/jsonx"
)

func TestLenientInt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want LenientInt
	}{
		{`3`, 3},
		{`1.5`, 1},
		{`-2.9`, -2},
		{`"7"`, 7},
		{`"x"`, 0},
		{`null`, 0},
		{`true`, 0},
		{`{}`, 0},
	}
	for _, tc := range cases {
		n := LenientInt(99)
		if err := jsonx.Unmarshal([]byte(tc.in), &n); err != nil {
			t.Fatalf("Unmarshal(%s) err=%v", tc.in, err)
		}
		if n != tc.want {
			t.Fatalf("Unmarshal(%s)=%d, want %d", tc.in, n, tc.want)
		}
	}
}

func TestCommentNode_MalformedFieldsKeepTheTree(t *testing.T) {
	t.Parallel()

	body := []byte(`[
		{"id": "c1", "content": "Odd counts", "author": "crab", "upvotes": 1.5, "downvotes": "2",
		 "replies": [
			{"id": "c2", "content": "Fine reply", "author": {"name": "lobster"}, "upvotes": 1},
			"not a node",
			{"id": 7, "content": "numeric id", "replies": [{"id": "c3", "content": "deep", "author": {"name": 5}}]}
		 ]},
		{"id": "c4", "content": "Sibling", "author": {"name": "shrimp"}}
	]`)
	var got []CommentNode
	if err := jsonx.Unmarshal(body, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := []CommentNode{
		{ID: "c1", Content: "Odd counts", Author: &AuthorRef{}, Upvotes: 1, Downvotes: 2, Replies: []CommentNode{
			{ID: "c2", Content: "Fine reply", Author: &AuthorRef{Name: "lobster"}, Upvotes: 1},
			{},
			{Content: "numeric id", Replies: []CommentNode{
				{ID: "c3", Content: "deep", Author: &AuthorRef{}},
			}},
		}},
		{ID: "c4", Content: "Sibling", Author: &AuthorRef{Name: "shrimp"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decoded tree mismatch (-want +got):\n%s", diff)
	}
	if name := got[0].AuthorName(); name != "" {
		t.Fatalf("AuthorName of a string author=%q, want empty", name)
	}
}
