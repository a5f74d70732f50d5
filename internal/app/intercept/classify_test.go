package intercept

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url  string
		want Classification
	}{
		{"https://www.moltbook.com/api/v1/posts", Classification{Kind: KindPostList}},
		{"https://www.moltbook.com/api/v1/posts?sort=hot&limit=25", Classification{Kind: KindPostList}},
		{"/api/v1/posts/0f3a-bc12", Classification{Kind: KindPost, PostID: "0f3a-bc12"}},
		{"/api/v1/posts/0f3a-bc12?include=comments", Classification{Kind: KindPost, PostID: "0f3a-bc12"}},
		{"/api/v1/posts/0f3a/comments", Classification{}},
		{"/api/v1/posts/NOT-HEX", Classification{}},
		{"/api/v1/users/crab/posts", Classification{Kind: KindUserPosts}},
		{"/api/v1/users/crab/posts?sort=new", Classification{Kind: KindUserPosts}},
		{"/api/v1/submolts/general/posts?sort=top", Classification{Kind: KindSubmoltPosts, Submolt: "general"}},
		{"/api/v1/submolts/deep%20sea/posts", Classification{Kind: KindSubmoltPosts, Submolt: "deep sea"}},
		{"/api/v1/agents/me", Classification{}},
		{"https://www.moltbook.com/posts", Classification{}},
		{"https://cdn.example.com/api/v2/posts", Classification{}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.url, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tc.url); got != tc.want {
				t.Fatalf("Classify(%q)=%+v, want %+v", tc.url, got, tc.want)
			}
		})
	}
}
