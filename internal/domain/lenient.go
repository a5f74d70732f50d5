package domain

import (
	"errors"
	"strconv"
	"strings"

	"github.com/cercia-labs/cercia-core/internal/platform/jsonx"
)

// LenientInt decodes a JSON number (truncated toward zero) or a numeric string.
// Anything else, null included, decodes as 0 and is never an error.
type LenientInt int

func (n *LenientInt) UnmarshalJSON(b []byte) error {
	*n = 0
	var f float64
	if err := jsonx.Unmarshal(b, &f); err == nil {
		*n = LenientInt(f)
		return nil
	}
	var s string
	if err := jsonx.Unmarshal(b, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = LenientInt(f)
		}
	}
	return nil
}

// UnmarshalJSON accepts the author object; any other shape leaves Name empty.
func (a *AuthorRef) UnmarshalJSON(b []byte) error {
	*a = AuthorRef{}
	var obj struct {
		Name jsonx.RawMessage `json:"name"`
	}
	if err := jsonx.Unmarshal(b, &obj); err != nil {
		return nil
	}
	_ = decodeField(obj.Name, &a.Name)
	return nil
}

// UnmarshalJSON decodes one node of a comment tree field by field. A field of
// the wrong type is left zero and a non-object node decodes as an empty node,
// so one malformed comment never takes its siblings or replies down with it.
func (n *CommentNode) UnmarshalJSON(b []byte) error {
	*n = CommentNode{}
	var fields map[string]jsonx.RawMessage
	if err := jsonx.Unmarshal(b, &fields); err != nil {
		return nil
	}
	var id, content string
	if err := decodeField(fields["id"], &id); err == nil {
		n.ID = CommentID(id)
	}
	if err := decodeField(fields["content"], &content); err == nil {
		n.Content = content
	}
	if raw, ok := fields["author"]; ok && string(raw) != "null" {
		var a AuthorRef
		_ = jsonx.Unmarshal(raw, &a)
		n.Author = &a
	}
	var up, down LenientInt
	_ = decodeField(fields["upvotes"], &up)
	_ = decodeField(fields["downvotes"], &down)
	n.Upvotes, n.Downvotes = int(up), int(down)

	var replies []jsonx.RawMessage
	if err := decodeField(fields["replies"], &replies); err == nil {
		for _, r := range replies {
			var child CommentNode
			_ = jsonx.Unmarshal(r, &child)
			n.Replies = append(n.Replies, child)
		}
	}
	return nil
}

var errMissingField = errors.New("field missing")

func decodeField(raw jsonx.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errMissingField
	}
	return jsonx.Unmarshal(raw, dst)
}
