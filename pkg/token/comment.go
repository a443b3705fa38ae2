package token

// CommentKind distinguishes line vs block comments.
type CommentKind int

// Comment kinds.
const (
	LineComment  CommentKind = iota // -- comment
	BlockComment                    // /* comment */
)

// Comment represents a SQL comment with position.
type Comment struct {
	Kind CommentKind
	Text string // includes delimiters (-- or /* */)
	Span Span
}

// CoversCursor reports whether a cursor at offset sits inside the comment.
// A line comment extends to the end of its line, so the offset right after
// its last character is still inside it.
func (c *Comment) CoversCursor(offset int) bool {
	if c.Kind == LineComment {
		return offset > c.Span.Start.Offset && offset <= c.Span.End.Offset
	}
	return offset > c.Span.Start.Offset && offset < c.Span.End.Offset
}
