// pkg/core/cursor.go
package core

// PageCursor tracks which page of the entity listing to fetch next.
// Index stays in [0, max(TotalPages, 1)).
type PageCursor struct {
	Index      int
	TotalPages int
}

// Advance moves the cursor past a successfully fetched page, given the
// total page count reported with it. The index wraps to 0 once it reaches
// the total, which also covers the total shrinking between polls.
func (c *PageCursor) Advance(totalPages int) {
	if totalPages < 0 {
		totalPages = 0
	}
	c.TotalPages = totalPages

	limit := totalPages
	if limit < 1 {
		limit = 1
	}
	next := c.Index + 1
	if next >= limit {
		next = 0
	}
	c.Index = next
}
