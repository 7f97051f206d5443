package ui

// cursor tracks a selected row and the first visible row of a scrolling
// list. Components set page to the number of rows they can show.
type cursor struct {
	pos      int
	offset   int
	count    int
	page     int
	lastGKey bool
}

func (c *cursor) reset(count int) {
	c.pos = 0
	c.offset = 0
	c.count = count
	c.lastGKey = false
}

// resize changes the row count, keeping the position when it still fits.
func (c *cursor) resize(count int) {
	c.count = count
	if c.pos >= count {
		c.pos = count - 1
	}
	if c.pos < 0 {
		c.pos = 0
	}
	c.ensureVisible()
}

func (c *cursor) up(n int) {
	c.lastGKey = false
	c.pos -= n
	if c.pos < 0 {
		c.pos = 0
	}
	c.ensureVisible()
}

func (c *cursor) down(n int) {
	c.lastGKey = false
	c.pos += n
	if c.pos >= c.count {
		c.pos = c.count - 1
	}
	if c.pos < 0 {
		c.pos = 0
	}
	c.ensureVisible()
}

func (c *cursor) top() {
	c.lastGKey = false
	c.pos = 0
	c.offset = 0
}

func (c *cursor) bottom() {
	c.lastGKey = false
	if c.count > 0 {
		c.pos = c.count - 1
		c.ensureVisible()
	}
}

// g handles the "g" key. It reports true when "gg" completed.
func (c *cursor) g() bool {
	if c.lastGKey {
		c.top()
		return true
	}
	c.lastGKey = true
	return false
}

func (c *cursor) visible() int {
	if c.page < 1 {
		return 1
	}
	return c.page
}

func (c *cursor) ensureVisible() {
	visible := c.visible()
	if c.pos < c.offset {
		c.offset = c.pos
	}
	if c.pos >= c.offset+visible {
		c.offset = c.pos - visible + 1
	}
	if c.offset < 0 {
		c.offset = 0
	}
}

// window returns the half-open range of rows to draw.
func (c *cursor) window() (start, end int) {
	end = c.offset + c.visible()
	if end > c.count {
		end = c.count
	}
	return c.offset, end
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
