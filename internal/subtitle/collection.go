package subtitle

import "golang.org/x/text/language"

// Collection is an ordered, unique-key mapping from line ID to Line.
// Insertion order is parse order and equals ascending SubIndex. Lines are
// never removed individually; a new collection replaces the whole thing.
type Collection struct {
	ids      []string
	byID     map[string]*Line
	Language language.Tag
	Format   Format
}

func newCollection(format Format) *Collection {
	return &Collection{
		byID:   make(map[string]*Line),
		Format: format,
	}
}

func (c *Collection) add(line Line) {
	if _, exists := c.byID[line.ID]; exists {
		return
	}
	c.ids = append(c.ids, line.ID)
	stored := line
	c.byID[line.ID] = &stored
}

func (c *Collection) set(line Line) bool {
	if _, exists := c.byID[line.ID]; !exists {
		return false
	}
	stored := line
	c.byID[line.ID] = &stored
	return true
}

func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ids)
}

// Get returns a copy of the line with the given ID.
func (c *Collection) Get(id string) (Line, bool) {
	if c == nil {
		return Line{}, false
	}
	line, ok := c.byID[id]
	if !ok {
		return Line{}, false
	}
	return *line, true
}

// At returns a copy of the line at the given SubIndex position.
func (c *Collection) At(index int) (Line, bool) {
	if c == nil || index < 0 || index >= len(c.ids) {
		return Line{}, false
	}
	return *c.byID[c.ids[index]], true
}

// Lines returns ordered copies of all lines.
func (c *Collection) Lines() []Line {
	if c == nil {
		return nil
	}
	ret := make([]Line, 0, len(c.ids))
	for _, id := range c.ids {
		ret = append(ret, *c.byID[id])
	}
	return ret
}

// IDs returns the line IDs in playback order.
func (c *Collection) IDs() []string {
	if c == nil {
		return nil
	}
	ret := make([]string, len(c.ids))
	copy(ret, c.ids)
	return ret
}
