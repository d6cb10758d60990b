package bridge

// Submitter is the non-blocking enqueue side of a Bridge
type Submitter interface {
	TrySubmit(cmd Command) error
}

// Coalescer stages commands produced during one frame and submits them on Flush.
// A SetVolume replaces a directly preceding SetVolume for the same source, so a
// dragged slider costs one queue slot per frame instead of one per mouse event.
// Order is otherwise kept and nothing else is merged.
type Coalescer struct {
	target Submitter
	staged []Command
}

func NewCoalescer(target Submitter) *Coalescer {
	return &Coalescer{target: target}
}

func (c *Coalescer) Stage(cmd Command) {
	if volume, ok := cmd.(SetVolume); ok && len(c.staged) > 0 {
		last := len(c.staged) - 1
		if previous, ok := c.staged[last].(SetVolume); ok && previous.SourceID == volume.SourceID {
			c.staged[last] = volume
			return
		}
	}

	c.staged = append(c.staged, cmd)
}

// Flush submits every staged command in order and returns the errors of those that were dropped
func (c *Coalescer) Flush() []error {
	if len(c.staged) == 0 {
		return nil
	}

	var dropped []error
	for _, cmd := range c.staged {
		if err := c.target.TrySubmit(cmd); err != nil {
			dropped = append(dropped, err)
		}
	}

	c.staged = c.staged[:0]

	return dropped
}

func (c *Coalescer) Pending() int {
	return len(c.staged)
}
