package resolve

import "github.com/RogueMacro/grill/internal/semverx"

// candidate is one slot in the resolver's candidate list: a dependency
// edge that needs a concrete version assigned to it.
type candidate struct {
	name      string
	req       semverx.Requirement
	chosen    *semverx.Version
	available []semverx.Version // ascending; popped from the tail
}

// popNext removes and returns the greatest remaining available version,
// or false if exhausted.
func (c *candidate) popNext() (semverx.Version, bool) {
	if n := len(c.available); n > 0 {
		v := c.available[n-1]
		c.available = c.available[:n-1]
		return v, true
	}
	return semverx.Version{}, false
}

// preferHint moves hint to the end of the ascending list (so popNext
// returns it first) if it's present among the available versions.
func (c *candidate) preferHint(hint semverx.Version) {
	for i, v := range c.available {
		if v.Equal(hint) {
			c.available = append(c.available[:i], c.available[i+1:]...)
			c.available = append(c.available, hint)
			return
		}
	}
}
