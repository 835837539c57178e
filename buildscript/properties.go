package buildscript

// Resolution says how a property group was chosen for a (configuration, platform) lookup.
type Resolution int

const (
	// ResolvedNone means the document has no property groups.
	ResolvedNone Resolution = iota
	// ResolvedExact means a group's parsed condition matched the pair.
	ResolvedExact
	// ResolvedLegacy means an unparseable condition contained "config|platform".
	ResolvedLegacy
	// ResolvedUnconditioned means the first group without a condition was used.
	ResolvedUnconditioned
	// ResolvedFirst means no better group existed and the first group was used.
	ResolvedFirst
)

// String returns a readable name for the resolution.
func (r Resolution) String() string {
	switch r {
	case ResolvedExact:
		return "exact"
	case ResolvedLegacy:
		return "legacy"
	case ResolvedUnconditioned:
		return "unconditioned"
	case ResolvedFirst:
		return "first"
	default:
		return "none"
	}
}

// ResolvePropertyGroup picks the group a lookup for (config, platform) reads from:
// a group whose condition matches the pair, else the unconditioned group,
// else the first group in document order. With an empty pair only the last
// two tiers apply.
func (d *Document) ResolvePropertyGroup(config, platform string) (*PropertyGroup, Resolution) {
	if g, how := d.matchingGroup(config, platform); g != nil {
		return g, how
	}
	if g := d.unconditionedGroup(); g != nil {
		return g, ResolvedUnconditioned
	}
	if len(d.Root.PropertyGroups) > 0 {
		return d.Root.PropertyGroups[0], ResolvedFirst
	}
	return nil, ResolvedNone
}

// GetProperty returns the value of name in the group resolved for (config, platform),
// or "" when that group doesn't define it. It never fails.
func (d *Document) GetProperty(config, platform, name string) string {
	g, _ := d.ResolvePropertyGroup(config, platform)
	if g == nil {
		return ""
	}
	value, _ := g.Get(name)
	return value
}

// SetProperty writes name into the group for exactly (config, platform),
// creating that group when it doesn't exist. An empty pair writes into the
// group GetProperty reads it from, so a group is only created for it when the
// document has none. It reports whether the document changed.
func (d *Document) SetProperty(config, platform, name, value string) bool {
	g := d.targetGroup(config, platform)
	if g == nil {
		g = &PropertyGroup{Condition: Condition{Configuration: config, Platform: platform}.String()}
		d.Root.PropertyGroups = append(d.Root.PropertyGroups, g)
	}

	if current, ok := g.Get(name); ok && current == value {
		return false
	}
	g.set(name, value)
	d.modified = true
	return true
}

// RemoveProperty deletes name from the group SetProperty writes it to.
func (d *Document) RemoveProperty(config, platform, name string) bool {
	g := d.targetGroup(config, platform)
	if g == nil || !g.remove(name) {
		return false
	}
	d.modified = true
	return true
}

// Configurations lists the (configuration, platform) pairs that have their own property group.
func (d *Document) Configurations() []Condition {
	var out []Condition
	for _, g := range d.Root.PropertyGroups {
		if c, ok := ParseCondition(g.Condition); ok {
			out = append(out, c)
		}
	}
	return out
}

// targetGroup is the group writes for (config, platform) go to, or nil when it must be created.
func (d *Document) targetGroup(config, platform string) *PropertyGroup {
	if config == "" && platform == "" {
		g, _ := d.ResolvePropertyGroup("", "")
		return g
	}
	g, _ := d.matchingGroup(config, platform)
	return g
}

func (d *Document) matchingGroup(config, platform string) (*PropertyGroup, Resolution) {
	if config == "" && platform == "" {
		return nil, ResolvedNone
	}

	for _, g := range d.Root.PropertyGroups {
		if c, ok := ParseCondition(g.Condition); ok && c.Matches(config, platform) {
			return g, ResolvedExact
		}
	}

	if d.StrictConditions {
		return nil, ResolvedNone
	}
	for _, g := range d.Root.PropertyGroups {
		if g.Condition == "" {
			continue
		}
		if _, ok := ParseCondition(g.Condition); ok {
			continue
		}
		if legacyMatch(g.Condition, config, platform) {
			return g, ResolvedLegacy
		}
	}
	return nil, ResolvedNone
}

func (d *Document) unconditionedGroup() *PropertyGroup {
	for _, g := range d.Root.PropertyGroups {
		if g.Condition == "" {
			return g
		}
	}
	return nil
}
