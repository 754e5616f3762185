package actor

import "github.com/kingrea/ipu-gate/internal/message"

// Base provides common plumbing for actors (identity + message contracts).
type Base struct {
	info Info
}

// NewBase seeds the helper with actor info. An empty version defaults to 1.0.0.
func NewBase(info Info) Base {
	if info.Version == "" {
		info.Version = defaultVersionText
	}
	return Base{info: info}
}

// SetConsumes declares the consumed kinds.
func (b *Base) SetConsumes(kinds ...message.Kind) {
	b.info.Consumes = append([]message.Kind{}, kinds...)
}

// SetProduces declares the produced kinds.
func (b *Base) SetProduces(kinds ...message.Kind) {
	b.info.Produces = append([]message.Kind{}, kinds...)
}

// SetTags replaces the actor tags.
func (b *Base) SetTags(tags ...Tag) {
	b.info.Tags = append([]Tag{}, tags...)
}

// Info implements Actor.Info.
func (b *Base) Info() Info {
	info := b.info
	info.Tags = append([]Tag{}, b.info.Tags...)
	info.Consumes = append([]message.Kind{}, b.info.Consumes...)
	info.Produces = append([]message.Kind{}, b.info.Produces...)
	return info
}
