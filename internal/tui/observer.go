package tui

import "github.com/mmcdole/artwork/internal/domain"

// ChannelObserver adapts domain.ImageObserver to a channel for Bubble Tea.
// Snapshots are whole maps, so when the consumer falls behind only the newest
// one is kept.
type ChannelObserver struct {
	ch chan domain.ImageMap
}

// NewChannelObserver creates a new channel-based observer.
func NewChannelObserver(ch chan domain.ImageMap) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

// OnImagesChanged sends the snapshot, replacing a stale one if the channel is full.
func (o *ChannelObserver) OnImagesChanged(images domain.ImageMap) {
	for {
		select {
		case o.ch <- images:
			return
		default:
		}
		select {
		case <-o.ch: // drop the stale snapshot
		default:
		}
	}
}
