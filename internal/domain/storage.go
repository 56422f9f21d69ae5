package domain

// ImageObserver receives a snapshot of the published image map every time it changes.
type ImageObserver interface {
	OnImagesChanged(images ImageMap)
}

// ObserverFunc adapts a plain function to ImageObserver.
type ObserverFunc func(images ImageMap)

func (f ObserverFunc) OnImagesChanged(images ImageMap) { f(images) }
