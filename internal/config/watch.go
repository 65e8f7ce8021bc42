package config

import (
	"github.com/rjeczalik/notify"
)

// WatchKnownPeers watches path for edits and invokes onChange with the
// freshly reloaded configuration whenever it changes, generalizing the
// prototype's runtime add_peer/save_config mutation into a file watch so
// an operator can edit known_peers without restarting the node.
func WatchKnownPeers(path string, onChange func(Config)) (stop func(), err error) {
	events := make(chan notify.EventInfo, 1)
	if err := notify.Watch(path, events, notify.Write); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-events:
				cfg, err := Load(path)
				if err != nil {
					logger.Errorw("failed to reload configuration", "err", err)
					continue
				}
				onChange(cfg)
			case <-done:
				return
			}
		}
	}()

	return func() {
		notify.Stop(events)
		close(done)
	}, nil
}
