package ingest

import "github.com/fsnotify/fsnotify"

func fsnotifyEvent(name, op string) fsnotify.Event {
	ev := fsnotify.Event{Name: name}
	switch op {
	case "create":
		ev.Op = fsnotify.Create
	case "remove":
		ev.Op = fsnotify.Remove
	case "rename":
		ev.Op = fsnotify.Rename
	}
	return ev
}
