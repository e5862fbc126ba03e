package logging

import "log/slog"

// Domain identifiers

func Conn(id string) slog.Attr {
	return slog.String("conn_id", id)
}

func User(name string) slog.Attr {
	return slog.String("username", name)
}

func Peer(name string) slog.Attr {
	return slog.String("peer", name)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
