package queue

import (
	"log/slog"

	"streamup/httpc"
	"streamup/tus"
	"streamup/videoapi"
)

// NewSessionFactory wires the protocol session constructor into the
// scheduler. Tests inject scripted runners instead.
func NewSessionFactory(cfg tus.Config, httpClient *httpc.Client, registry tus.Registry, creds videoapi.Credentials, log *slog.Logger) RunnerFactory {
	return func(in tus.Input, cb tus.Callbacks) Runner {
		return tus.NewSession(cfg, httpClient, registry, creds, in, cb, log)
	}
}
