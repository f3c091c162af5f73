//go:build !linux

package audioio

import "log/slog"

func newALSASource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, ErrDeviceUnavailable
}

func newALSASink(cfg Config, logger *slog.Logger) (Sink, error) {
	return nil, ErrDeviceUnavailable
}

func detectBestBackend() Backend {
	return BackendMock
}
