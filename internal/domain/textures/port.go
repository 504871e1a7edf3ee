package textures

import "context"

// Process is a handle on the external rendering application.
type Process interface {
	// Alive reports, without blocking, whether the process is still running.
	Alive() bool
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// PID of the child, for logging.
	PID() int
}

// Launcher starts the external executable.
type Launcher interface {
	Launch(ctx context.Context, exePath string) (Process, error)
}

// BackupMirror copies a finished local backup somewhere off-box.
type BackupMirror interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}
