// Package metrics keeps process-wide counters for the texture manager and
// renders them as JSON for the status server.
package metrics

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal       uint64
	RequestsFailed      uint64
	PassesTotal         uint64
	PassesInterrupted   uint64
	TexturesRegenerated uint64
	TexturesFailed      uint64
	BackupsCreated      uint64
	BackupsMirrored     uint64
	StartTime           time.Time
}

var global = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests()       { atomic.AddUint64(&global.RequestsTotal, 1) }
func IncrementRequestsFailed() { atomic.AddUint64(&global.RequestsFailed, 1) }
func IncrementPasses()         { atomic.AddUint64(&global.PassesTotal, 1) }
func IncrementInterrupted()    { atomic.AddUint64(&global.PassesInterrupted, 1) }
func IncrementRegenerated()    { atomic.AddUint64(&global.TexturesRegenerated, 1) }
func IncrementFailed()         { atomic.AddUint64(&global.TexturesFailed, 1) }
func IncrementBackups()        { atomic.AddUint64(&global.BackupsCreated, 1) }
func IncrementMirrored()       { atomic.AddUint64(&global.BackupsMirrored, 1) }

// Snapshot returns current metrics
func Snapshot() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&global.RequestsTotal),
		"requests_failed":      atomic.LoadUint64(&global.RequestsFailed),
		"passes_total":         atomic.LoadUint64(&global.PassesTotal),
		"passes_interrupted":   atomic.LoadUint64(&global.PassesInterrupted),
		"textures_regenerated": atomic.LoadUint64(&global.TexturesRegenerated),
		"textures_failed":      atomic.LoadUint64(&global.TexturesFailed),
		"backups_created":      atomic.LoadUint64(&global.BackupsCreated),
		"backups_mirrored":     atomic.LoadUint64(&global.BackupsMirrored),
		"uptime_seconds":       time.Since(global.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"num_gc":      m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}
