package server

import (
	"time"

	"go.uber.org/zap"
)

// maxSweepRounds bounds how often one database is resampled within a single tick
const maxSweepRounds = 16

// startGCLoop triggers the active expiration mechanism
func (e *Engine) startGCLoop() {
	ticker := time.NewTicker(e.cfg.GC.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.activeExpireCycle()
		case <-e.stopGC:
			e.logger.Info("GC stopped")
			return
		}
	}
}

// activeExpireCycle samples keys with a TTL in every database and removes the
// expired ones. A database is resampled while the expired ratio stays above
// the configured threshold. It takes the engine lock like any command
func (e *Engine) activeExpireCycle() {
	e.mu.Lock()
	defer e.mu.Unlock()

	samples := e.cfg.GC.SamplesPerCheck
	if samples <= 0 {
		samples = 20
	}

	for i := 0; i < e.ks.Len(); i++ {
		db, err := e.ks.DB(i)
		if err != nil {
			return
		}
		for round := 0; round < maxSweepRounds; round++ {
			checked, expired := db.DeleteExpired(samples)
			if checked == 0 {
				break
			}

			ratio := float64(expired) / float64(checked)
			if expired > 0 && e.logger.Core().Enabled(zap.DebugLevel) {
				e.logger.Debug("GC delete expired",
					zap.Int("db", i),
					zap.Float64("expired_ratio", ratio),
				)
			}

			if ratio <= e.cfg.GC.MatchThreshold {
				break
			}
		}
	}
}
