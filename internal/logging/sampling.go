package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with one sampler per configured level.
// Levels without an entry, and Error and above, pass through unsampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	cores := make([]zapcore.Core, 0, len(cfg.Levels)+1)
	cores = append(cores, &levelFilterCore{
		Core: core,
		keep: func(l zapcore.Level) bool {
			_, sampled := cfg.Levels[l]
			return !sampled || l >= zapcore.ErrorLevel
		},
	})

	for level, rate := range cfg.Levels {
		if level >= zapcore.ErrorLevel {
			continue
		}
		lvl := level
		filtered := &levelFilterCore{
			Core: core,
			keep: func(l zapcore.Level) bool { return l == lvl },
		}
		cores = append(cores, zapcore.NewSamplerWithOptions(filtered, cfg.Tick.Duration(), rate.Initial, rate.Thereafter))
	}

	return zapcore.NewTee(cores...)
}

// levelFilterCore only admits entries whose level satisfies keep.
type levelFilterCore struct {
	zapcore.Core
	keep func(zapcore.Level) bool
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return c.keep(lvl) && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.keep(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With preserves the level filter on child cores.
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), keep: c.keep}
}
