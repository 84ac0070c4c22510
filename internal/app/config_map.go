package app

import (
	"fmt"
	"net"
	"strings"

	"tempo/internal/admin"
	"tempo/internal/config"
	logx "tempo/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled:    l.File.Enabled,
			Path:       l.File.Path,
			MaxSizeMB:  l.File.MaxSizeMB,
			MaxBackups: l.File.MaxBackups,
			MaxAgeDays: l.File.MaxAgeDays,
			Compress:   l.File.Compress,
		},
	}
}

func mapAdminConfig(cfg *config.Config) admin.Config {
	return admin.Config{
		Enabled: cfg.Admin.Enabled,
		Addr:    cfg.Admin.Addr,
		Token:   cfg.Admin.Token,

		Pprof:                cfg.Admin.Pprof,
		BlockProfileRate:     cfg.Admin.BlockProfileRate,
		MutexProfileFraction: cfg.Admin.MutexProfileFraction,
	}
}

// validateAdmin refuses an unauthenticated listener on a non-loopback address.
func validateAdmin(cfg *config.Config) error {
	ac := mapAdminConfig(cfg)
	if !ac.Enabled || strings.TrimSpace(ac.Token) != "" {
		return nil
	}
	addr := strings.TrimSpace(ac.Addr)
	if addr == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("admin.addr: %w", err)
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("admin.token is required when admin.addr %q is not loopback", addr)
}
