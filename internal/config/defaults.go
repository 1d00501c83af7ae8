package config

const (
	defaultLogDir      = "~/.local/share/poolsync/logs"
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"
	defaultRsyncBinary = "rsync"
)

// defaultExcludes drops hidden top-level entries from every transfer. The
// pattern is anchored at the transfer root so nested dotfiles still sync.
var defaultExcludes = []string{"/.*"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Mirror: Mirror{
			Excludes:    append([]string(nil), defaultExcludes...),
			RsyncBinary: defaultRsyncBinary,
		},
		Preclean: Preclean{
			Enabled: true,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
