package config

import (
	"github.com/donets/jtrack/internal/domain"
	"github.com/spf13/pflag"
)

// Flags binds the agent flags. Only flags set explicitly win over the
// file and the environment.
type Flags struct {
	fs         *pflag.FlagSet
	configFile string
	envFile    string
	role       string
	v          Config
}

func BindFlags(fs *pflag.FlagSet) *Flags {
	d := Defaults()
	f := &Flags{fs: fs}

	fs.StringVarP(&f.configFile, "config", "c", "", "config file (.json, .yaml or .yml)")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file to load before reading JTRACK_AGENT_* variables")

	fs.StringVarP(&f.v.ServerAddress, "server", "a", d.ServerAddress, "address and port of the sync server")
	fs.StringVarP(&f.v.Token, "token", "t", "", "bearer token; prompted for when empty")
	fs.StringVarP(&f.v.UserID, "user", "u", "", "user id the token was issued to")
	fs.StringVarP(&f.v.LocationID, "location", "l", "", "location to sync")
	fs.StringVarP(&f.role, "role", "r", string(d.Role), "role at the location: Technician, Manager or Owner")
	fs.StringVarP(&f.v.DBPath, "db", "d", d.DBPath, "path of the local replica database")
	fs.DurationVarP(&f.v.SyncInterval, "sync-interval", "i", d.SyncInterval, "background sync period")
	fs.DurationVar(&f.v.OnlineCheckInterval, "online-check-interval", d.OnlineCheckInterval, "server reachability probe period")
	fs.IntVar(&f.v.PageSize, "page-size", d.PageSize, "entities per family in one pull page")
	fs.StringVar(&f.v.LogLevel, "log-level", d.LogLevel, "debug, info, warn or error")
	fs.StringVar(&f.v.LogFormat, "log-format", d.LogFormat, "json or text")

	return f
}

func (f *Flags) apply(c *Config) {
	set := func(name string, fn func()) {
		if f.fs.Changed(name) {
			fn()
		}
	}

	set("server", func() { c.ServerAddress = f.v.ServerAddress })
	set("token", func() { c.Token = f.v.Token })
	set("user", func() { c.UserID = f.v.UserID })
	set("location", func() { c.LocationID = f.v.LocationID })
	set("role", func() { c.Role = domain.Role(f.role) })
	set("db", func() { c.DBPath = f.v.DBPath })
	set("sync-interval", func() { c.SyncInterval = f.v.SyncInterval })
	set("online-check-interval", func() { c.OnlineCheckInterval = f.v.OnlineCheckInterval })
	set("page-size", func() { c.PageSize = f.v.PageSize })
	set("log-level", func() { c.LogLevel = f.v.LogLevel })
	set("log-format", func() { c.LogFormat = f.v.LogFormat })
}
