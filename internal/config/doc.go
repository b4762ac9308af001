// Package config provides configuration parsing for statectl.
//
// The configuration is stored in state.json. Any field can be overridden by
// an environment variable named after its path with the STATE_ prefix, for
// example STATE_SERVER_PORT=9000 or STATE_STORAGE_DRIVER=sqlite.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "localhost",
//	    "port": 8080,
//	    "shutdownTimeout": "10s"
//	  },
//	  "storage": {
//	    "driver": "sqlite",
//	    "dir": ".state",
//	    "dsn": ".state/state.db"
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "path": "/metrics"
//	  },
//	  "tracing": {
//	    "enabled": false
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
