// Package config loads the livetree configuration file.
//
// The configuration lives in livetree.json or livetree.yaml next to the
// program. Both formats share one schema:
//
//	{
//	  "title": "Build status",
//	  "width": 1000,
//	  "style": {"background": "#fafafa"},
//	  "server": {
//	    "address": ":8080",
//	    "heartbeatInterval": "30s",
//	    "maxQueue": 256,
//	    "staticDir": "static"
//	  },
//	  "export": {
//	    "target": "s3",
//	    "bucket": "status-pages",
//	    "prefix": "builds/"
//	  },
//	  "log": {"level": "info", "format": "text"}
//	}
//
// Missing fields take their defaults. Durations use time.ParseDuration
// syntax.
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    return err
//	}
//	srv, err := cfg.ServerConfig()
package config
