package influx

import "github.com/roadrunner-sim/viewer/internal/config"

func testConfig(host, port, backup string) config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:    true,
		Host:       host,
		Port:       port,
		Protocol:   "http",
		Token:      "token",
		Org:        "roadrunner",
		Bucket:     "viewer_performance",
		BackupPath: backup,
	}
}
