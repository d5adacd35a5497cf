package main

const (
	defaultConfigFileContent = `
# root directory for chromatic data (device state, logs, lock file)
root = {{ .Root }}

# tuner settings file. Changes to this file are applied while the tuner is
# running.
settingsfile = {{ .SettingsFile }}

[log]

# Log file location
logfile = {{ .LogFile }}

# Maximum number of rotated log files to keep
maxlogfiles = {{ .MaxLogFiles }}

# Debug level. Either a single level for all subsystems or a comma separated
# list of subsys=level. Subsystems: TUNR, SUPV, STRM, AUDI, GAUG, MIXR, SETT,
# PROM, STAT.
debuglevel = {{ .DebugLevel }}

[metrics]

# Address of the prometheus /metrics listener. Empty disables it.
# listen = 127.0.0.1:9464

# Interval between stats summaries in the log. 0 disables them.
# statsinterval = 1m

[theme]

# Colors in the attribute:foreground:background format.
# intunecolor = bold:green:na
# offtunecolor = bold:yellow:na
`
)
