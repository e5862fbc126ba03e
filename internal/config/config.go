package config

import "time"

type Config struct {
	Service   *ServiceConfig
	Transport *TransportConfig
	Static    *StaticConfig
	Logger    *LoggerConfig
	Tracer    *TracerConfig
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

type TransportConfig struct {
	ReadLimit    int64
	WriteTimeout time.Duration
	SendBuffer   int
}

type StaticConfig struct {
	Dir string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Address string
	Enabled bool
}
