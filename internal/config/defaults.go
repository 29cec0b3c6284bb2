package config

import "time"

// Default values applied to fields no other source sets.
const (
	DefaultNamespace      = "care"
	DefaultDSN            = "care-keeper.db"
	DefaultRequestTimeout = 15 * time.Second
	DefaultSyncInterval   = 30 * time.Second
	DefaultProbeInterval  = 10 * time.Second
	DefaultStatusAddress  = "127.0.0.1:8089"
	DefaultLogLevel       = "debug"
)

func defaults() *StructuredConfig {
	return &StructuredConfig{
		App:     App{Namespace: DefaultNamespace},
		Storage: Storage{DB: DB{DSN: DefaultDSN}},
		Adapter: Adapter{RequestTimeout: DefaultRequestTimeout},
		Workers: Workers{
			SyncInterval:  DefaultSyncInterval,
			ProbeInterval: DefaultProbeInterval,
		},
		Status: Status{Address: DefaultStatusAddress},
		Log:    Log{Level: DefaultLogLevel},
	}
}
